package dynamodb

import (
	"context"
	"fmt"
	"time"

	"ideagraph-backend/internal/graphlevel"
	"ideagraph-backend/internal/session"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	sessionPrefix = "SESSION#"
	stateSortKey  = "STATE"
)

// SessionAPI is the subset of the DynamoDB client the session store uses.
type SessionAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SessionStore keeps graph session state in the idea table under
// PK = SESSION#<sessionID>, SK = STATE. Items carry an ExpiresAt epoch
// attribute for the table's TTL; expired items not yet removed by DynamoDB
// are treated as missing.
type SessionStore struct {
	client    SessionAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

var _ session.StateStore = (*SessionStore)(nil)

// NewSessionStore creates a store over tableName. A ttl of zero keeps
// sessions until they are closed.
func NewSessionStore(client SessionAPI, tableName string, ttl time.Duration, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
	}
}

type sessionItem struct {
	PK             string  `dynamodbav:"PK"`
	SK             string  `dynamodbav:"SK"`
	SessionID      string  `dynamodbav:"SessionID"`
	UserID         string  `dynamodbav:"UserID"`
	Level          string  `dynamodbav:"Level"`
	SelectedIdeaID string  `dynamodbav:"SelectedIdeaID,omitempty"`
	Threshold      float64 `dynamodbav:"Threshold"`
	CreatedAt      string  `dynamodbav:"CreatedAt"`
	LastUsed       string  `dynamodbav:"LastUsed"`
	ExpiresAt      int64   `dynamodbav:"ExpiresAt,omitempty"`
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPrefix + sessionID},
		"SK": &types.AttributeValueMemberS{Value: stateSortKey},
	}
}

// SaveState writes the state, replacing any previous one.
func (s *SessionStore) SaveState(ctx context.Context, state session.State) error {
	lastUsed := state.LastUsed
	if lastUsed.IsZero() {
		lastUsed = s.now()
	}

	item := sessionItem{
		PK:             sessionPrefix + state.SessionID,
		SK:             stateSortKey,
		SessionID:      state.SessionID,
		UserID:         state.UserID,
		Level:          state.Level.String(),
		SelectedIdeaID: state.SelectedIdeaID,
		Threshold:      state.Threshold,
		CreatedAt:      state.CreatedAt.UTC().Format(time.RFC3339Nano),
		LastUsed:       lastUsed.UTC().Format(time.RFC3339Nano),
	}
	if s.ttl > 0 {
		item.ExpiresAt = lastUsed.Add(s.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return appErrors.NewInternal("failed to marshal session state", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}); err != nil {
		return mapError(err, "save session")
	}
	return nil
}

// LoadState reads the state of a session with a consistent read.
func (s *SessionStore) LoadState(ctx context.Context, sessionID string) (session.State, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            sessionKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return session.State{}, mapError(err, "load session")
	}
	if result.Item == nil {
		return session.State{}, appErrors.NewNotFound(fmt.Sprintf("session %s not found", sessionID))
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return session.State{}, appErrors.NewInternal("failed to parse session state", err)
	}
	if item.ExpiresAt > 0 && s.now().Unix() >= item.ExpiresAt {
		s.logger.Debug("Ignoring expired session state", zap.String("sessionID", sessionID))
		return session.State{}, appErrors.NewNotFound(fmt.Sprintf("session %s not found", sessionID))
	}

	level, err := graphlevel.ParseLevel(item.Level)
	if err != nil {
		return session.State{}, appErrors.NewInternal("failed to parse session level", err)
	}

	state := session.State{
		SessionID:      item.SessionID,
		UserID:         item.UserID,
		Level:          level,
		SelectedIdeaID: item.SelectedIdeaID,
		Threshold:      item.Threshold,
	}
	if t, err := time.Parse(time.RFC3339Nano, item.CreatedAt); err == nil {
		state.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, item.LastUsed); err == nil {
		state.LastUsed = t
	}
	return state, nil
}

// DeleteState removes the state. Deleting a missing session is not an error.
func (s *SessionStore) DeleteState(ctx context.Context, sessionID string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       sessionKey(sessionID),
	}); err != nil {
		return mapError(err, "delete session")
	}
	return nil
}
