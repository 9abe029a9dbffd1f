// Package dynamodb stores ideas in a single DynamoDB table.
//
// Item layout:
//
//	PK = USER#<userID>
//	SK = IDEA#<ideaID>
//
// The remaining attributes mirror idea.Idea. Embeddings are stored as a
// number list and omitted when the idea has none.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/internal/infrastructure/persistence"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	userPrefix = "USER#"
	ideaPrefix = "IDEA#"
)

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	dynamodb.QueryAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// IdeaRepository implements persistence.IdeaRepository on DynamoDB.
type IdeaRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

var _ persistence.IdeaRepository = (*IdeaRepository)(nil)

// NewIdeaRepository creates a repository over tableName.
func NewIdeaRepository(client API, tableName string, logger *zap.Logger) *IdeaRepository {
	return &IdeaRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type conceptNodeItem struct {
	ID          string `dynamodbav:"id"`
	Label       string `dynamodbav:"label"`
	Type        string `dynamodbav:"type"`
	Description string `dynamodbav:"desc,omitempty"`
}

type conceptEdgeItem struct {
	Source      string `dynamodbav:"source"`
	Target      string `dynamodbav:"target"`
	Relation    string `dynamodbav:"relation"`
	Description string `dynamodbav:"desc,omitempty"`
}

type ideaItem struct {
	PK            string            `dynamodbav:"PK"`
	SK            string            `dynamodbav:"SK"`
	IdeaID        string            `dynamodbav:"IdeaID"`
	Label         string            `dynamodbav:"Label"`
	Tags          []string          `dynamodbav:"Tags"`
	Summary       string            `dynamodbav:"Summary,omitempty"`
	ContentRaw    string            `dynamodbav:"ContentRaw,omitempty"`
	Embedding     []float64         `dynamodbav:"Embedding,omitempty"`
	Nodes         []conceptNodeItem `dynamodbav:"ConceptNodes"`
	Edges         []conceptEdgeItem `dynamodbav:"ConceptEdges"`
	CreatedAt     string            `dynamodbav:"CreatedAt"`
	LastModified  string            `dynamodbav:"LastModified,omitempty"`
	Version       int               `dynamodbav:"Version"`
	LinkedIdeaIDs []string          `dynamodbav:"LinkedIdeaIDs,omitempty"`
	ParentIdeaID  string            `dynamodbav:"ParentIdeaID,omitempty"`
	ChildIdeaIDs  []string          `dynamodbav:"ChildIdeaIDs,omitempty"`
	MergedFromIDs []string          `dynamodbav:"MergedFromIDs,omitempty"`
}

// ListIdeas queries every idea of the user, in sort key order.
func (r *IdeaRepository) ListIdeas(ctx context.Context, userID string) ([]idea.Idea, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(userPrefix + userID)).
		And(expression.Key("SK").BeginsWith(ideaPrefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, appErrors.NewInternal("failed to build expression", err)
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	ideas := make([]idea.Idea, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "query ideas")
		}
		for _, raw := range page.Items {
			it, err := parseItem(raw)
			if err != nil {
				r.logger.Warn("Skipping unreadable idea item",
					zap.String("userID", userID),
					zap.Error(err),
				)
				continue
			}
			ideas = append(ideas, it)
		}
	}

	r.logger.Debug("Loaded ideas from DynamoDB",
		zap.String("userID", userID),
		zap.Int("count", len(ideas)),
	)
	return ideas, nil
}

// GetIdea fetches a single idea.
func (r *IdeaRepository) GetIdea(ctx context.Context, userID, ideaID string) (idea.Idea, error) {
	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPrefix + userID},
		"SK": &types.AttributeValueMemberS{Value: ideaPrefix + ideaID},
	}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       key,
	})
	if err != nil {
		return idea.Idea{}, mapError(err, "get idea")
	}
	if result.Item == nil {
		return idea.Idea{}, appErrors.NewNotFound(fmt.Sprintf("idea with id %s not found", ideaID))
	}

	it, err := parseItem(result.Item)
	if err != nil {
		return idea.Idea{}, appErrors.NewInternal("failed to parse idea item", err)
	}
	return it, nil
}

// SaveIdea writes an idea. A stored item with the same or a newer version
// rejects the write with a state error.
func (r *IdeaRepository) SaveIdea(ctx context.Context, userID string, it idea.Idea) error {
	if err := it.Validate(); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(toItem(userID, it))
	if err != nil {
		return appErrors.NewInternal("failed to marshal idea", err)
	}

	cond := expression.Name("PK").AttributeNotExists().
		Or(expression.Name("Version").LessThan(expression.Value(it.Version)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return appErrors.NewInternal("failed to build expression", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return mapError(err, "save idea")
	}
	return nil
}

func toItem(userID string, it idea.Idea) ideaItem {
	item := ideaItem{
		PK:            userPrefix + userID,
		SK:            ideaPrefix + it.ID,
		IdeaID:        it.ID,
		Label:         it.Label,
		Tags:          it.Tags,
		Summary:       it.Summary,
		ContentRaw:    it.ContentRaw,
		Embedding:     it.Embedding,
		Nodes:         make([]conceptNodeItem, len(it.ConceptGraph.Nodes)),
		Edges:         make([]conceptEdgeItem, len(it.ConceptGraph.Edges)),
		CreatedAt:     it.CreatedAt.UTC().Format(time.RFC3339Nano),
		Version:       it.Version,
		LinkedIdeaIDs: it.LinkedIdeaIDs,
		ParentIdeaID:  it.ParentIdeaID,
		ChildIdeaIDs:  it.ChildIdeaIDs,
		MergedFromIDs: it.MergedFromIDs,
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if it.LastModified != nil {
		item.LastModified = it.LastModified.UTC().Format(time.RFC3339Nano)
	}
	for i, n := range it.ConceptGraph.Nodes {
		item.Nodes[i] = conceptNodeItem{ID: n.ID, Label: n.Label, Type: string(n.Type), Description: n.Description}
	}
	for i, e := range it.ConceptGraph.Edges {
		item.Edges[i] = conceptEdgeItem{Source: e.SourceID, Target: e.TargetID, Relation: string(e.Relation), Description: e.Description}
	}
	return item
}

func parseItem(raw map[string]types.AttributeValue) (idea.Idea, error) {
	var item ideaItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return idea.Idea{}, err
	}
	if item.IdeaID == "" {
		item.IdeaID = strings.TrimPrefix(item.SK, ideaPrefix)
	}

	it := idea.Idea{
		ID:            item.IdeaID,
		Label:         item.Label,
		Tags:          item.Tags,
		Summary:       item.Summary,
		ContentRaw:    item.ContentRaw,
		Version:       item.Version,
		LinkedIdeaIDs: item.LinkedIdeaIDs,
		ParentIdeaID:  item.ParentIdeaID,
		ChildIdeaIDs:  item.ChildIdeaIDs,
		MergedFromIDs: item.MergedFromIDs,
		ConceptGraph: idea.ConceptGraph{
			Nodes: make([]idea.EntityNode, len(item.Nodes)),
			Edges: make([]idea.RelationEdge, len(item.Edges)),
		},
	}
	// An empty stored list means no embedding
	if len(item.Embedding) > 0 {
		it.Embedding = item.Embedding
	}
	if t, err := time.Parse(time.RFC3339Nano, item.CreatedAt); err == nil {
		it.CreatedAt = t
	}
	if item.LastModified != "" {
		if t, err := time.Parse(time.RFC3339Nano, item.LastModified); err == nil {
			it.LastModified = &t
		}
	}
	for i, n := range item.Nodes {
		it.ConceptGraph.Nodes[i] = idea.EntityNode{ID: n.ID, Label: n.Label, Type: idea.EntityType(n.Type), Description: n.Description}
	}
	for i, e := range item.Edges {
		it.ConceptGraph.Edges[i] = idea.RelationEdge{SourceID: e.Source, TargetID: e.Target, Relation: idea.RelationType(e.Relation), Description: e.Description}
	}
	return it, nil
}

// mapError converts SDK errors into application errors.
func mapError(err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return appErrors.FromContext(err, fmt.Sprintf("dynamodb %s did not complete", operation))
	}

	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return appErrors.NewInternal(fmt.Sprintf("dynamodb %s failed", operation), err)
	}

	switch ae.ErrorCode() {
	case "ConditionalCheckFailedException":
		return appErrors.NewState("idea was modified concurrently; a newer version is stored")
	case "ResourceNotFoundException":
		return appErrors.NewUnavailable("idea table not found", err)
	case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
		return appErrors.NewUnavailable(fmt.Sprintf("dynamodb %s throttled", operation), err)
	default:
		return appErrors.NewInternal(fmt.Sprintf("dynamodb %s failed: %s", operation, ae.ErrorCode()), err)
	}
}
