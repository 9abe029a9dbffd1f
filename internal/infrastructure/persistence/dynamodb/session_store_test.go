package dynamodb

import (
	"context"
	"testing"
	"time"

	"ideagraph-backend/internal/graphlevel"
	"ideagraph-backend/internal/session"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSessionTable struct {
	items      map[string]map[string]types.AttributeValue
	consistent []bool
	err        error
}

func newFakeSessionTable() *fakeSessionTable {
	return &fakeSessionTable{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value + "|" + key["SK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeSessionTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.consistent = append(f.consistent, in.ConsistentRead != nil && *in.ConsistentRead)
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeSessionTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeSessionTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func newTestSessionStore(table *fakeSessionTable, ttl time.Duration, now time.Time) *SessionStore {
	store := NewSessionStore(table, "ideas", ttl, zap.NewNop())
	store.now = func() time.Time { return now }
	return store
}

func TestSessionStateRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	table := newFakeSessionTable()
	store := newTestSessionStore(table, 30*time.Minute, now)
	ctx := context.Background()

	state := session.State{
		SessionID:      "s1",
		UserID:         "u1",
		Level:          graphlevel.LevelMicro,
		SelectedIdeaID: "A",
		Threshold:      0.35,
		CreatedAt:      now.Add(-time.Hour),
		LastUsed:       now.Add(-time.Minute),
	}
	require.NoError(t, store.SaveState(ctx, state))

	item := table.items["SESSION#s1|STATE"]
	require.NotNil(t, item)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "micro"}, item["Level"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1740821340"}, item["ExpiresAt"])

	loaded, err := store.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
	assert.Equal(t, []bool{true}, table.consistent)

	require.NoError(t, store.DeleteState(ctx, "s1"))
	_, err = store.LoadState(ctx, "s1")
	assert.True(t, appErrors.IsNotFound(err))
	assert.NoError(t, store.DeleteState(ctx, "s1"))
}

func TestLoadStateIgnoresExpiredItems(t *testing.T) {
	saved := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	table := newFakeSessionTable()
	ctx := context.Background()

	require.NoError(t, newTestSessionStore(table, 10*time.Minute, saved).SaveState(ctx, session.State{
		SessionID: "s1",
		UserID:    "u1",
		Level:     graphlevel.LevelMacro,
		Threshold: 0.7,
		CreatedAt: saved,
	}))

	_, err := newTestSessionStore(table, 10*time.Minute, saved.Add(5*time.Minute)).LoadState(ctx, "s1")
	assert.NoError(t, err)

	_, err = newTestSessionStore(table, 10*time.Minute, saved.Add(11*time.Minute)).LoadState(ctx, "s1")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestSessionStoreWithoutTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	table := newFakeSessionTable()
	store := newTestSessionStore(table, 0, now)

	require.NoError(t, store.SaveState(context.Background(), session.State{
		SessionID: "s1",
		UserID:    "u1",
		Level:     graphlevel.LevelMacro,
		Threshold: 0.7,
	}))

	_, hasExpiry := table.items["SESSION#s1|STATE"]["ExpiresAt"]
	assert.False(t, hasExpiry)
}

func TestSessionStoreErrors(t *testing.T) {
	table := newFakeSessionTable()
	table.err = &smithy.GenericAPIError{Code: "ThrottlingException"}
	store := newTestSessionStore(table, time.Minute, time.Now())
	ctx := context.Background()

	assert.True(t, appErrors.IsUnavailable(store.SaveState(ctx, session.State{SessionID: "s1", Level: graphlevel.LevelMacro})))
	_, err := store.LoadState(ctx, "s1")
	assert.True(t, appErrors.IsUnavailable(err))
	assert.True(t, appErrors.IsUnavailable(store.DeleteState(ctx, "s1")))
}
