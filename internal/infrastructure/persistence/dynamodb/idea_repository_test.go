package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"ideagraph-backend/internal/domain/idea"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDynamo struct {
	pages    [][]map[string]types.AttributeValue
	queries  []*dynamodb.QueryInput
	item     map[string]types.AttributeValue
	puts     []*dynamodb.PutItemInput
	queryErr error
	putErr   error
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	page := len(f.queries)
	f.queries = append(f.queries, in)

	out := &dynamodb.QueryOutput{}
	if page < len(f.pages) {
		out.Items = f.pages[page]
	}
	if page+1 < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "USER#u1"},
			"SK": &types.AttributeValueMemberS{Value: string(rune('a' + page))},
		}
	}
	return out, nil
}

func (f *fakeDynamo) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func sampleIdea(id string, embedding []float64) idea.Idea {
	modified := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	return idea.Idea{
		ID:         id,
		Label:      "label " + id,
		Tags:       []string{"a", "b"},
		Summary:    "summary",
		ContentRaw: "raw",
		Embedding:  embedding,
		ConceptGraph: idea.ConceptGraph{
			Nodes: []idea.EntityNode{
				{ID: "n1", Label: "Contract", Type: idea.EntityTool, Description: "code"},
				{ID: "n2", Label: "Trust", Type: idea.EntityConcept},
			},
			Edges: []idea.RelationEdge{{SourceID: "n1", TargetID: "n2", Relation: idea.RelationEnables}},
		},
		CreatedAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		LastModified:  &modified,
		Version:       2,
		LinkedIdeaIDs: []string{"other"},
	}
}

func marshalItem(t *testing.T, userID string, it idea.Idea) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(toItem(userID, it))
	require.NoError(t, err)
	return item
}

func TestItemRoundTrip(t *testing.T) {
	original := sampleIdea("i1", []float64{0.1, -0.2, 0.3})

	parsed, err := parseItem(marshalItem(t, "u1", original))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)

	t.Run("missing embedding stays absent", func(t *testing.T) {
		noVector := sampleIdea("i2", nil)
		item := marshalItem(t, "u1", noVector)
		_, present := item["Embedding"]
		assert.False(t, present)

		parsed, err := parseItem(item)
		require.NoError(t, err)
		assert.False(t, parsed.HasEmbedding())
	})
}

func TestListIdeasPaginates(t *testing.T) {
	fake := &fakeDynamo{pages: [][]map[string]types.AttributeValue{
		{marshalItem(t, "u1", sampleIdea("i1", []float64{1, 0}))},
		{
			marshalItem(t, "u1", sampleIdea("i2", []float64{0, 1})),
			{"PK": &types.AttributeValueMemberS{Value: "USER#u1"}, "Version": &types.AttributeValueMemberS{Value: "not a number"}},
		},
	}}
	repo := NewIdeaRepository(fake, "ideas", zap.NewNop())

	ideas, err := repo.ListIdeas(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, ideas, 2, "unreadable items are skipped")
	assert.Equal(t, "i1", ideas[0].ID)
	assert.Equal(t, "i2", ideas[1].ID)

	require.Len(t, fake.queries, 2)
	assert.Equal(t, "ideas", *fake.queries[0].TableName)
	assert.NotNil(t, fake.queries[1].ExclusiveStartKey)
	assert.Contains(t, fake.queries[0].ExpressionAttributeValues, ":0")
}

func TestGetIdea(t *testing.T) {
	fake := &fakeDynamo{}
	repo := NewIdeaRepository(fake, "ideas", zap.NewNop())

	_, err := repo.GetIdea(context.Background(), "u1", "missing")
	assert.True(t, appErrors.IsNotFound(err))

	fake.item = marshalItem(t, "u1", sampleIdea("i1", nil))
	it, err := repo.GetIdea(context.Background(), "u1", "i1")
	require.NoError(t, err)
	assert.Equal(t, "label i1", it.Label)
}

func TestSaveIdea(t *testing.T) {
	fake := &fakeDynamo{}
	repo := NewIdeaRepository(fake, "ideas", zap.NewNop())

	require.NoError(t, repo.SaveIdea(context.Background(), "u1", sampleIdea("i1", []float64{1})))
	require.Len(t, fake.puts, 1)
	put := fake.puts[0]
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#u1"}, put.Item["PK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "IDEA#i1"}, put.Item["SK"])
	require.NotNil(t, put.ConditionExpression)
	assert.Contains(t, *put.ConditionExpression, "attribute_not_exists")

	t.Run("invalid idea is rejected before the call", func(t *testing.T) {
		err := repo.SaveIdea(context.Background(), "u1", idea.Idea{})
		assert.True(t, appErrors.IsValidation(err))
		assert.Len(t, fake.puts, 1)
	})

	t.Run("stale version", func(t *testing.T) {
		fake.putErr = &smithy.GenericAPIError{Code: "ConditionalCheckFailedException", Message: "failed"}
		err := repo.SaveIdea(context.Background(), "u1", sampleIdea("i1", nil))
		assert.True(t, appErrors.IsState(err))
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want appErrors.ErrorType
	}{
		{"throttled", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, appErrors.ErrorTypeUnavailable},
		{"missing table", &smithy.GenericAPIError{Code: "ResourceNotFoundException"}, appErrors.ErrorTypeUnavailable},
		{"conditional", &smithy.GenericAPIError{Code: "ConditionalCheckFailedException"}, appErrors.ErrorTypeState},
		{"other api error", &smithy.GenericAPIError{Code: "ValidationException"}, appErrors.ErrorTypeInternal},
		{"deadline", context.DeadlineExceeded, appErrors.ErrorTypeUnavailable},
		{"plain", errors.New("socket closed"), appErrors.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, appErrors.TypeOf(mapError(tt.err, "query ideas")))
		})
	}
}

func TestListIdeasMapsErrors(t *testing.T) {
	fake := &fakeDynamo{queryErr: &smithy.GenericAPIError{Code: "ThrottlingException"}}
	repo := NewIdeaRepository(fake, "ideas", zap.NewNop())

	_, err := repo.ListIdeas(context.Background(), "u1")
	assert.True(t, appErrors.IsUnavailable(err))
}
