package dynamoreg

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/vizsched/vizsched/internal/job"
	"github.com/vizsched/vizsched/internal/registry"
)

// fakeTable is an in-memory stand-in for the dynamoAPI interface, exercising
// the same conditional-expression semantics DynamoDB enforces server-side.
type fakeTable struct {
	rows map[string]map[string]types.AttributeValue
}

func newFakeTable() *fakeTable { return &fakeTable{rows: map[string]map[string]types.AttributeValue{}} }

func (f *fakeTable) CreateTable(_ context.Context, _ *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeTable) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := params.Item["id"].(*types.AttributeValueMemberS).Value
	if params.ConditionExpression != nil {
		if _, exists := f.rows[id]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.rows[id] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := params.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.rows[id]}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	id := params.Key["id"].(*types.AttributeValueMemberS).Value
	row, exists := f.rows[id]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	row["hostname"] = params.ExpressionAttributeValues[":h"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeTable) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	id := params.Key["id"].(*types.AttributeValueMemberS).Value
	if _, exists := f.rows[id]; !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(f.rows, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	items := make([]map[string]types.AttributeValue, 0, len(f.rows))
	for _, row := range f.rows {
		items = append(items, row)
	}
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: nil}, nil
}

func sampleJob(id string) job.Job {
	return job.Job{
		ID:        id,
		User:      "alice",
		StartTime: time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 7, 31, 11, 0, 0, 0, time.UTC),
	}
}

func TestStoreInsertAndFetch(t *testing.T) {
	s := newWithAPI(newFakeTable(), "jobs")
	j := sampleJob("job-1")

	require.NoError(t, s.Insert(context.Background(), j))

	got, err := s.FetchByID(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, j.User, got.User)
	require.True(t, j.StartTime.Equal(got.StartTime))
	require.True(t, j.EndTime.Equal(got.EndTime))
}

func TestStoreInsertConflict(t *testing.T) {
	s := newWithAPI(newFakeTable(), "jobs")
	j := sampleJob("job-1")

	require.NoError(t, s.Insert(context.Background(), j))
	err := s.Insert(context.Background(), j)
	require.ErrorIs(t, err, registry.ErrConflict)
}

func TestStoreFetchNotFound(t *testing.T) {
	s := newWithAPI(newFakeTable(), "jobs")
	_, err := s.FetchByID(context.Background(), "missing")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestStoreUpdateHostIdempotent(t *testing.T) {
	s := newWithAPI(newFakeTable(), "jobs")
	require.NoError(t, s.Insert(context.Background(), sampleJob("job-1")))

	require.NoError(t, s.UpdateHost(context.Background(), "job-1", "node-7"))
	require.NoError(t, s.UpdateHost(context.Background(), "job-1", "node-7"))

	got, err := s.FetchByID(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, "node-7", got.Host)
}

func TestStoreUpdateHostNotFound(t *testing.T) {
	s := newWithAPI(newFakeTable(), "jobs")
	err := s.UpdateHost(context.Background(), "missing", "node-7")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestStoreDeleteAndScan(t *testing.T) {
	s := newWithAPI(newFakeTable(), "jobs")
	require.NoError(t, s.Insert(context.Background(), sampleJob("job-1")))
	require.NoError(t, s.Insert(context.Background(), sampleJob("job-2")))

	all, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, s.Delete(context.Background(), "job-1"))
	err = s.Delete(context.Background(), "job-1")
	require.ErrorIs(t, err, registry.ErrNotFound)

	remaining, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "job-2", remaining[0].ID)
}

func TestItemRoundTripsThroughAttributeValue(t *testing.T) {
	j := sampleJob("job-3")
	av, err := attributevalue.MarshalMap(toItem(j))
	require.NoError(t, err)

	var it item
	require.NoError(t, attributevalue.UnmarshalMap(av, &it))

	back, err := fromItem(it)
	require.NoError(t, err)
	require.Equal(t, j.ID, back.ID)
	require.True(t, j.StartTime.Equal(back.StartTime))
}
