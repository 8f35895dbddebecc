package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// fakeDynamo verifies the condition expressions the store builds by applying
// their semantics to an in-memory table.
type fakeDynamo struct {
	items map[string]item
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]item)}
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	var it item
	if err := attributevalue.UnmarshalMap(in.Item, &it); err != nil {
		return nil, err
	}
	if _, exists := f.items[it.TaskID]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[it.TaskID] = it
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["task_id"].(*types.AttributeValueMemberS).Value
	it, exists := f.items[id]
	if !exists {
		return &dynamodb.GetItemOutput{}, nil
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: av}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	id := in.Key["task_id"].(*types.AttributeValueMemberS).Value
	it, exists := f.items[id]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}

	matched := false
	for name, value := range in.ExpressionAttributeValues {
		s, ok := value.(*types.AttributeValueMemberS)
		if ok && len(name) > 2 && name[:2] == ":e" && s.Value == it.Status {
			matched = true
		}
	}
	if !matched {
		return nil, &types.ConditionalCheckFailedException{}
	}

	it.Status = in.ExpressionAttributeValues[":to"].(*types.AttributeValueMemberS).Value
	if loc, ok := in.ExpressionAttributeValues[":loc"]; ok {
		it.ResultLocation = loc.(*types.AttributeValueMemberS).Value
	}
	f.items[id] = it
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewWithClient(newFakeDynamo(), "tasks")

	require.NoError(t, s.Create(ctx, "task-1"))

	rec, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", rec.TaskID)
	assert.Equal(t, lifecycle.StatusNew, rec.Status)
	assert.Empty(t, rec.ResultLocation)
}

func TestCreateCollision(t *testing.T) {
	ctx := context.Background()
	s := NewWithClient(newFakeDynamo(), "tasks")

	require.NoError(t, s.Create(ctx, "task-1"))
	err := s.Create(ctx, "task-1")
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGetUnknownTask(t *testing.T) {
	s := NewWithClient(newFakeDynamo(), "tasks")
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitionCAS(t *testing.T) {
	ctx := context.Background()
	s := NewWithClient(newFakeDynamo(), "tasks")
	require.NoError(t, s.Create(ctx, "task-1"))

	// NEW -> PROCESSING applies.
	err := s.Transition(ctx, "task-1", []lifecycle.Status{lifecycle.StatusNew}, lifecycle.StatusProcessing, "")
	require.NoError(t, err)

	// Re-applying the same transition loses the condition.
	err = s.Transition(ctx, "task-1", []lifecycle.Status{lifecycle.StatusNew}, lifecycle.StatusProcessing, "")
	assert.ErrorIs(t, err, store.ErrConflict)

	// PROCESSING -> DONE sets the result location.
	err = s.Transition(ctx, "task-1", []lifecycle.Status{lifecycle.StatusProcessing}, lifecycle.StatusDone, "converted-task-1")
	require.NoError(t, err)

	rec, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusDone, rec.Status)
	assert.Equal(t, "converted-task-1", rec.ResultLocation)
}

func TestTransitionUnknownTask(t *testing.T) {
	s := NewWithClient(newFakeDynamo(), "tasks")
	err := s.Transition(context.Background(), "nope",
		[]lifecycle.Status{lifecycle.StatusNew}, lifecycle.StatusProcessing, "")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestTransitionEmptyExpectedSet(t *testing.T) {
	s := NewWithClient(newFakeDynamo(), "tasks")
	err := s.Transition(context.Background(), "task-1", nil, lifecycle.StatusProcessing, "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrConflict)
}
