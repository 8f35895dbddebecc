// Package dynamo implements lifecycle.TaskStore on a DynamoDB-compatible
// document table. Every status change is a conditional update keyed on the
// current status; the store never performs a blind overwrite.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mosaicworks/stylize-api/internal/config"
	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// api is the slice of the DynamoDB client the store uses; it exists so tests
// can substitute a fake.
type api interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// TaskStore implements lifecycle.TaskStore against one document table.
type TaskStore struct {
	db    api
	table string
}

// item is the stored shape of a task record. Timestamps are epoch
// milliseconds.
type item struct {
	TaskID         string `dynamodbav:"task_id"`
	Status         string `dynamodbav:"status"`
	ResultLocation string `dynamodbav:"result_location"`
	CreatedAt      int64  `dynamodbav:"created_at"`
	UpdatedAt      int64  `dynamodbav:"updated_at"`
}

// New builds a TaskStore from the shared SDK configuration.
func New(awsCfg aws.Config, cfg config.StoreConfig) *TaskStore {
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &TaskStore{db: client, table: cfg.Table}
}

// NewWithClient builds a TaskStore on an existing client. Used by tests.
func NewWithClient(db api, table string) *TaskStore {
	return &TaskStore{db: db, table: table}
}

// Create inserts a NEW record, refusing to overwrite an existing task id.
func (s *TaskStore) Create(ctx context.Context, taskID string) error {
	log := logger.FromContext(ctx)

	now := time.Now().UTC().UnixMilli()
	av, err := attributevalue.MarshalMap(item{
		TaskID:    taskID,
		Status:    string(lifecycle.StatusNew),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal task record: %w", err)
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(task_id)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return fmt.Errorf("%w: task %s", store.ErrAlreadyExists, taskID)
		}
		log.Error("failed to create task record", "task_id", taskID, "error", err)
		return fmt.Errorf("%w: creating task %s: %v", store.ErrUnavailable, taskID, err)
	}

	return nil
}

// Get returns the current record or store.ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, taskID string) (*lifecycle.Record, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"task_id": &types.AttributeValueMemberS{Value: taskID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading task %s: %v", store.ErrUnavailable, taskID, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, taskID)
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task record: %w", err)
	}

	return &lifecycle.Record{
		TaskID:         it.TaskID,
		Status:         lifecycle.Status(it.Status),
		ResultLocation: it.ResultLocation,
		CreatedAt:      time.UnixMilli(it.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(it.UpdatedAt).UTC(),
	}, nil
}

// Transition applies a compare-and-swap status update. The condition requires
// the record to exist with a status in the expected set; a failed condition
// surfaces as store.ErrConflict so the caller can re-read and converge.
func (s *TaskStore) Transition(ctx context.Context, taskID string, expected []lifecycle.Status, to lifecycle.Status, resultLocation string) error {
	if len(expected) == 0 {
		return fmt.Errorf("transition for task %s has empty expected set", taskID)
	}

	now := time.Now().UTC().UnixMilli()

	names := map[string]string{"#st": "status"}
	values := map[string]types.AttributeValue{
		":to": &types.AttributeValueMemberS{Value: string(to)},
		":ua": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
	}

	placeholders := make([]string, len(expected))
	for i, st := range expected {
		p := fmt.Sprintf(":e%d", i)
		placeholders[i] = p
		values[p] = &types.AttributeValueMemberS{Value: string(st)}
	}

	update := "SET #st = :to, updated_at = :ua"
	if resultLocation != "" {
		update += ", result_location = :loc"
		values[":loc"] = &types.AttributeValueMemberS{Value: resultLocation}
	}

	condition := fmt.Sprintf("attribute_exists(task_id) AND #st IN (%s)",
		strings.Join(placeholders, ", "))

	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"task_id": &types.AttributeValueMemberS{Value: taskID},
		},
		ConditionExpression:       aws.String(condition),
		UpdateExpression:          aws.String(update),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return fmt.Errorf("%w: task %s not in expected status for %s", store.ErrConflict, taskID, to)
		}
		return fmt.Errorf("%w: transitioning task %s to %s: %v", store.ErrUnavailable, taskID, to, err)
	}

	return nil
}
