// Package sqsqueue implements the queue collaborator on SQS-compatible
// queues. Delivery is at-least-once and possibly duplicated; consumers delete
// a message only after handling it, so an abandoned invocation is retried by
// redelivery.
package sqsqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// Message is one received queue message.
type Message struct {
	Body          string
	ReceiptHandle string
}

// Queue wraps one SQS queue URL.
type Queue struct {
	client *sqs.Client
	url    string
}

// New builds a Queue from the shared SDK configuration.
func New(awsCfg aws.Config, endpoint, url string) *Queue {
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Queue{client: client, url: url}
}

// SendHandoff enqueues the handoff message correlating a validated task to
// its transform step.
func (q *Queue) SendHandoff(ctx context.Context, msg lifecycle.HandoffMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode handoff message: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("%w: sending handoff for task %s: %v", store.ErrUnavailable, msg.TaskID, err)
	}
	return nil
}

// Receive long-polls the queue for a batch of messages.
func (q *Queue) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: receiving messages: %v", store.ErrUnavailable, err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete acknowledges a handled message. An un-deleted message reappears
// after its visibility timeout.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting message: %v", store.ErrUnavailable, err)
	}
	return nil
}
