package sqsqueue

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// objectCreatedEvent is the storage notification delivered to the uploads
// queue when a blob lands in the upload bucket. Only the object keys matter
// to the pipeline; the key equals the task id.
type objectCreatedEvent struct {
	Records []struct {
		S3 struct {
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseObjectCreatedEvent extracts the uploaded object keys from a storage
// event notification body. Keys arrive URL-encoded in the event payload.
func ParseObjectCreatedEvent(body string) ([]string, error) {
	var event objectCreatedEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return nil, fmt.Errorf("failed to decode storage event: %w", err)
	}

	keys := make([]string, 0, len(event.Records))
	for _, rec := range event.Records {
		if rec.S3.Object.Key == "" {
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to decode object key %q: %w", rec.S3.Object.Key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ParseHandoff decodes a handoff message body.
func ParseHandoff(body string) (string, error) {
	var msg struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return "", fmt.Errorf("failed to decode handoff message: %w", err)
	}
	if msg.TaskID == "" {
		return "", fmt.Errorf("handoff message has no task_id")
	}
	return msg.TaskID, nil
}
