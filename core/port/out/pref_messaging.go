package out

import (
	"context"

	"github.com/goccy/go-json"
)

// JobPublisher enqueues background processing jobs.
type JobPublisher interface {
	PublishProcessJob(ctx context.Context, job *ProcessJob) error
}

// ProcessJob is the payload of an asynchronous processing request.
type ProcessJob struct {
	JobID    string          `json:"job_id"`
	UserID   string          `json:"user_id"`
	Email    string          `json:"email,omitempty"`
	DataType string          `json:"data_type"`
	Entries  json.RawMessage `json:"entries"`
}
