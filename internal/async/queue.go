package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one document waiting for a pipeline run.
type Job struct {
	DocumentID  uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
