package domain

import (
	"context"
	"net/http"
)

// Service ingests asynchronous gateway notifications and reconciles them
// against the transaction trail.
type Service interface {
	// IngestWebhook verifies, parses and applies one gateway notification.
	// Replays of already-settled outcomes return nil so gateways stop
	// retrying.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
