// Package storage defines the persistence interface for call records.
package storage

import (
	"context"

	"github.com/kotaehq/kotae/internal/models"
)

// CallStore persists completed call interactions.
type CallStore interface {
	CreateCall(ctx context.Context, call *models.CallRecord) error
	GetCall(ctx context.Context, id string) (*models.CallRecord, error)
	GetCallBySID(ctx context.Context, callSID string) (*models.CallRecord, error)
	ListCalls(ctx context.Context, org string, offset, limit int) ([]*models.CallRecord, error)
	CountCalls(ctx context.Context, org string) (int64, error)

	Close() error
}
