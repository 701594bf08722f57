package repository

import (
	"context"

	"crmcore_backend/internal/stages/domain"

	"github.com/google/uuid"
)

// StageReader provides read-only access to the stage catalog.
type StageReader interface {
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Stage, error)
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]Stage, error)
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
}

// StageWriter provides write operations for the stage catalog.
type StageWriter interface {
	Create(ctx context.Context, params CreateStageParams) (Stage, error)
	Update(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, params UpdateStageParams) (Stage, error)
	Deactivate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, slug string) error
	Reorder(ctx context.Context, tenantID uuid.UUID, items []ReorderItem) error
	Bootstrap(ctx context.Context, tenantID uuid.UUID, defaults []domain.DefaultStage) (int, error)
}

// Store combines all stage persistence capabilities.
type Store interface {
	StageReader
	StageWriter
}

var _ Store = (*Repository)(nil)
