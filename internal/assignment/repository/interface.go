package repository

import (
	"context"

	"crmcore_backend/internal/assignment/domain"

	"github.com/google/uuid"
)

// AgentDirectory is the tenant-scoped, ordered view of active agents.
type AgentDirectory interface {
	ListActiveAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.Agent, error)
}

// RotationStore owns the durable rotation pointer.
type RotationStore interface {
	AdvanceRotation(ctx context.Context, tenantID uuid.UUID, pool []domain.Agent) (domain.Assignment, error)
	GetState(ctx context.Context, tenantID uuid.UUID) (RotationState, error)
}

// LogStore is the append-only assignment log.
type LogStore interface {
	InsertLog(ctx context.Context, params domain.LogParams) error
	ListLog(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]LogEntry, int, error)
}

// Store combines all assignment persistence capabilities.
type Store interface {
	AgentDirectory
	RotationStore
	LogStore
}

var _ Store = (*Repository)(nil)
