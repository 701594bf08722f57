package repository

import (
	"context"
	"errors"
	"time"

	"crmcore_backend/internal/assignment/domain"
	"crmcore_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RotationState is the persisted per-tenant rotation pointer. One row per
// tenant, created lazily on the first pooled assignment, never deleted.
type RotationState struct {
	TenantID           uuid.UUID
	CurrentAgentIndex  int
	RotationCycle      int
	LastAssignedUserID *uuid.UUID
	UpdatedAt          time.Time
}

// LogEntry is one immutable assignment log record.
type LogEntry struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	LeadID    uuid.UUID
	UserID    uuid.UUID
	UserName  string
	Reason    string
	Cycle     int
	CreatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveAgents returns the tenant's active agent pool in stable order.
// Rotation fairness depends on this order not shifting between calls.
func (r *Repository) ListActiveAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name
		FROM agents
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0)
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(&agent.ID, &agent.Name); err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return agents, nil
}

// AdvanceRotation selects the next agent from the pool and persists the
// advanced pointer, all under a row lock on the tenant's rotation state.
// Two concurrent calls for the same tenant serialize on the lock, so each
// observes the pointer the other one wrote.
func (r *Repository) AdvanceRotation(ctx context.Context, tenantID uuid.UUID, pool []domain.Agent) (domain.Assignment, error) {
	if len(pool) == 0 {
		return domain.Assignment{}, apperr.Internal("cannot advance rotation over an empty pool")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback(ctx)

	var state RotationState
	err = tx.QueryRow(ctx, `
		SELECT tenant_id, current_agent_index, rotation_cycle, last_assigned_user_id, updated_at
		FROM round_robin_state
		WHERE tenant_id = $1
		FOR UPDATE
	`, tenantID).Scan(
		&state.TenantID, &state.CurrentAgentIndex, &state.RotationCycle,
		&state.LastAssignedUserID, &state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lazy creation; the inserted row is locked by this transaction.
		err = tx.QueryRow(ctx, `
			INSERT INTO round_robin_state (tenant_id, current_agent_index, rotation_cycle)
			VALUES ($1, 0, 0)
			RETURNING tenant_id, current_agent_index, rotation_cycle, last_assigned_user_id, updated_at
		`, tenantID).Scan(
			&state.TenantID, &state.CurrentAgentIndex, &state.RotationCycle,
			&state.LastAssignedUserID, &state.UpdatedAt,
		)
	}
	if err != nil {
		return domain.Assignment{}, err
	}

	selected := domain.PickIndex(state.CurrentAgentIndex, len(pool))
	agent := pool[selected]

	next, wrapped := domain.Advance(selected, len(pool))
	cycle := state.RotationCycle
	if wrapped {
		cycle++
	}

	_, err = tx.Exec(ctx, `
		UPDATE round_robin_state
		SET current_agent_index = $2, rotation_cycle = $3, last_assigned_user_id = $4, updated_at = now()
		WHERE tenant_id = $1
	`, tenantID, next, cycle, agent.ID)
	if err != nil {
		return domain.Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Assignment{}, err
	}

	return domain.Assignment{
		UserID:   agent.ID,
		UserName: agent.Name,
		Reason:   domain.ReasonRoundRobin,
		Cycle:    cycle,
	}, nil
}

func (r *Repository) GetState(ctx context.Context, tenantID uuid.UUID) (RotationState, error) {
	var state RotationState
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, current_agent_index, rotation_cycle, last_assigned_user_id, updated_at
		FROM round_robin_state
		WHERE tenant_id = $1
	`, tenantID).Scan(
		&state.TenantID, &state.CurrentAgentIndex, &state.RotationCycle,
		&state.LastAssignedUserID, &state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return RotationState{}, apperr.NotFound("no rotation state for tenant")
	}
	return state, err
}

// InsertLog appends one assignment log entry. Rows are never updated or
// deleted.
func (r *Repository) InsertLog(ctx context.Context, params domain.LogParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignment_logs (tenant_id, lead_id, user_id, user_name, reason, cycle)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.TenantID, params.LeadID, params.UserID, params.UserName, params.Reason, params.Cycle)
	return err
}

func (r *Repository) ListLog(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]LogEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignment_logs WHERE tenant_id = $1`, tenantID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, user_id, user_name, reason, cycle, created_at
		FROM assignment_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]LogEntry, 0)
	for rows.Next() {
		var entry LogEntry
		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.LeadID, &entry.UserID,
			&entry.UserName, &entry.Reason, &entry.Cycle, &entry.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return entries, total, nil
}
