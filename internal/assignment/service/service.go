// Package service implements the round-robin scheduler: durable, fair
// agent rotation per tenant with an append-only assignment log.
package service

import (
	"context"

	"crmcore_backend/internal/assignment/domain"
	"crmcore_backend/internal/assignment/repository"
	"crmcore_backend/internal/assignment/transport"
	"crmcore_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultPageSize = 50

type Service struct {
	store repository.Store
	log   *logger.Logger
}

func New(store repository.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// GetNextAgent returns the next agent in the tenant's rotation. With an
// empty pool it returns the fallback identity and leaves the rotation
// state untouched: fallback assignments never consume a rotation slot.
func (s *Service) GetNextAgent(ctx context.Context, tenantID uuid.UUID, fallbackID uuid.UUID, fallbackName string) (domain.Assignment, error) {
	pool, err := s.store.ListActiveAgents(ctx, tenantID)
	if err != nil {
		return domain.Assignment{}, err
	}

	if len(pool) == 0 {
		return domain.Assignment{
			UserID:   fallbackID,
			UserName: fallbackName,
			Reason:   domain.ReasonFallbackAdmin,
		}, nil
	}

	assignment, err := s.store.AdvanceRotation(ctx, tenantID, pool)
	if err != nil {
		return domain.Assignment{}, err
	}

	s.log.AssignmentEvent(tenantID.String(), assignment.UserID.String(), assignment.Reason, assignment.Cycle)
	return assignment, nil
}

// LogAssignment appends an audit entry. Failures are logged and swallowed;
// the assignment that triggered the entry must never be rolled back over a
// lost log row.
func (s *Service) LogAssignment(ctx context.Context, params domain.LogParams) {
	if err := s.store.InsertLog(ctx, params); err != nil {
		s.log.Warn("assignment_log_write_failed",
			"tenant_id", params.TenantID.String(),
			"lead_id", params.LeadID.String(),
			"error", err.Error(),
		)
	}
}

// State returns the tenant's rotation state; NotFound before the first
// pooled assignment.
func (s *Service) State(ctx context.Context, tenantID uuid.UUID) (transport.StateResponse, error) {
	state, err := s.store.GetState(ctx, tenantID)
	if err != nil {
		return transport.StateResponse{}, err
	}
	return transport.StateResponse{
		CurrentAgentIndex:  state.CurrentAgentIndex,
		RotationCycle:      state.RotationCycle,
		LastAssignedUserID: state.LastAssignedUserID,
		UpdatedAt:          state.UpdatedAt,
	}, nil
}

// Agents returns the tenant's current active pool in rotation order.
func (s *Service) Agents(ctx context.Context, tenantID uuid.UUID) (transport.AgentListResponse, error) {
	pool, err := s.store.ListActiveAgents(ctx, tenantID)
	if err != nil {
		return transport.AgentListResponse{}, err
	}

	items := make([]transport.AgentResponse, len(pool))
	for i, agent := range pool {
		items[i] = transport.AgentResponse{ID: agent.ID, Name: agent.Name}
	}
	return transport.AgentListResponse{Items: items, Total: len(items)}, nil
}

func (s *Service) Log(ctx context.Context, tenantID uuid.UUID, req transport.ListLogRequest) (transport.LogListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	entries, total, err := s.store.ListLog(ctx, tenantID, pageSize, (page-1)*pageSize)
	if err != nil {
		return transport.LogListResponse{}, err
	}

	items := make([]transport.LogEntryResponse, len(entries))
	for i, entry := range entries {
		items[i] = transport.LogEntryResponse{
			ID:        entry.ID,
			LeadID:    entry.LeadID,
			UserID:    entry.UserID,
			UserName:  entry.UserName,
			Reason:    entry.Reason,
			Cycle:     entry.Cycle,
			CreatedAt: entry.CreatedAt,
		}
	}
	return transport.LogListResponse{Items: items, Total: total, Page: page}, nil
}
