// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crmcore_backend/platform/events"
	"crmcore_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a lead and its paired deal are created.
type LeadCreated struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	DealID           uuid.UUID `json:"dealId"`
	TenantID         uuid.UUID `json:"tenantId"`
	AssignedToUserID uuid.UUID `json:"assignedToUserId"`
	AssignmentReason string    `json:"assignmentReason"`
	Status           string    `json:"status"`
	Source           string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadUpdated is published after a lead (and possibly its deal) was updated.
type LeadUpdated struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	DealID      *uuid.UUID `json:"dealId,omitempty"`
	TenantID    uuid.UUID  `json:"tenantId"`
	Status      string     `json:"status"`
	DealTouched bool       `json:"dealTouched"`
}

func (e LeadUpdated) EventName() string { return "leads.updated" }

// =============================================================================
// Stage Domain Events
// =============================================================================

// StageCatalogChanged is published whenever a tenant's stage catalog is
// created, renamed, reordered, or soft-deleted. Consumers use it to
// invalidate derived state such as cached pipeline reports.
type StageCatalogChanged struct {
	BaseEvent
	TenantID uuid.UUID  `json:"tenantId"`
	StageID  *uuid.UUID `json:"stageId,omitempty"` // nil for batch actions (reorder, bootstrap)
	Action   string     `json:"action"`            // "created", "updated", "deleted", "reordered", "bootstrapped"
}

func (e StageCatalogChanged) EventName() string { return "stages.catalog.changed" }
