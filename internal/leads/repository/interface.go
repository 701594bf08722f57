package repository

import (
	"context"

	"github.com/google/uuid"
)

// LeadReader provides read-only access to leads and their paired deals.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Lead, error)
	GetDealByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Deal, error)
	List(ctx context.Context, params ListParams) ([]Lead, int, error)
}

// LeadWriter provides the paired-write operations of the sync coordinator.
type LeadWriter interface {
	CreateLeadWithDeal(ctx context.Context, dealParams CreateDealParams, leadParams CreateLeadParams) (Lead, Deal, error)
	UpdateLeadWithDeal(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, leadParams UpdateLeadParams, dealID *uuid.UUID, dealParams UpdateDealParams) (Lead, error)
}

// Store combines all lead persistence capabilities.
type Store interface {
	LeadReader
	LeadWriter
}

var _ Store = (*Repository)(nil)
