package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	Name              string     `json:"name" validate:"required,min=1,max=200"`
	Company           string     `json:"company" validate:"required,min=1,max=200"`
	Email             *string    `json:"email,omitempty" validate:"omitempty,email"`
	Status            string     `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified proposal negotiation won lost"`
	StageID           *uuid.UUID `json:"stageId,omitempty"`
	Priority          string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	EstimatedValue    *float64   `json:"estimatedValue,omitempty" validate:"omitempty,min=0"`
	Notes             *string    `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Tags              []string   `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=50"`
	Source            *string    `json:"source,omitempty" validate:"omitempty,max=100"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
	// Manual assignment bypasses the round-robin scheduler.
	AssignedToUserID *uuid.UUID `json:"assignedToUserId,omitempty"`
	AssignedToName   *string    `json:"assignedToName,omitempty" validate:"omitempty,max=200"`
}

type UpdateLeadRequest struct {
	Name             *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Company          *string    `json:"company,omitempty" validate:"omitempty,min=1,max=200"`
	Email            *string    `json:"email,omitempty" validate:"omitempty,email"`
	Status           *string    `json:"status,omitempty" validate:"omitempty,max=100"`
	StageID          *uuid.UUID `json:"stageId,omitempty"`
	Priority         *string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	EstimatedValue   *float64   `json:"estimatedValue,omitempty" validate:"omitempty,min=0"`
	Notes            *string    `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Tags             *[]string  `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=50"`
	Source           *string    `json:"source,omitempty" validate:"omitempty,max=100"`
	AssignedToUserID *uuid.UUID `json:"assignedToUserId,omitempty"`
	AssignedToName   *string    `json:"assignedToName,omitempty" validate:"omitempty,max=200"`
}

type ListLeadsRequest struct {
	Status           *string    `form:"status" validate:"omitempty,max=100"`
	AssignedToUserID *uuid.UUID `form:"assignedToUserId"`
	Search           string     `form:"search" validate:"omitempty,max=200"`
	Page             int        `form:"page" validate:"omitempty,min=1"`
	PageSize         int        `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// Response DTOs
type LeadResponse struct {
	ID               uuid.UUID  `json:"id"`
	DealID           *uuid.UUID `json:"dealId,omitempty"`
	Status           string     `json:"status"`
	StageID          *uuid.UUID `json:"stageId,omitempty"`
	AssignedToUserID *uuid.UUID `json:"assignedToUserId,omitempty"`
	AssignedToName   string     `json:"assignedToName"`
	AssignmentReason string     `json:"assignmentReason,omitempty"`
	Name             string     `json:"name"`
	Email            *string    `json:"email,omitempty"`
	Company          string     `json:"company"`
	Priority         string     `json:"priority"`
	EstimatedValue   *float64   `json:"estimatedValue,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	Tags             []string   `json:"tags"`
	Source           *string    `json:"source,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type DealResponse struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	ContactName       string    `json:"contactName"`
	Value             *float64  `json:"value,omitempty"`
	Stage             string    `json:"stage"`
	Probability       int       `json:"probability"`
	ExpectedCloseDate time.Time `json:"expectedCloseDate"`
	AssignedToName    string    `json:"assignedToName"`
	Notes             *string   `json:"notes,omitempty"`
	Tags              []string  `json:"tags"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type LeadWithDealResponse struct {
	Lead LeadResponse `json:"lead"`
	Deal DealResponse `json:"deal"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
}
