package transport

import (
	"time"

	"github.com/google/uuid"
)

type ListLogRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// StateResponse exposes the tenant's rotation pointer for inspection.
type StateResponse struct {
	CurrentAgentIndex  int        `json:"currentAgentIndex"`
	RotationCycle      int        `json:"rotationCycle"`
	LastAssignedUserID *uuid.UUID `json:"lastAssignedUserId,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type AgentResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type AgentListResponse struct {
	Items []AgentResponse `json:"items"`
	Total int             `json:"total"`
}

type LogEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"leadId"`
	UserID    uuid.UUID `json:"userId"`
	UserName  string    `json:"userName"`
	Reason    string    `json:"reason"`
	Cycle     int       `json:"cycle"`
	CreatedAt time.Time `json:"createdAt"`
}

type LogListResponse struct {
	Items []LogEntryResponse `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
}
