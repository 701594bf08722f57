package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type CreateStageRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Slug        string  `json:"slug,omitempty" validate:"omitempty,min=1,max=100"`
	Color       string  `json:"color,omitempty" validate:"omitempty,hexcolor"`
	SortOrder   *int    `json:"sortOrder,omitempty" validate:"omitempty,min=0"`
	StageType   string  `json:"stageType" validate:"required,oneof=LEAD DEAL BOTH"`
	IsDefault   bool    `json:"isDefault,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type UpdateStageRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Color       *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	SortOrder   *int    `json:"sortOrder,omitempty" validate:"omitempty,min=0"`
	StageType   *string `json:"stageType,omitempty" validate:"omitempty,oneof=LEAD DEAL BOTH"`
	IsDefault   *bool   `json:"isDefault,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type ReorderItem struct {
	ID        uuid.UUID `json:"id" validate:"required"`
	SortOrder int       `json:"sortOrder" validate:"min=0"`
}

type ReorderStagesRequest struct {
	Items []ReorderItem `json:"items" validate:"required,min=1,dive"`
}

// Response DTOs
type StageResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Color           string    `json:"color"`
	SortOrder       int       `json:"sortOrder"`
	StageType       string    `json:"stageType"`
	IsDefault       bool      `json:"isDefault"`
	IsSystemDefault bool      `json:"isSystemDefault"`
	Description     *string   `json:"description,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type StageListResponse struct {
	Items []StageResponse `json:"items"`
	Total int             `json:"total"`
}

// PipelineReport is the readiness verdict for a tenant's stage catalog.
type PipelineReport struct {
	Status       string    `json:"status"` // "ok", "warning", "error"
	Errors       []string  `json:"errors"`
	Warnings     []string  `json:"warnings"`
	ActiveStages int       `json:"activeStages"`
	CheckedAt    time.Time `json:"checkedAt"`
}

type BootstrapResponse struct {
	Created int `json:"created"`
}
