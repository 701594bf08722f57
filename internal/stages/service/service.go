// Package service implements the tenant stage registry: catalog CRUD with
// slug reservation, system-default protection, atomic reordering, and the
// pipeline readiness check.
package service

import (
	"context"
	"strings"
	"time"

	"crmcore_backend/internal/events"
	"crmcore_backend/internal/stages/domain"
	"crmcore_backend/internal/stages/repository"
	"crmcore_backend/internal/stages/transport"
	"crmcore_backend/platform/apperr"

	"github.com/google/uuid"
)

const adminRole = "admin"

type Service struct {
	repo repository.Store
	bus  events.Bus
}

func New(repo repository.Store, bus events.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CreateStageRequest) (transport.StageResponse, error) {
	slug := req.Slug
	if slug == "" {
		slug = domain.Slugify(req.Name)
	} else {
		slug = domain.Slugify(slug)
	}
	if slug == "" {
		return transport.StageResponse{}, apperr.Validation("stage name does not produce a usable slug")
	}

	color := req.Color
	if color == "" {
		color = domain.DefaultStageColor
	}

	stage, err := s.repo.Create(ctx, repository.CreateStageParams{
		TenantID:    tenantID,
		Name:        req.Name,
		Slug:        slug,
		Color:       color,
		SortOrder:   req.SortOrder,
		StageType:   req.StageType,
		IsDefault:   req.IsDefault,
		Description: req.Description,
	})
	if err != nil {
		return transport.StageResponse{}, err
	}

	s.publishCatalogChange(ctx, tenantID, stage.ID, "created")
	return toStageResponse(stage), nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, actorRoles []string, req transport.UpdateStageRequest) (transport.StageResponse, error) {
	current, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.StageResponse{}, err
	}

	if current.IsSystemDefault && !hasRole(actorRoles, adminRole) {
		return transport.StageResponse{}, apperr.Forbidden("system-default stages can only be modified by an administrator")
	}

	params := repository.UpdateStageParams{
		Color:       req.Color,
		SortOrder:   req.SortOrder,
		StageType:   req.StageType,
		IsDefault:   req.IsDefault,
		Description: req.Description,
	}

	// A rename recomputes the slug; the repository re-checks the collision
	// against every other row inside the write transaction.
	if req.Name != nil {
		slug := domain.Slugify(*req.Name)
		if slug == "" {
			return transport.StageResponse{}, apperr.Validation("stage name does not produce a usable slug")
		}
		params.Name = req.Name
		params.Slug = &slug
	}

	stage, err := s.repo.Update(ctx, id, tenantID, params)
	if err != nil {
		return transport.StageResponse{}, err
	}

	s.publishCatalogChange(ctx, tenantID, stage.ID, "updated")
	return toStageResponse(stage), nil
}

// Delete soft-deletes a stage. System-default stages are never deletable
// through this flow, and a stage still referenced by leads or deals blocks
// with exact counts so the caller knows what to migrate. The repository
// runs the reference check and the write in one transaction.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return err
	}

	if current.IsSystemDefault {
		return apperr.Forbidden("system-default stages cannot be deleted")
	}

	if err := s.repo.Deactivate(ctx, id, tenantID, current.Slug); err != nil {
		return err
	}

	s.publishCatalogChange(ctx, tenantID, id, "deleted")
	return nil
}

func (s *Service) Reorder(ctx context.Context, tenantID uuid.UUID, req transport.ReorderStagesRequest) error {
	items := make([]repository.ReorderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = repository.ReorderItem{ID: item.ID, SortOrder: item.SortOrder}
	}

	if err := s.repo.Reorder(ctx, tenantID, items); err != nil {
		return err
	}

	s.publishCatalogChange(ctx, tenantID, uuid.Nil, "reordered")
	return nil
}

// List returns the tenant's active stages in sort order. A non-empty
// stageType narrows the result: LEAD keeps stages leads may occupy, DEAL
// those deals may occupy, BOTH only dual-typed stages.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, stageType string) (transport.StageListResponse, error) {
	var filter domain.StageType
	if stageType != "" {
		filter = domain.StageType(strings.ToUpper(stageType))
		if !filter.Valid() {
			return transport.StageListResponse{}, apperr.Validation("unknown stage type filter")
		}
	}

	stages, err := s.repo.ListActive(ctx, tenantID)
	if err != nil {
		return transport.StageListResponse{}, err
	}

	items := make([]transport.StageResponse, 0, len(stages))
	for _, stage := range stages {
		if filter != "" && !matchesTypeFilter(filter, domain.StageType(stage.StageType)) {
			continue
		}
		items = append(items, toStageResponse(stage))
	}

	return transport.StageListResponse{Items: items, Total: len(items)}, nil
}

func matchesTypeFilter(filter, actual domain.StageType) bool {
	switch filter {
	case domain.StageTypeLead:
		return actual.AcceptsLeads()
	case domain.StageTypeDeal:
		return actual.AcceptsDeals()
	default:
		return actual == filter
	}
}

// Validate checks whether the tenant's catalog can carry the lead/deal
// lifecycle. Missing "won"/"lost" stages are detected by slug substring,
// a naming-convention heuristic carried over deliberately.
func (s *Service) Validate(ctx context.Context, tenantID uuid.UUID) (transport.PipelineReport, error) {
	stages, err := s.repo.ListActive(ctx, tenantID)
	if err != nil {
		return transport.PipelineReport{}, err
	}

	report := transport.PipelineReport{
		Status:       "ok",
		Errors:       []string{},
		Warnings:     []string{},
		ActiveStages: len(stages),
		CheckedAt:    time.Now().UTC(),
	}

	if len(stages) == 0 {
		report.Errors = append(report.Errors, "tenant has no active pipeline stages")
	}

	hasLeadStage := false
	hasWon := false
	hasLost := false
	for _, stage := range stages {
		if domain.StageType(stage.StageType).AcceptsLeads() {
			hasLeadStage = true
		}
		if domain.SlugSuggestsWon(stage.Slug) {
			hasWon = true
		}
		if domain.SlugSuggestsLost(stage.Slug) {
			hasLost = true
		}
	}

	if len(stages) > 0 && !hasLeadStage {
		report.Errors = append(report.Errors, "no active stage accepts leads (stage type LEAD or BOTH)")
	}
	if !hasWon {
		report.Warnings = append(report.Warnings, `no active stage slug contains "won"`)
	}
	if !hasLost {
		report.Warnings = append(report.Warnings, `no active stage slug contains "lost"`)
	}

	switch {
	case len(report.Errors) > 0:
		report.Status = "error"
	case len(report.Warnings) > 0:
		report.Status = "warning"
	}

	return report, nil
}

// ActiveStageForLeads verifies that a stage reference can hold a lead:
// it must exist, be active, and have a type that accepts leads. The leads
// module consults this before persisting a stage_id.
func (s *Service) ActiveStageForLeads(ctx context.Context, tenantID uuid.UUID, stageID uuid.UUID) error {
	stage, err := s.repo.GetByID(ctx, stageID, tenantID)
	if err != nil {
		return err
	}
	if !stage.IsActive {
		return apperr.Validation("stage is not active")
	}
	if !domain.StageType(stage.StageType).AcceptsLeads() {
		return apperr.Validation("stage does not accept leads")
	}
	return nil
}

// ListTenants exposes the known tenant set for the background health sweep.
func (s *Service) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListTenants(ctx)
}

// Bootstrap seeds the system-default catalog for a tenant. Existing slugs
// are left untouched.
func (s *Service) Bootstrap(ctx context.Context, tenantID uuid.UUID) (transport.BootstrapResponse, error) {
	created, err := s.repo.Bootstrap(ctx, tenantID, domain.DefaultCatalog)
	if err != nil {
		return transport.BootstrapResponse{}, err
	}

	if created > 0 {
		s.publishCatalogChange(ctx, tenantID, uuid.Nil, "bootstrapped")
	}
	return transport.BootstrapResponse{Created: created}, nil
}

func (s *Service) publishCatalogChange(ctx context.Context, tenantID uuid.UUID, stageID uuid.UUID, action string) {
	if s.bus == nil {
		return
	}
	var ref *uuid.UUID
	if stageID != uuid.Nil {
		ref = &stageID
	}
	s.bus.Publish(ctx, events.StageCatalogChanged{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  tenantID,
		StageID:   ref,
		Action:    action,
	})
}

func toStageResponse(stage repository.Stage) transport.StageResponse {
	return transport.StageResponse{
		ID:              stage.ID,
		Name:            stage.Name,
		Slug:            stage.Slug,
		Color:           stage.Color,
		SortOrder:       stage.SortOrder,
		StageType:       stage.StageType,
		IsDefault:       stage.IsDefault,
		IsSystemDefault: stage.IsSystemDefault,
		Description:     stage.Description,
		CreatedAt:       stage.CreatedAt,
		UpdatedAt:       stage.UpdatedAt,
	}
}

func hasRole(roles []string, target string) bool {
	for _, role := range roles {
		if role == target {
			return true
		}
	}
	return false
}
