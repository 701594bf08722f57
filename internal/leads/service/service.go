// Package service implements the lead/deal sync coordinator. Every lead is
// created with a paired deal in one transaction, and lead edits propagate
// to the deal through the status/stage mapper. Propagation is one-way.
package service

import (
	"context"
	"time"

	assigndomain "crmcore_backend/internal/assignment/domain"
	"crmcore_backend/internal/events"
	"crmcore_backend/internal/leads/domain"
	"crmcore_backend/internal/leads/repository"
	"crmcore_backend/internal/leads/transport"
	"crmcore_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	defaultStatus    = domain.StatusNew
	defaultPriority  = "medium"
	defaultCloseDays = 30
	defaultPageSize  = 25
)

// Assigner selects the agent for a new lead and records the outcome.
// Implemented by the assignment service.
type Assigner interface {
	GetNextAgent(ctx context.Context, tenantID uuid.UUID, fallbackID uuid.UUID, fallbackName string) (assigndomain.Assignment, error)
	// LogAssignment is fire-and-forget: failures are swallowed by the
	// implementation and must never surface here.
	LogAssignment(ctx context.Context, params assigndomain.LogParams)
}

// StageCatalog checks stage references against the tenant's catalog.
// Implemented by the stages service.
type StageCatalog interface {
	ActiveStageForLeads(ctx context.Context, tenantID uuid.UUID, stageID uuid.UUID) error
}

type Service struct {
	repo     repository.Store
	assigner Assigner
	catalog  StageCatalog
	bus      events.Bus
	now      func() time.Time
}

func New(repo repository.Store, assigner Assigner, catalog StageCatalog, bus events.Bus) *Service {
	return &Service{repo: repo, assigner: assigner, catalog: catalog, bus: bus, now: time.Now}
}

// Create builds the Lead+Deal pair atomically. The scheduler picks the
// assignee unless the request pins one manually; the creating user is the
// fallback identity when the agent pool is empty.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, ownerID uuid.UUID, ownerName string, req transport.CreateLeadRequest) (transport.LeadWithDealResponse, error) {
	status := req.Status
	if status == "" {
		status = defaultStatus
	}
	priority := req.Priority
	if priority == "" {
		priority = defaultPriority
	}

	assignment, err := s.resolveAssignment(ctx, tenantID, ownerID, ownerName, req)
	if err != nil {
		return transport.LeadWithDealResponse{}, err
	}

	if req.StageID != nil {
		if err := s.catalog.ActiveStageForLeads(ctx, tenantID, *req.StageID); err != nil {
			return transport.LeadWithDealResponse{}, err
		}
	}

	closeDate := s.now().AddDate(0, 0, defaultCloseDays)
	if req.ExpectedCloseDate != nil {
		closeDate = *req.ExpectedCloseDate
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	lead, deal, err := s.repo.CreateLeadWithDeal(ctx,
		repository.CreateDealParams{
			TenantID:          tenantID,
			OwnerID:           ownerID,
			Title:             domain.DealTitle(req.Company, req.Name),
			Company:           req.Company,
			ContactName:       req.Name,
			Value:             req.EstimatedValue,
			Stage:             domain.LeadStatusToDealStage(status),
			Probability:       domain.ProbabilityForPriority(priority),
			ExpectedCloseDate: closeDate,
			AssignedToName:    assignment.UserName,
			Notes:             req.Notes,
			Tags:              tags,
		},
		repository.CreateLeadParams{
			TenantID:         tenantID,
			OwnerID:          ownerID,
			Status:           status,
			StageID:          req.StageID,
			AssignedToUserID: &assignment.UserID,
			AssignedToName:   assignment.UserName,
			Name:             req.Name,
			Email:            req.Email,
			Company:          req.Company,
			Priority:         priority,
			EstimatedValue:   req.EstimatedValue,
			Notes:            req.Notes,
			Tags:             tags,
			Source:           req.Source,
		},
	)
	if err != nil {
		return transport.LeadWithDealResponse{}, err
	}

	// Outside the transaction; a lost log entry never loses the lead.
	s.assigner.LogAssignment(ctx, assigndomain.LogParams{
		TenantID: tenantID,
		LeadID:   lead.ID,
		UserID:   assignment.UserID,
		UserName: assignment.UserName,
		Reason:   assignment.Reason,
		Cycle:    assignment.Cycle,
	})

	s.publishCreated(ctx, lead, deal, assignment.Reason)

	resp := transport.LeadWithDealResponse{
		Lead: toLeadResponse(lead),
		Deal: toDealResponse(deal),
	}
	resp.Lead.AssignmentReason = assignment.Reason
	return resp, nil
}

func (s *Service) resolveAssignment(ctx context.Context, tenantID uuid.UUID, ownerID uuid.UUID, ownerName string, req transport.CreateLeadRequest) (assigndomain.Assignment, error) {
	if req.AssignedToUserID != nil {
		name := ""
		if req.AssignedToName != nil {
			name = *req.AssignedToName
		}
		if name == "" {
			return assigndomain.Assignment{}, apperr.Validation("assignedToName is required for manual assignment")
		}
		return assigndomain.Assignment{
			UserID:   *req.AssignedToUserID,
			UserName: name,
			Reason:   assigndomain.ReasonManual,
		}, nil
	}

	return s.assigner.GetNextAgent(ctx, tenantID, ownerID, ownerName)
}

// Update applies the patch to the lead and, when the lead owns a deal,
// derives the deal-side patch in the same transaction. Identical patches
// are idempotent: nothing on this path counts or accumulates.
func (s *Service) Update(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	current, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if req.StageID != nil {
		if err := s.catalog.ActiveStageForLeads(ctx, tenantID, *req.StageID); err != nil {
			return transport.LeadResponse{}, err
		}
	}

	leadParams := repository.UpdateLeadParams{
		Status:         req.Status,
		StageID:        req.StageID,
		AssignedToName: req.AssignedToName,
		Name:           req.Name,
		Email:          req.Email,
		Company:        req.Company,
		Priority:       req.Priority,
		EstimatedValue: req.EstimatedValue,
		Notes:          req.Notes,
		Source:         req.Source,
	}
	if req.AssignedToUserID != nil {
		leadParams.AssignedToUserID = req.AssignedToUserID
		leadParams.AssignedToUserIDSet = true
	}
	if req.Tags != nil {
		leadParams.Tags = *req.Tags
		leadParams.TagsSet = true
	}

	dealParams := s.deriveDealPatch(current, req)

	lead, err := s.repo.UpdateLeadWithDeal(ctx, id, tenantID, leadParams, current.DealID, dealParams)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.publishUpdated(ctx, lead, current.DealID != nil && !dealParams.IsZero())

	return toLeadResponse(lead), nil
}

// deriveDealPatch mirrors the mapped lead fields onto the paired deal:
// stage from status, contactName/company/value/notes/tags/assignedTo when
// present, and a recomputed title when name or company changed.
func (s *Service) deriveDealPatch(current repository.Lead, req transport.UpdateLeadRequest) repository.UpdateDealParams {
	params := repository.UpdateDealParams{
		Company:        req.Company,
		ContactName:    req.Name,
		Value:          req.EstimatedValue,
		AssignedToName: req.AssignedToName,
		Notes:          req.Notes,
	}

	if req.Status != nil {
		stage := domain.LeadStatusToDealStage(*req.Status)
		params.Stage = &stage
	}
	if req.Tags != nil {
		params.Tags = *req.Tags
		params.TagsSet = true
	}
	if req.Name != nil || req.Company != nil {
		name := current.Name
		if req.Name != nil {
			name = *req.Name
		}
		company := current.Company
		if req.Company != nil {
			company = *req.Company
		}
		title := domain.DealTitle(company, name)
		params.Title = &title
	}

	return params
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (transport.LeadWithDealResponse, error) {
	lead, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.LeadWithDealResponse{}, err
	}

	resp := transport.LeadWithDealResponse{Lead: toLeadResponse(lead)}
	if lead.DealID != nil {
		deal, err := s.repo.GetDealByID(ctx, *lead.DealID, tenantID)
		if err != nil {
			return transport.LeadWithDealResponse{}, err
		}
		resp.Deal = toDealResponse(deal)
	}
	return resp, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	leads, total, err := s.repo.List(ctx, repository.ListParams{
		TenantID:         tenantID,
		Status:           req.Status,
		AssignedToUserID: req.AssignedToUserID,
		Search:           req.Search,
		Offset:           (page - 1) * pageSize,
		Limit:            pageSize,
	})
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, len(leads))
	for i, lead := range leads {
		items[i] = toLeadResponse(lead)
	}
	return transport.LeadListResponse{Items: items, Total: total, Page: page}, nil
}

func (s *Service) publishCreated(ctx context.Context, lead repository.Lead, deal repository.Deal, reason string) {
	if s.bus == nil {
		return
	}
	source := ""
	if lead.Source != nil {
		source = *lead.Source
	}
	assignedTo := uuid.Nil
	if lead.AssignedToUserID != nil {
		assignedTo = *lead.AssignedToUserID
	}
	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           lead.ID,
		DealID:           deal.ID,
		TenantID:         lead.TenantID,
		AssignedToUserID: assignedTo,
		AssignmentReason: reason,
		Status:           lead.Status,
		Source:           source,
	})
}

func (s *Service) publishUpdated(ctx context.Context, lead repository.Lead, dealTouched bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.LeadUpdated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		DealID:      lead.DealID,
		TenantID:    lead.TenantID,
		Status:      lead.Status,
		DealTouched: dealTouched,
	})
}

func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:               lead.ID,
		DealID:           lead.DealID,
		Status:           lead.Status,
		StageID:          lead.StageID,
		AssignedToUserID: lead.AssignedToUserID,
		AssignedToName:   lead.AssignedToName,
		Name:             lead.Name,
		Email:            lead.Email,
		Company:          lead.Company,
		Priority:         lead.Priority,
		EstimatedValue:   lead.EstimatedValue,
		Notes:            lead.Notes,
		Tags:             lead.Tags,
		Source:           lead.Source,
		CreatedAt:        lead.CreatedAt,
		UpdatedAt:        lead.UpdatedAt,
	}
}

func toDealResponse(deal repository.Deal) transport.DealResponse {
	return transport.DealResponse{
		ID:                deal.ID,
		Title:             deal.Title,
		Company:           deal.Company,
		ContactName:       deal.ContactName,
		Value:             deal.Value,
		Stage:             deal.Stage,
		Probability:       deal.Probability,
		ExpectedCloseDate: deal.ExpectedCloseDate,
		AssignedToName:    deal.AssignedToName,
		Notes:             deal.Notes,
		Tags:              deal.Tags,
		CreatedAt:         deal.CreatedAt,
		UpdatedAt:         deal.UpdatedAt,
	}
}
