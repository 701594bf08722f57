package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	assigndomain "crmcore_backend/internal/assignment/domain"
	"crmcore_backend/internal/leads/repository"
	"crmcore_backend/internal/leads/transport"
	"crmcore_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeStore struct {
	leads map[uuid.UUID]repository.Lead
	deals map[uuid.UUID]repository.Deal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads: make(map[uuid.UUID]repository.Lead),
		deals: make(map[uuid.UUID]repository.Deal),
	}
}

func (f *fakeStore) CreateLeadWithDeal(_ context.Context, dealParams repository.CreateDealParams, leadParams repository.CreateLeadParams) (repository.Lead, repository.Deal, error) {
	deal := repository.Deal{
		ID:                uuid.New(),
		TenantID:          dealParams.TenantID,
		OwnerID:           dealParams.OwnerID,
		Title:             dealParams.Title,
		Company:           dealParams.Company,
		ContactName:       dealParams.ContactName,
		Value:             dealParams.Value,
		Stage:             dealParams.Stage,
		Probability:       dealParams.Probability,
		ExpectedCloseDate: dealParams.ExpectedCloseDate,
		AssignedToName:    dealParams.AssignedToName,
		Notes:             dealParams.Notes,
		Tags:              dealParams.Tags,
	}
	f.deals[deal.ID] = deal

	lead := repository.Lead{
		ID:               uuid.New(),
		TenantID:         leadParams.TenantID,
		OwnerID:          leadParams.OwnerID,
		DealID:           &deal.ID,
		Status:           leadParams.Status,
		StageID:          leadParams.StageID,
		AssignedToUserID: leadParams.AssignedToUserID,
		AssignedToName:   leadParams.AssignedToName,
		Name:             leadParams.Name,
		Email:            leadParams.Email,
		Company:          leadParams.Company,
		Priority:         leadParams.Priority,
		EstimatedValue:   leadParams.EstimatedValue,
		Notes:            leadParams.Notes,
		Tags:             leadParams.Tags,
		Source:           leadParams.Source,
	}
	f.leads[lead.ID] = lead
	return lead, deal, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeStore) GetDealByID(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (repository.Deal, error) {
	deal, ok := f.deals[id]
	if !ok || deal.TenantID != tenantID {
		return repository.Deal{}, apperr.NotFound("deal not found")
	}
	return deal, nil
}

func (f *fakeStore) UpdateLeadWithDeal(_ context.Context, id uuid.UUID, tenantID uuid.UUID, leadParams repository.UpdateLeadParams, dealID *uuid.UUID, dealParams repository.UpdateDealParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}

	if leadParams.Status != nil {
		lead.Status = *leadParams.Status
	}
	if leadParams.StageID != nil {
		lead.StageID = leadParams.StageID
	}
	if leadParams.AssignedToUserIDSet {
		lead.AssignedToUserID = leadParams.AssignedToUserID
	}
	if leadParams.AssignedToName != nil {
		lead.AssignedToName = *leadParams.AssignedToName
	}
	if leadParams.Name != nil {
		lead.Name = *leadParams.Name
	}
	if leadParams.Email != nil {
		lead.Email = leadParams.Email
	}
	if leadParams.Company != nil {
		lead.Company = *leadParams.Company
	}
	if leadParams.Priority != nil {
		lead.Priority = *leadParams.Priority
	}
	if leadParams.EstimatedValue != nil {
		lead.EstimatedValue = leadParams.EstimatedValue
	}
	if leadParams.Notes != nil {
		lead.Notes = leadParams.Notes
	}
	if leadParams.TagsSet {
		lead.Tags = leadParams.Tags
	}
	if leadParams.Source != nil {
		lead.Source = leadParams.Source
	}
	f.leads[id] = lead

	if dealID != nil && !dealParams.IsZero() {
		deal, ok := f.deals[*dealID]
		if !ok || deal.TenantID != tenantID {
			return repository.Lead{}, apperr.NotFound("paired deal not found")
		}
		if dealParams.Title != nil {
			deal.Title = *dealParams.Title
		}
		if dealParams.Company != nil {
			deal.Company = *dealParams.Company
		}
		if dealParams.ContactName != nil {
			deal.ContactName = *dealParams.ContactName
		}
		if dealParams.Value != nil {
			deal.Value = dealParams.Value
		}
		if dealParams.Stage != nil {
			deal.Stage = *dealParams.Stage
		}
		if dealParams.Probability != nil {
			deal.Probability = *dealParams.Probability
		}
		if dealParams.AssignedToName != nil {
			deal.AssignedToName = *dealParams.AssignedToName
		}
		if dealParams.Notes != nil {
			deal.Notes = dealParams.Notes
		}
		if dealParams.TagsSet {
			deal.Tags = dealParams.Tags
		}
		f.deals[*dealID] = deal
	}

	return lead, nil
}

func (f *fakeStore) List(_ context.Context, params repository.ListParams) ([]repository.Lead, int, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if lead.TenantID == params.TenantID {
			out = append(out, lead)
		}
	}
	return out, len(out), nil
}

var _ repository.Store = (*fakeStore)(nil)

type fakeAssigner struct {
	next   assigndomain.Assignment
	calls  int
	logged []assigndomain.LogParams
}

func (f *fakeAssigner) GetNextAgent(_ context.Context, _ uuid.UUID, fallbackID uuid.UUID, fallbackName string) (assigndomain.Assignment, error) {
	f.calls++
	if f.next.UserID == uuid.Nil {
		return assigndomain.Assignment{
			UserID:   fallbackID,
			UserName: fallbackName,
			Reason:   assigndomain.ReasonFallbackAdmin,
		}, nil
	}
	return f.next, nil
}

func (f *fakeAssigner) LogAssignment(_ context.Context, params assigndomain.LogParams) {
	f.logged = append(f.logged, params)
}

// fakeCatalog accepts exactly the stage ids it was seeded with.
type fakeCatalog struct {
	allowed map[uuid.UUID]bool
}

func (f *fakeCatalog) ActiveStageForLeads(_ context.Context, _ uuid.UUID, stageID uuid.UUID) error {
	if f.allowed[stageID] {
		return nil
	}
	return apperr.Validation("stage does not accept leads")
}

func newTestService(store *fakeStore, assigner *fakeAssigner) *Service {
	return newTestServiceWithCatalog(store, assigner, &fakeCatalog{})
}

func newTestServiceWithCatalog(store *fakeStore, assigner *fakeAssigner, catalog *fakeCatalog) *Service {
	svc := New(store, assigner, catalog, nil)
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestCreateDerivesDealFromLead(t *testing.T) {
	store := newFakeStore()
	agent := assigndomain.Assignment{UserID: uuid.New(), UserName: "Agent One", Reason: assigndomain.ReasonRoundRobin, Cycle: 2}
	assigner := &fakeAssigner{next: agent}
	svc := newTestService(store, assigner)
	tenant := uuid.New()
	owner := uuid.New()

	value := 12500.0
	result, err := svc.Create(context.Background(), tenant, owner, "Owner", transport.CreateLeadRequest{
		Name:           "Jan Jansen",
		Company:        "Acme BV",
		Priority:       "urgent",
		EstimatedValue: &value,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if result.Deal.Title != "Acme BV - Jan Jansen" {
		t.Errorf("deal title = %q", result.Deal.Title)
	}
	if result.Deal.Stage != "lead" {
		t.Errorf("deal stage = %q, want %q (mapped from status new)", result.Deal.Stage, "lead")
	}
	if result.Deal.Probability != 80 {
		t.Errorf("probability = %d, want 80 for urgent", result.Deal.Probability)
	}
	wantClose := time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC)
	if !result.Deal.ExpectedCloseDate.Equal(wantClose) {
		t.Errorf("expected close date = %v, want %v (now + 30 days)", result.Deal.ExpectedCloseDate, wantClose)
	}
	if result.Lead.Status != "new" {
		t.Errorf("lead status = %q, want default new", result.Lead.Status)
	}
	if result.Lead.DealID == nil || *result.Lead.DealID != result.Deal.ID {
		t.Error("lead does not reference its paired deal")
	}
	if result.Lead.AssignedToUserID == nil || *result.Lead.AssignedToUserID != agent.UserID {
		t.Error("lead not assigned to the scheduled agent")
	}
	if result.Lead.AssignmentReason != assigndomain.ReasonRoundRobin {
		t.Errorf("assignment reason = %q", result.Lead.AssignmentReason)
	}

	if len(assigner.logged) != 1 {
		t.Fatalf("logged %d assignments, want 1", len(assigner.logged))
	}
	entry := assigner.logged[0]
	if entry.LeadID != result.Lead.ID || entry.UserID != agent.UserID || entry.Cycle != 2 {
		t.Errorf("log entry = %+v", entry)
	}
}

func TestCreateManualAssignmentBypassesScheduler(t *testing.T) {
	store := newFakeStore()
	assigner := &fakeAssigner{}
	svc := newTestService(store, assigner)

	manualID := uuid.New()
	manualName := "Handpicked"
	result, err := svc.Create(context.Background(), uuid.New(), uuid.New(), "Owner", transport.CreateLeadRequest{
		Name:             "Piet",
		Company:          "Beta",
		AssignedToUserID: &manualID,
		AssignedToName:   &manualName,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if assigner.calls != 0 {
		t.Errorf("scheduler consulted %d times for a manual assignment", assigner.calls)
	}
	if result.Lead.AssignmentReason != assigndomain.ReasonManual {
		t.Errorf("reason = %q, want manual", result.Lead.AssignmentReason)
	}
	if len(assigner.logged) != 1 || assigner.logged[0].Reason != assigndomain.ReasonManual {
		t.Errorf("manual assignment not logged: %+v", assigner.logged)
	}
}

func TestCreateManualAssignmentRequiresName(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeAssigner{})

	manualID := uuid.New()
	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), "Owner", transport.CreateLeadRequest{
		Name:             "Piet",
		Company:          "Beta",
		AssignedToUserID: &manualID,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Create without assignedToName = %v, want Validation", err)
	}
}

func TestCreateMapsStatusToStage(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeAssigner{next: assigndomain.Assignment{UserID: uuid.New(), UserName: "A", Reason: assigndomain.ReasonRoundRobin}})

	cases := []struct {
		status    string
		wantStage string
	}{
		{"won", "won"},
		{"negotiation", "negotiation"},
		{"imported_from_csv", "lead"}, // unknown status takes the default arm
	}

	for _, tc := range cases {
		result, err := svc.Create(context.Background(), uuid.New(), uuid.New(), "Owner", transport.CreateLeadRequest{
			Name:    "X",
			Company: "Y",
			Status:  tc.status,
		})
		if err != nil {
			t.Fatalf("Create(%q): %v", tc.status, err)
		}
		if result.Deal.Stage != tc.wantStage {
			t.Errorf("status %q: stage = %q, want %q", tc.status, result.Deal.Stage, tc.wantStage)
		}
	}
}

func TestCreateValidatesStageReference(t *testing.T) {
	store := newFakeStore()
	assigner := &fakeAssigner{next: assigndomain.Assignment{UserID: uuid.New(), UserName: "A", Reason: assigndomain.ReasonRoundRobin}}
	stageID := uuid.New()
	catalog := &fakeCatalog{allowed: map[uuid.UUID]bool{stageID: true}}
	svc := newTestServiceWithCatalog(store, assigner, catalog)
	tenant := uuid.New()
	ctx := context.Background()

	result, err := svc.Create(ctx, tenant, uuid.New(), "Owner", transport.CreateLeadRequest{
		Name:    "Jan",
		Company: "Acme",
		StageID: &stageID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Lead.StageID == nil || *result.Lead.StageID != stageID {
		t.Errorf("lead stage id = %v, want %s", result.Lead.StageID, stageID)
	}

	foreign := uuid.New()
	_, err = svc.Create(ctx, tenant, uuid.New(), "Owner", transport.CreateLeadRequest{
		Name:    "Piet",
		Company: "Beta",
		StageID: &foreign,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Create with unknown stage = %v, want Validation", err)
	}
}

func TestUpdateValidatesStageReference(t *testing.T) {
	store := newFakeStore()
	assigner := &fakeAssigner{next: assigndomain.Assignment{UserID: uuid.New(), UserName: "A", Reason: assigndomain.ReasonRoundRobin}}
	stageID := uuid.New()
	catalog := &fakeCatalog{allowed: map[uuid.UUID]bool{stageID: true}}
	svc := newTestServiceWithCatalog(store, assigner, catalog)
	tenant := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, uuid.New(), "Owner", transport.CreateLeadRequest{Name: "Jan", Company: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(ctx, created.Lead.ID, tenant, transport.UpdateLeadRequest{StageID: &stageID})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.StageID == nil || *updated.StageID != stageID {
		t.Errorf("lead stage id = %v, want %s", updated.StageID, stageID)
	}

	foreign := uuid.New()
	_, err = svc.Update(ctx, created.Lead.ID, tenant, transport.UpdateLeadRequest{StageID: &foreign})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Update with unknown stage = %v, want Validation", err)
	}
	if got := store.leads[created.Lead.ID].StageID; got == nil || *got != stageID {
		t.Errorf("rejected patch must not touch the lead: stage id = %v", got)
	}
}

func TestUpdatePropagatesMappedFieldsToDeal(t *testing.T) {
	store := newFakeStore()
	assigner := &fakeAssigner{next: assigndomain.Assignment{UserID: uuid.New(), UserName: "A", Reason: assigndomain.ReasonRoundRobin}}
	svc := newTestService(store, assigner)
	tenant := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, uuid.New(), "Owner", transport.CreateLeadRequest{Name: "Jan", Company: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	status := "qualified"
	company := "Acme Group"
	value := 9000.0
	updated, err := svc.Update(ctx, created.Lead.ID, tenant, transport.UpdateLeadRequest{
		Status:         &status,
		Company:        &company,
		EstimatedValue: &value,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != "qualified" {
		t.Errorf("lead status = %q", updated.Status)
	}

	deal := store.deals[created.Deal.ID]
	if deal.Stage != "qualified" {
		t.Errorf("deal stage = %q, want qualified", deal.Stage)
	}
	if deal.Company != "Acme Group" {
		t.Errorf("deal company = %q", deal.Company)
	}
	if deal.Title != "Acme Group - Jan" {
		t.Errorf("deal title not recomputed: %q", deal.Title)
	}
	if deal.Value == nil || *deal.Value != 9000.0 {
		t.Errorf("deal value not mirrored: %v", deal.Value)
	}
}

func TestUpdateUnmappedFieldSkipsDeal(t *testing.T) {
	store := newFakeStore()
	assigner := &fakeAssigner{next: assigndomain.Assignment{UserID: uuid.New(), UserName: "A", Reason: assigndomain.ReasonRoundRobin}}
	svc := newTestService(store, assigner)
	tenant := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, uuid.New(), "Owner", transport.CreateLeadRequest{Name: "Jan", Company: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := store.deals[created.Deal.ID]

	source := "referral"
	if _, err := svc.Update(ctx, created.Lead.ID, tenant, transport.UpdateLeadRequest{Source: &source}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	after := store.deals[created.Deal.ID]
	if !reflect.DeepEqual(before, after) {
		t.Errorf("deal changed on unmapped lead patch:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	store := newFakeStore()
	assigner := &fakeAssigner{next: assigndomain.Assignment{UserID: uuid.New(), UserName: "A", Reason: assigndomain.ReasonRoundRobin}}
	svc := newTestService(store, assigner)
	tenant := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, uuid.New(), "Owner", transport.CreateLeadRequest{Name: "Jan", Company: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	status := "proposal"
	notes := "sent quote"
	tags := []string{"warm"}
	patch := transport.UpdateLeadRequest{Status: &status, Notes: &notes, Tags: &tags}

	if _, err := svc.Update(ctx, created.Lead.ID, tenant, patch); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	leadOnce := store.leads[created.Lead.ID]
	dealOnce := store.deals[created.Deal.ID]

	if _, err := svc.Update(ctx, created.Lead.ID, tenant, patch); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	leadTwice := store.leads[created.Lead.ID]
	dealTwice := store.deals[created.Deal.ID]

	if !reflect.DeepEqual(leadOnce, leadTwice) {
		t.Errorf("lead state drifted on identical patch:\nonce  %+v\ntwice %+v", leadOnce, leadTwice)
	}
	if !reflect.DeepEqual(dealOnce, dealTwice) {
		t.Errorf("deal state drifted on identical patch:\nonce  %+v\ntwice %+v", dealOnce, dealTwice)
	}
}

func TestGetReturnsPairedDeal(t *testing.T) {
	store := newFakeStore()
	assigner := &fakeAssigner{next: assigndomain.Assignment{UserID: uuid.New(), UserName: "A", Reason: assigndomain.ReasonRoundRobin}}
	svc := newTestService(store, assigner)
	tenant := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, uuid.New(), "Owner", transport.CreateLeadRequest{Name: "Jan", Company: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, created.Lead.ID, tenant)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Deal.ID != created.Deal.ID {
		t.Errorf("Get returned deal %s, want %s", got.Deal.ID, created.Deal.ID)
	}

	// Tenant scope: the pair is invisible to another tenant.
	if _, err := svc.Get(ctx, created.Lead.ID, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("cross-tenant Get = %v, want NotFound", err)
	}
}
