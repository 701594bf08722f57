package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crmcore_backend/internal/stages/domain"
	"crmcore_backend/internal/stages/repository"
	"crmcore_backend/internal/stages/transport"
	"crmcore_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeStore emulates the repository's contract in memory: slug uniqueness
// spans active and soft-deleted rows, reorder is all-or-nothing, and
// omitted sort orders append after the tenant maximum.
type fakeStore struct {
	stages     map[uuid.UUID]repository.Stage
	leadRefs   map[uuid.UUID]int // stage id -> lead count
	dealRefs   map[string]int    // stage slug -> deal count
	reorderErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stages:   make(map[uuid.UUID]repository.Stage),
		leadRefs: make(map[uuid.UUID]int),
		dealRefs: make(map[string]int),
	}
}

func (f *fakeStore) slugTaken(tenantID uuid.UUID, slug string, exclude uuid.UUID) bool {
	for _, s := range f.stages {
		if s.TenantID == tenantID && s.Slug == slug && s.ID != exclude {
			return true
		}
	}
	return false
}

func (f *fakeStore) maxOrder(tenantID uuid.UUID) int {
	max := 0
	for _, s := range f.stages {
		if s.TenantID == tenantID && s.SortOrder > max {
			max = s.SortOrder
		}
	}
	return max
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateStageParams) (repository.Stage, error) {
	if f.slugTaken(params.TenantID, params.Slug, uuid.Nil) {
		return repository.Stage{}, apperr.Conflict("a stage with this slug already exists")
	}

	order := f.maxOrder(params.TenantID) + 1
	if params.SortOrder != nil {
		order = *params.SortOrder
	}

	stage := repository.Stage{
		ID:              uuid.New(),
		TenantID:        params.TenantID,
		Name:            params.Name,
		Slug:            params.Slug,
		Color:           params.Color,
		SortOrder:       order,
		StageType:       params.StageType,
		IsDefault:       params.IsDefault,
		IsSystemDefault: params.IsSystemDefault,
		IsActive:        true,
		Description:     params.Description,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	f.stages[stage.ID] = stage
	return stage, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (repository.Stage, error) {
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID {
		return repository.Stage{}, apperr.NotFound("stage not found")
	}
	return stage, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, tenantID uuid.UUID, params repository.UpdateStageParams) (repository.Stage, error) {
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID {
		return repository.Stage{}, apperr.NotFound("stage not found")
	}

	if params.Slug != nil && f.slugTaken(tenantID, *params.Slug, id) {
		return repository.Stage{}, apperr.Conflict("a stage with this slug already exists")
	}

	if params.Name != nil {
		stage.Name = *params.Name
	}
	if params.Slug != nil {
		stage.Slug = *params.Slug
	}
	if params.Color != nil {
		stage.Color = *params.Color
	}
	if params.SortOrder != nil {
		stage.SortOrder = *params.SortOrder
	}
	if params.StageType != nil {
		stage.StageType = *params.StageType
	}
	if params.IsDefault != nil {
		stage.IsDefault = *params.IsDefault
	}
	if params.Description != nil {
		stage.Description = params.Description
	}
	stage.UpdatedAt = time.Now()
	f.stages[id] = stage
	return stage, nil
}

// Deactivate mirrors the repository contract: the reference check and the
// write are one atomic step.
func (f *fakeStore) Deactivate(_ context.Context, id uuid.UUID, tenantID uuid.UUID, slug string) error {
	leadCount, dealCount := f.leadRefs[id], f.dealRefs[slug]
	if leadCount > 0 || dealCount > 0 {
		return apperr.Conflict(
			fmt.Sprintf("stage is referenced by %d leads and %d deals", leadCount, dealCount),
		).WithDetails(map[string]int{
			"blockingLeads": leadCount,
			"blockingDeals": dealCount,
		})
	}

	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID || !stage.IsActive {
		return apperr.NotFound("stage not found")
	}
	stage.IsActive = false
	f.stages[id] = stage
	return nil
}

func (f *fakeStore) Reorder(_ context.Context, tenantID uuid.UUID, items []repository.ReorderItem) error {
	for _, item := range items {
		stage, ok := f.stages[item.ID]
		if !ok || stage.TenantID != tenantID {
			return apperr.Forbidden("one or more stages do not belong to this tenant")
		}
	}
	for _, item := range items {
		stage := f.stages[item.ID]
		stage.SortOrder = item.SortOrder
		f.stages[item.ID] = stage
	}
	return nil
}

func (f *fakeStore) ListActive(_ context.Context, tenantID uuid.UUID) ([]repository.Stage, error) {
	out := make([]repository.Stage, 0)
	for _, s := range f.stages {
		if s.TenantID == tenantID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListTenants(_ context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	out := make([]uuid.UUID, 0)
	for _, s := range f.stages {
		if _, ok := seen[s.TenantID]; !ok {
			seen[s.TenantID] = struct{}{}
			out = append(out, s.TenantID)
		}
	}
	return out, nil
}

func (f *fakeStore) Bootstrap(ctx context.Context, tenantID uuid.UUID, defaults []domain.DefaultStage) (int, error) {
	created := 0
	for _, def := range defaults {
		if f.slugTaken(tenantID, def.Slug, uuid.Nil) {
			continue
		}
		order := def.SortOrder
		if _, err := f.Create(ctx, repository.CreateStageParams{
			TenantID:        tenantID,
			Name:            def.Name,
			Slug:            def.Slug,
			Color:           def.Color,
			SortOrder:       &order,
			StageType:       string(def.Type),
			IsDefault:       true,
			IsSystemDefault: true,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

var _ repository.Store = (*fakeStore)(nil)

func TestCreateDerivesSlugAndAppendsOrder(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	first, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Needs Review", StageType: "LEAD"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Slug != "needs-review" {
		t.Errorf("slug = %q, want %q", first.Slug, "needs-review")
	}
	if first.SortOrder != 1 {
		t.Errorf("first stage sort order = %d, want 1", first.SortOrder)
	}

	second, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Closed Won", StageType: "BOTH"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.SortOrder != 2 {
		t.Errorf("second stage sort order = %d, want 2", second.SortOrder)
	}
}

func TestCreateConflictsWithSoftDeletedSlug(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Archived", StageType: "LEAD"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, created.ID, tenant); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// The soft-deleted row must still reserve its slug.
	_, err = svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Archived", StageType: "LEAD"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("Create with reserved slug = %v, want Conflict", err)
	}

	// A different tenant is free to use it.
	if _, err := svc.Create(ctx, uuid.New(), transport.CreateStageRequest{Name: "Archived", StageType: "LEAD"}); err != nil {
		t.Errorf("Create in other tenant: %v", err)
	}
}

func TestUpdateRenameRecomputesSlugAndChecksCollision(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	if _, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Qualified", StageType: "BOTH"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	target, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Review", StageType: "BOTH"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	name := "Qualified"
	_, err = svc.Update(ctx, target.ID, tenant, nil, transport.UpdateStageRequest{Name: &name})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("rename onto existing slug = %v, want Conflict", err)
	}

	// Renaming to itself must not collide with its own row.
	self := "Review"
	updated, err := svc.Update(ctx, target.ID, tenant, nil, transport.UpdateStageRequest{Name: &self})
	if err != nil {
		t.Fatalf("self rename: %v", err)
	}
	if updated.Slug != "review" {
		t.Errorf("slug = %q, want %q", updated.Slug, "review")
	}
}

func TestSystemDefaultStageProtection(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	if _, err := svc.Bootstrap(ctx, tenant); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	list, err := svc.List(ctx, tenant, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	target := list.Items[0]

	name := "Renamed"
	if _, err := svc.Update(ctx, target.ID, tenant, []string{"agent"}, transport.UpdateStageRequest{Name: &name}); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("non-admin update of system default = %v, want Forbidden", err)
	}

	if _, err := svc.Update(ctx, target.ID, tenant, []string{"admin"}, transport.UpdateStageRequest{Color: strPtr("#000000")}); err != nil {
		t.Errorf("admin update of system default: %v", err)
	}

	// Not even an admin may delete a system default through this flow.
	if err := svc.Delete(ctx, target.ID, tenant); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("delete of system default = %v, want Forbidden", err)
	}
}

func TestDeleteBlockedByReferencesReportsCounts(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "In Flight", StageType: "BOTH"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.leadRefs[created.ID] = 3
	store.dealRefs[created.Slug] = 2

	err = svc.Delete(ctx, created.ID, tenant)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Delete with references = %v, want Conflict", err)
	}

	details, ok := err.(*apperr.Error).Details.(map[string]int)
	if !ok {
		t.Fatalf("Conflict details = %T, want map[string]int", err.(*apperr.Error).Details)
	}
	if details["blockingLeads"] != 3 || details["blockingDeals"] != 2 {
		t.Errorf("details = %v, want blockingLeads=3 blockingDeals=2", details)
	}

	// A blocked delete is all-or-nothing: the stage stays active.
	blocked, err := store.GetByID(ctx, created.ID, tenant)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !blocked.IsActive {
		t.Error("referenced stage was deactivated despite the Conflict")
	}

	// Unreferenced stages delete cleanly and vanish from listings.
	store.leadRefs[created.ID] = 0
	store.dealRefs[created.Slug] = 0
	if err := svc.Delete(ctx, created.ID, tenant); err != nil {
		t.Fatalf("Delete unreferenced: %v", err)
	}
	list, _ := svc.List(ctx, tenant, "")
	for _, item := range list.Items {
		if item.ID == created.ID {
			t.Error("soft-deleted stage still listed")
		}
	}
}

func TestReorderForeignIDFailsWholeBatch(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	a, _ := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "A", StageType: "LEAD"})
	b, _ := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "B", StageType: "LEAD"})
	foreign, _ := svc.Create(ctx, uuid.New(), transport.CreateStageRequest{Name: "C", StageType: "LEAD"})

	err := svc.Reorder(ctx, tenant, transport.ReorderStagesRequest{Items: []transport.ReorderItem{
		{ID: a.ID, SortOrder: 10},
		{ID: foreign.ID, SortOrder: 20},
		{ID: b.ID, SortOrder: 30},
	}})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("Reorder with foreign id = %v, want Forbidden", err)
	}

	// No partial write: original orders intact.
	stageA, _ := store.GetByID(ctx, a.ID, tenant)
	stageB, _ := store.GetByID(ctx, b.ID, tenant)
	if stageA.SortOrder == 10 || stageB.SortOrder == 30 {
		t.Errorf("partial reorder applied: a=%d b=%d", stageA.SortOrder, stageB.SortOrder)
	}
}

func TestValidateReadiness(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	report, err := svc.Validate(ctx, tenant)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Status != "error" {
		t.Errorf("empty catalog status = %q, want error", report.Status)
	}

	// Deal-only stages cannot carry leads.
	if _, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Invoicing", StageType: "DEAL"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	report, _ = svc.Validate(ctx, tenant)
	if report.Status != "error" {
		t.Errorf("lead-less catalog status = %q, want error", report.Status)
	}

	if _, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Intake", StageType: "LEAD"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	report, _ = svc.Validate(ctx, tenant)
	if report.Status != "warning" || len(report.Warnings) != 2 {
		t.Errorf("catalog without outcomes: status=%q warnings=%v", report.Status, report.Warnings)
	}

	svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Closed Won", StageType: "BOTH"})
	svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Closed Lost", StageType: "BOTH"})
	report, _ = svc.Validate(ctx, tenant)
	if report.Status != "ok" || len(report.Warnings) != 0 || len(report.Errors) != 0 {
		t.Errorf("complete catalog: status=%q errors=%v warnings=%v", report.Status, report.Errors, report.Warnings)
	}
	if report.ActiveStages != 4 {
		t.Errorf("active stages = %d, want 4", report.ActiveStages)
	}
}

func TestCreateDefaultsColor(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()

	plain, err := svc.Create(ctx, uuid.New(), transport.CreateStageRequest{Name: "Intake", StageType: "LEAD"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if plain.Color != domain.DefaultStageColor {
		t.Errorf("color = %q, want default %q", plain.Color, domain.DefaultStageColor)
	}

	custom, err := svc.Create(ctx, uuid.New(), transport.CreateStageRequest{Name: "Intake", StageType: "LEAD", Color: "#112233"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if custom.Color != "#112233" {
		t.Errorf("color = %q, want the supplied value", custom.Color)
	}
}

func TestListFiltersByStageType(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Intake", StageType: "LEAD"})
	svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Invoicing", StageType: "DEAL"})
	svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Qualified", StageType: "BOTH"})

	cases := []struct {
		filter string
		want   int
	}{
		{"", 3},
		{"LEAD", 2}, // LEAD + BOTH
		{"deal", 2}, // filter is case-insensitive
		{"BOTH", 1},
	}
	for _, tc := range cases {
		list, err := svc.List(ctx, tenant, tc.filter)
		if err != nil {
			t.Fatalf("List(%q): %v", tc.filter, err)
		}
		if list.Total != tc.want {
			t.Errorf("List(%q) total = %d, want %d", tc.filter, list.Total, tc.want)
		}
	}

	if _, err := svc.List(ctx, tenant, "CONTACT"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("List with unknown type = %v, want Validation", err)
	}
}

func TestActiveStageForLeads(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	leadStage, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Intake", StageType: "LEAD"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	dealStage, err := svc.Create(ctx, tenant, transport.CreateStageRequest{Name: "Invoicing", StageType: "DEAL"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.ActiveStageForLeads(ctx, tenant, leadStage.ID); err != nil {
		t.Errorf("LEAD stage rejected: %v", err)
	}
	if err := svc.ActiveStageForLeads(ctx, tenant, dealStage.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("DEAL stage = %v, want Validation", err)
	}
	if err := svc.ActiveStageForLeads(ctx, tenant, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown stage = %v, want NotFound", err)
	}

	// Soft-deleted stages are no longer valid references.
	if err := svc.Delete(ctx, leadStage.ID, tenant); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.ActiveStageForLeads(ctx, tenant, leadStage.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("deactivated stage = %v, want Validation", err)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	tenant := uuid.New()
	ctx := context.Background()

	first, err := svc.Bootstrap(ctx, tenant)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if first.Created != len(domain.DefaultCatalog) {
		t.Errorf("first bootstrap created %d, want %d", first.Created, len(domain.DefaultCatalog))
	}

	second, err := svc.Bootstrap(ctx, tenant)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if second.Created != 0 {
		t.Errorf("second bootstrap created %d, want 0", second.Created)
	}
}

func strPtr(s string) *string { return &s }
