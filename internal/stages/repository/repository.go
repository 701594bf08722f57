// Package repository provides persistence for the tenant pipeline-stage
// catalog. Slug uniqueness is enforced against every row, active or
// soft-deleted, so a retired slug can never be silently reclaimed.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crmcore_backend/internal/stages/domain"
	"crmcore_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	stageNotFoundMsg = "stage not found"
	slugTakenMsg     = "a stage with this slug already exists"
)

type Stage struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	Slug            string
	Color           string
	SortOrder       int
	StageType       string
	IsDefault       bool
	IsSystemDefault bool
	IsActive        bool
	Description     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateStageParams struct {
	TenantID        uuid.UUID
	Name            string
	Slug            string
	Color           string
	SortOrder       *int
	StageType       string
	IsDefault       bool
	IsSystemDefault bool
	Description     *string
}

type UpdateStageParams struct {
	Name        *string
	Slug        *string
	Color       *string
	SortOrder   *int
	StageType   *string
	IsDefault   *bool
	Description *string
}

// ReorderItem pairs a stage id with its new sort position.
type ReorderItem struct {
	ID        uuid.UUID
	SortOrder int
}

const stageColumns = `id, tenant_id, name, slug, color, sort_order, stage_type,
		is_default, is_system_default, is_active, description, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanStage(row pgx.Row) (Stage, error) {
	var s Stage
	err := row.Scan(
		&s.ID, &s.TenantID, &s.Name, &s.Slug, &s.Color, &s.SortOrder, &s.StageType,
		&s.IsDefault, &s.IsSystemDefault, &s.IsActive, &s.Description,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// Create inserts a stage after checking the slug against every existing row
// for the tenant, soft-deleted rows included. The check and the insert share
// one transaction so concurrent creates cannot slip past each other.
func (r *Repository) Create(ctx context.Context, params CreateStageParams) (Stage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Stage{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var slugTaken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pipeline_stages WHERE tenant_id = $1 AND slug = $2
		)
	`, params.TenantID, params.Slug).Scan(&slugTaken)
	if err != nil {
		return Stage{}, err
	}
	if slugTaken {
		return Stage{}, apperr.Conflict(slugTakenMsg).WithDetails(map[string]interface{}{"slug": params.Slug})
	}

	sortOrder := 0
	if params.SortOrder != nil {
		sortOrder = *params.SortOrder
	} else {
		// Append after the tenant's current maximum; first stage gets 1.
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(sort_order), 0) + 1 FROM pipeline_stages WHERE tenant_id = $1
		`, params.TenantID).Scan(&sortOrder)
		if err != nil {
			return Stage{}, err
		}
	}

	stage, err := scanStage(tx.QueryRow(ctx, `
		INSERT INTO pipeline_stages (
			tenant_id, name, slug, color, sort_order, stage_type,
			is_default, is_system_default, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+stageColumns+`
	`,
		params.TenantID, params.Name, params.Slug, params.Color, sortOrder,
		params.StageType, params.IsDefault, params.IsSystemDefault, params.Description,
	))
	if err != nil {
		return Stage{}, err
	}

	return stage, tx.Commit(ctx)
}

// GetByID returns the stage regardless of its active flag; listing is what
// hides soft-deleted rows, not point lookups.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Stage, error) {
	stage, err := scanStage(r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+` FROM pipeline_stages WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, apperr.NotFound(stageNotFoundMsg)
	}
	return stage, err
}

// Update applies a pointer-patch. When the patch carries a new slug the
// collision check against all other rows runs in the same transaction as
// the write.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, params UpdateStageParams) (Stage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Stage{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.Slug != nil {
		var slugTaken bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM pipeline_stages
				WHERE tenant_id = $1 AND slug = $2 AND id <> $3
			)
		`, tenantID, *params.Slug, id).Scan(&slugTaken)
		if err != nil {
			return Stage{}, err
		}
		if slugTaken {
			return Stage{}, apperr.Conflict(slugTakenMsg).WithDetails(map[string]interface{}{"slug": *params.Slug})
		}
	}

	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.Name != nil, "name", derefString(params.Name)},
		{params.Slug != nil, "slug", derefString(params.Slug)},
		{params.Color != nil, "color", derefString(params.Color)},
		{params.SortOrder != nil, "sort_order", derefInt(params.SortOrder)},
		{params.StageType != nil, "stage_type", derefString(params.StageType)},
		{params.IsDefault != nil, "is_default", params.IsDefault},
		{params.Description != nil, "description", params.Description},
	}

	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id, tenantID)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id, tenantID)

	query := fmt.Sprintf(`
		UPDATE pipeline_stages SET %s
		WHERE id = $%d AND tenant_id = $%d
		RETURNING `+stageColumns+`
	`, strings.Join(setClauses, ", "), argIdx, argIdx+1)

	stage, err := scanStage(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, apperr.NotFound(stageNotFoundMsg)
	}
	if err != nil {
		return Stage{}, err
	}

	return stage, tx.Commit(ctx)
}

// Deactivate soft-deletes a stage once nothing references it. Leads
// reference by id, deals by slug; the counts and the write share one
// transaction so a reference cannot slip in between them. The row keeps
// reserving its slug.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, slug string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var leadCount, dealCount int
	err = tx.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM leads WHERE tenant_id = $1 AND stage_id = $2),
			(SELECT COUNT(*) FROM deals WHERE tenant_id = $1 AND stage = $3)
	`, tenantID, id, slug).Scan(&leadCount, &dealCount)
	if err != nil {
		return err
	}
	if leadCount > 0 || dealCount > 0 {
		return apperr.Conflict(
			fmt.Sprintf("stage is referenced by %d leads and %d deals", leadCount, dealCount),
		).WithDetails(map[string]int{
			"blockingLeads": leadCount,
			"blockingDeals": dealCount,
		})
	}

	result, err := tx.Exec(ctx, `
		UPDATE pipeline_stages SET is_active = false, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND is_active
	`, id, tenantID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(stageNotFoundMsg)
	}
	return tx.Commit(ctx)
}

// Reorder validates that every id belongs to the tenant before touching any
// row, then applies the whole batch inside one transaction.
func (r *Repository) Reorder(ctx context.Context, tenantID uuid.UUID, items []ReorderItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var owned int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM pipeline_stages WHERE id = ANY($1) AND tenant_id = $2
	`, ids, tenantID).Scan(&owned)
	if err != nil {
		return err
	}
	if owned != len(items) {
		return apperr.Forbidden("one or more stages do not belong to this tenant")
	}

	for _, item := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE pipeline_stages SET sort_order = $1, updated_at = now()
			WHERE id = $2 AND tenant_id = $3
		`, item.SortOrder, item.ID, tenantID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListActive returns the tenant's active stages in sort order.
func (r *Repository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stageColumns+` FROM pipeline_stages
		WHERE tenant_id = $1 AND is_active
		ORDER BY sort_order ASC, name ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]Stage, 0)
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return stages, nil
}

// ListTenants returns every tenant that owns at least one stage. Used by
// the pipeline health sweep.
func (r *Repository) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM pipeline_stages`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return tenants, nil
}

// Bootstrap seeds the default catalog for a tenant, skipping slugs that
// already exist. Returns the number of stages inserted.
func (r *Repository) Bootstrap(ctx context.Context, tenantID uuid.UUID, defaults []domain.DefaultStage) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, def := range defaults {
		result, err := tx.Exec(ctx, `
			INSERT INTO pipeline_stages (
				tenant_id, name, slug, color, sort_order, stage_type,
				is_default, is_system_default
			) VALUES ($1, $2, $3, $4, $5, $6, true, true)
			ON CONFLICT (tenant_id, slug) DO NOTHING
		`, tenantID, def.Name, def.Slug, def.Color, def.SortOrder, string(def.Type))
		if err != nil {
			return 0, err
		}
		inserted += int(result.RowsAffected())
	}

	return inserted, tx.Commit(ctx)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
