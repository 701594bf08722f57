package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crmcore_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Lead struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	OwnerID          uuid.UUID
	DealID           *uuid.UUID
	Status           string
	StageID          *uuid.UUID
	AssignedToUserID *uuid.UUID
	AssignedToName   string
	Name             string
	Email            *string
	Company          string
	Priority         string
	EstimatedValue   *float64
	Notes            *string
	Tags             []string
	Source           *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Deal struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	OwnerID           uuid.UUID
	Title             string
	Company           string
	ContactName       string
	Value             *float64
	Stage             string
	Probability       int
	ExpectedCloseDate time.Time
	AssignedToName    string
	Notes             *string
	Tags              []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const leadColumns = `id, tenant_id, owner_id, deal_id, status, stage_id,
		assigned_to_user_id, assigned_to_name, name, email, company, priority,
		estimated_value, notes, tags, source, created_at, updated_at`

const dealColumns = `id, tenant_id, owner_id, title, company, contact_name,
		value, stage, probability, expected_close_date, assigned_to_name,
		notes, tags, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateDealParams struct {
	TenantID          uuid.UUID
	OwnerID           uuid.UUID
	Title             string
	Company           string
	ContactName       string
	Value             *float64
	Stage             string
	Probability       int
	ExpectedCloseDate time.Time
	AssignedToName    string
	Notes             *string
	Tags              []string
}

type CreateLeadParams struct {
	TenantID         uuid.UUID
	OwnerID          uuid.UUID
	Status           string
	StageID          *uuid.UUID
	AssignedToUserID *uuid.UUID
	AssignedToName   string
	Name             string
	Email            *string
	Company          string
	Priority         string
	EstimatedValue   *float64
	Notes            *string
	Tags             []string
	Source           *string
}

// CreateLeadWithDeal inserts the deal and the lead referencing it inside a
// single transaction. Either both rows persist or neither does.
func (r *Repository) CreateLeadWithDeal(ctx context.Context, dealParams CreateDealParams, leadParams CreateLeadParams) (Lead, Deal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, Deal{}, err
	}
	defer tx.Rollback(ctx)

	var deal Deal
	err = tx.QueryRow(ctx, `
		INSERT INTO deals (
			tenant_id, owner_id, title, company, contact_name, value, stage,
			probability, expected_close_date, assigned_to_name, notes, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+dealColumns,
		dealParams.TenantID, dealParams.OwnerID, dealParams.Title, dealParams.Company,
		dealParams.ContactName, dealParams.Value, dealParams.Stage, dealParams.Probability,
		dealParams.ExpectedCloseDate, dealParams.AssignedToName, dealParams.Notes, dealParams.Tags,
	).Scan(
		&deal.ID, &deal.TenantID, &deal.OwnerID, &deal.Title, &deal.Company, &deal.ContactName,
		&deal.Value, &deal.Stage, &deal.Probability, &deal.ExpectedCloseDate, &deal.AssignedToName,
		&deal.Notes, &deal.Tags, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if err != nil {
		return Lead{}, Deal{}, err
	}

	var lead Lead
	err = tx.QueryRow(ctx, `
		INSERT INTO leads (
			tenant_id, owner_id, deal_id, status, stage_id, assigned_to_user_id,
			assigned_to_name, name, email, company, priority, estimated_value,
			notes, tags, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+leadColumns,
		leadParams.TenantID, leadParams.OwnerID, deal.ID, leadParams.Status, leadParams.StageID,
		leadParams.AssignedToUserID, leadParams.AssignedToName, leadParams.Name, leadParams.Email,
		leadParams.Company, leadParams.Priority, leadParams.EstimatedValue, leadParams.Notes,
		leadParams.Tags, leadParams.Source,
	).Scan(
		&lead.ID, &lead.TenantID, &lead.OwnerID, &lead.DealID, &lead.Status, &lead.StageID,
		&lead.AssignedToUserID, &lead.AssignedToName, &lead.Name, &lead.Email, &lead.Company,
		&lead.Priority, &lead.EstimatedValue, &lead.Notes, &lead.Tags, &lead.Source,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, Deal{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, Deal{}, err
	}
	return lead, deal, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID).Scan(
		&lead.ID, &lead.TenantID, &lead.OwnerID, &lead.DealID, &lead.Status, &lead.StageID,
		&lead.AssignedToUserID, &lead.AssignedToName, &lead.Name, &lead.Email, &lead.Company,
		&lead.Priority, &lead.EstimatedValue, &lead.Notes, &lead.Tags, &lead.Source,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

func (r *Repository) GetDealByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Deal, error) {
	var deal Deal
	err := r.pool.QueryRow(ctx, `
		SELECT `+dealColumns+`
		FROM deals WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(
		&deal.ID, &deal.TenantID, &deal.OwnerID, &deal.Title, &deal.Company, &deal.ContactName,
		&deal.Value, &deal.Stage, &deal.Probability, &deal.ExpectedCloseDate, &deal.AssignedToName,
		&deal.Notes, &deal.Tags, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deal{}, apperr.NotFound("deal not found")
	}
	return deal, err
}

type UpdateLeadParams struct {
	Status              *string
	StageID             *uuid.UUID
	AssignedToUserID    *uuid.UUID
	AssignedToUserIDSet bool
	AssignedToName      *string
	Name                *string
	Email               *string
	Company             *string
	Priority            *string
	EstimatedValue      *float64
	Notes               *string
	Tags                []string
	TagsSet             bool
	Source              *string
}

type UpdateDealParams struct {
	Title          *string
	Company        *string
	ContactName    *string
	Value          *float64
	Stage          *string
	Probability    *int
	AssignedToName *string
	Notes          *string
	Tags           []string
	TagsSet        bool
}

// IsZero reports whether the patch carries no field at all.
func (p UpdateDealParams) IsZero() bool {
	return p.Title == nil && p.Company == nil && p.ContactName == nil &&
		p.Value == nil && p.Stage == nil && p.Probability == nil &&
		p.AssignedToName == nil && p.Notes == nil && !p.TagsSet
}

type patchField struct {
	enabled bool
	column  string
	value   interface{}
}

func buildPatch(fields []patchField, startIdx int) ([]string, []interface{}, int) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := startIdx

	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}
	return setClauses, args, argIdx
}

func leadPatchFields(params UpdateLeadParams) []patchField {
	return []patchField{
		{params.Status != nil, "status", params.Status},
		{params.StageID != nil, "stage_id", params.StageID},
		{params.AssignedToUserIDSet, "assigned_to_user_id", params.AssignedToUserID},
		{params.AssignedToName != nil, "assigned_to_name", params.AssignedToName},
		{params.Name != nil, "name", params.Name},
		{params.Email != nil, "email", params.Email},
		{params.Company != nil, "company", params.Company},
		{params.Priority != nil, "priority", params.Priority},
		{params.EstimatedValue != nil, "estimated_value", params.EstimatedValue},
		{params.Notes != nil, "notes", params.Notes},
		{params.TagsSet, "tags", params.Tags},
		{params.Source != nil, "source", params.Source},
	}
}

func dealPatchFields(params UpdateDealParams) []patchField {
	return []patchField{
		{params.Title != nil, "title", params.Title},
		{params.Company != nil, "company", params.Company},
		{params.ContactName != nil, "contact_name", params.ContactName},
		{params.Value != nil, "value", params.Value},
		{params.Stage != nil, "stage", params.Stage},
		{params.Probability != nil, "probability", params.Probability},
		{params.AssignedToName != nil, "assigned_to_name", params.AssignedToName},
		{params.Notes != nil, "notes", params.Notes},
		{params.TagsSet, "tags", params.Tags},
	}
}

// UpdateLeadWithDeal applies the lead patch and, when dealID is non-nil and
// the deal patch carries fields, the derived deal patch in the same
// transaction. Re-applying an identical patch is a no-op beyond updated_at.
func (r *Repository) UpdateLeadWithDeal(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, leadParams UpdateLeadParams, dealID *uuid.UUID, dealParams UpdateDealParams) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	setClauses, args, argIdx := buildPatch(leadPatchFields(leadParams), 1)

	var lead Lead
	if len(setClauses) == 0 {
		lead, err = r.GetByID(ctx, id, tenantID)
		if err != nil {
			return Lead{}, err
		}
	} else {
		setClauses = append(setClauses, "updated_at = now()")
		args = append(args, id, tenantID)

		query := fmt.Sprintf(`
			UPDATE leads SET %s
			WHERE id = $%d AND tenant_id = $%d AND deleted_at IS NULL
			RETURNING `+leadColumns,
			strings.Join(setClauses, ", "), argIdx, argIdx+1)

		err = tx.QueryRow(ctx, query, args...).Scan(
			&lead.ID, &lead.TenantID, &lead.OwnerID, &lead.DealID, &lead.Status, &lead.StageID,
			&lead.AssignedToUserID, &lead.AssignedToName, &lead.Name, &lead.Email, &lead.Company,
			&lead.Priority, &lead.EstimatedValue, &lead.Notes, &lead.Tags, &lead.Source,
			&lead.CreatedAt, &lead.UpdatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound("lead not found")
		}
		if err != nil {
			return Lead{}, err
		}
	}

	if dealID != nil && !dealParams.IsZero() {
		dealClauses, dealArgs, dealIdx := buildPatch(dealPatchFields(dealParams), 1)
		dealClauses = append(dealClauses, "updated_at = now()")
		dealArgs = append(dealArgs, *dealID, tenantID)

		query := fmt.Sprintf(`
			UPDATE deals SET %s
			WHERE id = $%d AND tenant_id = $%d
		`, strings.Join(dealClauses, ", "), dealIdx, dealIdx+1)

		result, err := tx.Exec(ctx, query, dealArgs...)
		if err != nil {
			return Lead{}, err
		}
		if result.RowsAffected() == 0 {
			return Lead{}, apperr.NotFound("paired deal not found")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

type ListParams struct {
	TenantID         uuid.UUID
	Status           *string
	AssignedToUserID *uuid.UUID
	Search           string
	Offset           int
	Limit            int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	whereClauses := []string{"tenant_id = $1", "deleted_at IS NULL"}
	args := []interface{}{params.TenantID}
	argIdx := 2

	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.AssignedToUserID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("assigned_to_user_id = $%d", argIdx))
		args = append(args, *params.AssignedToUserID)
		argIdx++
	}
	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(name ILIKE $%d OR company ILIKE $%d OR email ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}

	whereClause := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT `+leadColumns+`
		FROM leads
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(
			&lead.ID, &lead.TenantID, &lead.OwnerID, &lead.DealID, &lead.Status, &lead.StageID,
			&lead.AssignedToUserID, &lead.AssignedToName, &lead.Name, &lead.Email, &lead.Company,
			&lead.Priority, &lead.EstimatedValue, &lead.Notes, &lead.Tags, &lead.Source,
			&lead.CreatedAt, &lead.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}
