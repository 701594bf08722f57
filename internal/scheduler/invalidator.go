package scheduler

import (
	"context"

	"crmcore_backend/internal/events"
	"crmcore_backend/platform/cache"
)

// CatalogInvalidator drops a tenant's cached pipeline report when its stage
// catalog changes, so a stale verdict never outlives an edit. The next
// sweep (or a scoped health-check task) rebuilds the report.
type CatalogInvalidator struct {
	reports *cache.Cache
}

func NewCatalogInvalidator(reports *cache.Cache) *CatalogInvalidator {
	return &CatalogInvalidator{reports: reports}
}

func (i *CatalogInvalidator) Handle(ctx context.Context, event events.Event) error {
	changed, ok := event.(events.StageCatalogChanged)
	if !ok {
		return nil
	}
	return i.reports.Delete(ctx, ReportCacheKey(changed.TenantID))
}

var _ events.Handler = (*CatalogInvalidator)(nil)
