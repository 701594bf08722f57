// Package leads provides the lead/deal bounded context module.
package leads

import (
	"crmcore_backend/internal/events"
	apphttp "crmcore_backend/internal/http"
	"crmcore_backend/internal/leads/handler"
	"crmcore_backend/internal/leads/repository"
	"crmcore_backend/internal/leads/service"
	"crmcore_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the lead/deal sync module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module. The assigner and the
// stage catalog are the assignment and stages module services, injected by
// the composition root.
func NewModule(pool *pgxpool.Pool, assigner service.Assigner, catalog service.StageCatalog, val *validator.Validator, bus events.Bus) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, assigner, catalog, bus)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads")
	group.GET("", m.handler.ListLeads)
	group.POST("", m.handler.CreateLead)
	group.GET("/:id", m.handler.GetLead)
	group.PUT("/:id", m.handler.UpdateLead)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
