// Package stages provides the pipeline stage bounded context module.
package stages

import (
	"crmcore_backend/internal/events"
	apphttp "crmcore_backend/internal/http"
	"crmcore_backend/internal/stages/handler"
	"crmcore_backend/internal/stages/repository"
	"crmcore_backend/internal/stages/service"
	"crmcore_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the stage registry module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the stages module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "stages"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts stage routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/stages")
	group.GET("", m.handler.ListStages)
	group.POST("", m.handler.CreateStage)
	group.GET("/validate", m.handler.ValidatePipeline)
	group.PUT("/reorder", m.handler.ReorderStages)
	group.PUT("/:id", m.handler.UpdateStage)
	group.DELETE("/:id", m.handler.DeleteStage)

	ctx.Admin.POST("/stages/bootstrap", m.handler.BootstrapStages)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
