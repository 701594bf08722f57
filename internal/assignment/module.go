// Package assignment provides the round-robin scheduler module.
package assignment

import (
	"crmcore_backend/internal/assignment/handler"
	"crmcore_backend/internal/assignment/repository"
	"crmcore_backend/internal/assignment/service"
	apphttp "crmcore_backend/internal/http"
	"crmcore_backend/platform/logger"
	"crmcore_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the assignment scheduler module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the assignment module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignment"
}

// Service returns the scheduler service. The leads module consumes it as
// its Assigner.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts assignment inspection routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/assignments")
	group.GET("/state", m.handler.GetState)
	group.GET("/agents", m.handler.ListAgents)
	group.GET("/log", m.handler.ListLog)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
