// Package handler exposes read-only assignment inspection endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crmcore_backend/internal/assignment/service"
	"crmcore_backend/internal/assignment/transport"
	"crmcore_backend/platform/httpkit"
	"crmcore_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetState returns the tenant's rotation pointer.
// GET /api/v1/assignments/state
func (h *Handler) GetState(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.State(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListAgents returns the tenant's active agent pool in rotation order.
// GET /api/v1/assignments/agents
func (h *Handler) ListAgents(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Agents(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListLog returns the assignment audit trail, newest first.
// GET /api/v1/assignments/log
func (h *Handler) ListLog(c *gin.Context) {
	var req transport.ListLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Log(c.Request.Context(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
