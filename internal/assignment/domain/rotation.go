// Package domain holds the pure round-robin rotation rules.
package domain

import (
	"github.com/google/uuid"
)

// Assignment reasons recorded in the assignment log.
const (
	ReasonRoundRobin    = "round_robin"
	ReasonFallbackAdmin = "fallback_admin"
	ReasonManual        = "manual"
)

// Agent is one member of a tenant's ordered active-agent pool.
type Agent struct {
	ID   uuid.UUID
	Name string
}

// Assignment is the outcome of an agent selection.
type Assignment struct {
	UserID   uuid.UUID
	UserName string
	Reason   string
	Cycle    int
}

// LogParams describes one append-only assignment log entry.
type LogParams struct {
	TenantID uuid.UUID
	LeadID   uuid.UUID
	UserID   uuid.UUID
	UserName string
	Reason   string
	Cycle    int
}

// Advance moves the rotation pointer one step through a pool of the given
// size. wrapped is true when the pointer returns to 0, which is when the
// rotation cycle counter increments. poolSize must be positive.
func Advance(currentIndex, poolSize int) (next int, wrapped bool) {
	next = (currentIndex + 1) % poolSize
	return next, next == 0
}

// PickIndex clamps a persisted pointer onto the current pool. The pool can
// shrink between assignments; a stale out-of-range pointer restarts at 0.
func PickIndex(index, poolSize int) int {
	if index < 0 || index >= poolSize {
		return 0
	}
	return index
}
