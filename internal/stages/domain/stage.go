// Package domain holds pure pipeline-stage rules: stage typing, slug
// derivation, and the default catalog seeded for new tenants.
package domain

import (
	"regexp"
	"strings"
)

// StageType declares which record kinds may occupy a stage.
type StageType string

const (
	StageTypeLead StageType = "LEAD"
	StageTypeDeal StageType = "DEAL"
	StageTypeBoth StageType = "BOTH"
)

// Valid reports whether t is one of the known stage types.
func (t StageType) Valid() bool {
	switch t {
	case StageTypeLead, StageTypeDeal, StageTypeBoth:
		return true
	}
	return false
}

// AcceptsLeads reports whether leads may occupy a stage of this type.
func (t StageType) AcceptsLeads() bool {
	return t == StageTypeLead || t == StageTypeBoth
}

// AcceptsDeals reports whether deals may occupy a stage of this type.
func (t StageType) AcceptsDeals() bool {
	return t == StageTypeDeal || t == StageTypeBoth
}

// DefaultStageColor is applied when a stage is created without a color.
const DefaultStageColor = "#64748b"

var slugScrubber = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a stage name: lowercase with runs
// of non-alphanumeric characters collapsed to a single hyphen.
func Slugify(name string) string {
	slug := slugScrubber.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// SlugSuggestsWon reports whether a slug looks like a "won" outcome stage.
// Naming-convention heuristic used by the validate operation's warnings.
func SlugSuggestsWon(slug string) bool {
	return strings.Contains(slug, "won")
}

// SlugSuggestsLost reports whether a slug looks like a "lost" outcome stage.
func SlugSuggestsLost(slug string) bool {
	return strings.Contains(slug, "lost")
}

// DefaultStage describes one entry of the system-default catalog.
type DefaultStage struct {
	Name      string
	Slug      string
	Color     string
	SortOrder int
	Type      StageType
}

// DefaultCatalog is the stage set seeded for a tenant at bootstrap.
// Slugs line up with the deal-stage values the mapper produces.
var DefaultCatalog = []DefaultStage{
	{Name: "Lead", Slug: "lead", Color: "#64748b", SortOrder: 1, Type: StageTypeBoth},
	{Name: "Qualified", Slug: "qualified", Color: "#3b82f6", SortOrder: 2, Type: StageTypeBoth},
	{Name: "Proposal", Slug: "proposal", Color: "#8b5cf6", SortOrder: 3, Type: StageTypeBoth},
	{Name: "Negotiation", Slug: "negotiation", Color: "#f59e0b", SortOrder: 4, Type: StageTypeBoth},
	{Name: "Won", Slug: "won", Color: "#22c55e", SortOrder: 5, Type: StageTypeBoth},
	{Name: "Lost", Slug: "lost", Color: "#ef4444", SortOrder: 6, Type: StageTypeBoth},
}
