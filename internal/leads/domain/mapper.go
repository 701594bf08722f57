// Package domain holds the pure lead/deal translation rules: status↔stage
// mapping, deal title derivation, and priority probability bands.
package domain

import "fmt"

// Lead statuses form a soft lifecycle; transitions are not enforced and
// unknown values fall through the mapper's default arm.
const (
	StatusNew         = "new"
	StatusContacted   = "contacted"
	StatusQualified   = "qualified"
	StatusProposal    = "proposal"
	StatusNegotiation = "negotiation"
	StatusWon         = "won"
	StatusLost        = "lost"
)

// LeadStatuses is the canonical status set, in lifecycle order.
var LeadStatuses = []string{
	StatusNew, StatusContacted, StatusQualified, StatusProposal,
	StatusNegotiation, StatusWon, StatusLost,
}

// LeadStatusToDealStage translates a lead status to the paired deal's
// stage slug. Unrecognized statuses map to "lead", never to an empty slug.
func LeadStatusToDealStage(status string) string {
	switch status {
	case StatusNew, StatusContacted:
		return "lead"
	case StatusQualified:
		return "qualified"
	case StatusProposal:
		return "proposal"
	case StatusNegotiation:
		return "negotiation"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	default:
		return "lead"
	}
}

// DealStageToLeadStatus is the reverse table. Unrecognized slugs map to
// "contacted": the record is known to be in play but its position is not.
func DealStageToLeadStatus(stage string) string {
	switch stage {
	case "lead":
		return StatusNew
	case "qualified":
		return StatusQualified
	case "proposal":
		return StatusProposal
	case "negotiation":
		return StatusNegotiation
	case "won":
		return StatusWon
	case "lost":
		return StatusLost
	default:
		return StatusContacted
	}
}

// DealTitle derives the paired deal's title from the lead's company and
// contact name.
func DealTitle(company, name string) string {
	return fmt.Sprintf("%s - %s", company, name)
}

// ProbabilityForPriority maps a lead priority to a deal win probability.
func ProbabilityForPriority(priority string) int {
	switch priority {
	case "urgent":
		return 80
	case "high":
		return 60
	case "medium":
		return 40
	default:
		return 20
	}
}
