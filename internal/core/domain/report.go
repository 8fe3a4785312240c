package domain

import "time"

// Report is the structured brief iteratively rewritten by each
// conversation turn.
//
// Sections are append-only; Recommendations and NextSteps are
// order-preserving sets (no duplicate values, first occurrence wins);
// RevisionHistory is newest-first.
type Report struct {
	Title            string     `json:"title"`
	ExecutiveSummary string     `json:"executive_summary"`
	Sections         []Section  `json:"sections"`
	Recommendations  []string   `json:"recommendations"`
	NextSteps        []string   `json:"next_steps"`
	LastUpdated      time.Time  `json:"last_updated"`
	RevisionHistory  []Revision `json:"revision_history"`
}

type Section struct {
	Heading string   `json:"heading"`
	Bullets []string `json:"bullets"`
}

// Revision is the audit record of one report-mutating turn.
type Revision struct {
	Timestamp  time.Time `json:"timestamp"`
	Question   string    `json:"question"`
	Highlights string    `json:"highlights"`
}

// ReportPatch carries caller-supplied report fields for a replace.
// Pointer fields distinguish "absent" from "set to zero value".
// LastUpdated is accepted so a fetched report can be PUT back verbatim,
// but the merge discards it; the server stamps its own time.
type ReportPatch struct {
	Title            *string     `json:"title"`
	ExecutiveSummary *string     `json:"executive_summary"`
	Sections         *[]Section  `json:"sections"`
	Recommendations  *[]string   `json:"recommendations"`
	NextSteps        *[]string   `json:"next_steps"`
	LastUpdated      *time.Time  `json:"last_updated"`
	RevisionHistory  *[]Revision `json:"revision_history"`
}

// BriefTurn is the result of one synthesizer invocation. Insights are
// ephemeral advisory strings, never persisted.
type BriefTurn struct {
	AgentMessage Message  `json:"message"`
	Report       Report   `json:"report"`
	Insights     []string `json:"insights"`
}
