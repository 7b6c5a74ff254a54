package domain

import (
	"time"
)

// Step identifies one stage of the onboarding wizard. Steps form a fixed
// ordered sequence; progress through them is monotonic within a session.
type Step int

const (
	StepAuthorize         Step = 1
	StepDuplicateTemplate Step = 2
	StepVerify            Step = 3
	StepFirstAnalysis     Step = 4
	StepViewResults       Step = 5
	StepComplete          Step = 6
)

// StepCount is the number of steps in the wizard.
const StepCount = 6

// Valid reports whether s is within the wizard's step range.
func (s Step) Valid() bool {
	return s >= StepAuthorize && s <= StepComplete
}

// StepInfo carries presentation metadata for one step. Titles and
// descriptions exist only for rendering; the state machine keys on numbers.
type StepInfo struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Steps returns the full ordered step sequence with presentation metadata.
func Steps() []StepInfo {
	return []StepInfo{
		{Number: 1, Title: "Connect Notion", Description: "Authorize access to your Notion workspace"},
		{Number: 2, Title: "Duplicate Template", Description: "Copy the stock intelligence template into your workspace"},
		{Number: 3, Title: "Verify Setup", Description: "Locate your Stock Analyses and Stock History databases"},
		{Number: 4, Title: "First Analysis", Description: "Your first analysis is prepared automatically"},
		{Number: 5, Title: "View Results", Description: "Results appear on your dashboard page"},
		{Number: 6, Title: "Complete", Description: "Your workspace is connected"},
	}
}

// SetupProgress is the durable per-user wizard record.
type SetupProgress struct {
	UserID         string    `json:"user_id"`
	CurrentStep    Step      `json:"current_step"`
	CompletedSteps []int     `json:"completed_steps"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Completed reports whether the given step has been marked complete.
func (p *SetupProgress) Completed(step Step) bool {
	for _, n := range p.CompletedSteps {
		if Step(n) == step {
			return true
		}
	}
	return false
}

// Configuration is the committed role-to-resource mapping. Identifiers are
// canonical (dashes stripped). Once committed it is overwritten only as a
// whole, never field by field.
type Configuration struct {
	AnalysesDBID string    `json:"analyses_db_id"`
	HistoryDBID  string    `json:"history_db_id"`
	PageID       string    `json:"page_id"`
	CommittedAt  time.Time `json:"committed_at"`
}

// Confidence grades how distinguishing a detection match was.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ResourceMatch is a detected remote resource for one role. Medium and low
// confidence matches require explicit user confirmation before commit.
type ResourceMatch struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Confidence Confidence `json:"confidence"`
}

// DetectionResult holds the per-role detection outcomes. A nil match means
// the role was not found; NeedsManual is true iff any role is absent.
type DetectionResult struct {
	Analyses    *ResourceMatch `json:"analyses,omitempty"`
	History     *ResourceMatch `json:"history,omitempty"`
	Page        *ResourceMatch `json:"page,omitempty"`
	NeedsManual bool           `json:"needs_manual"`
}

// FieldError describes why one submitted identifier was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	HelpURL string `json:"help_url,omitempty"`
}

// ResourceKind is the remote resource type expected for a role.
type ResourceKind string

const (
	KindDatabase ResourceKind = "database"
	KindPage     ResourceKind = "page"
)

// SearchResult is one entry returned by the remote search provider.
type SearchResult struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Kind     ResourceKind      `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// LookupStatus is the outcome of validating a single identifier against the
// remote workspace.
type LookupStatus string

const (
	LookupFound     LookupStatus = "found"
	LookupNotFound  LookupStatus = "not_found"
	LookupWrongKind LookupStatus = "wrong_kind"
)
