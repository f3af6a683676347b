package types

// Gap severities
const (
	GapSeverityLow    = "low"
	GapSeverityMedium = "medium"
	GapSeverityHigh   = "high"
)

// Gap fix user actions
const (
	GapActionPending = "pending"
	GapActionAccept  = "accept"
	GapActionEdit    = "edit"
	GapActionReject  = "reject"
)

// Gap is a quality issue found while validating a BRD.
type Gap struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	SectionID   string `json:"section_id,omitempty"`
}

// ValidationReport is the outcome of the validation stage.
type ValidationReport struct {
	Score   int    `json:"score"`
	Summary string `json:"summary"`
	Gaps    []Gap  `json:"gaps"`
}

// GapFix is a suggested correction for a gap, reviewed by the user.
type GapFix struct {
	GapID      string `json:"gap_id"`
	GapType    string `json:"gap_type"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
	UserAction string `json:"user_action"`
	FinalText  string `json:"final_text,omitempty"`
}

// AppliedGapFix is an accepted remediation fed into later stage contexts.
type AppliedGapFix struct {
	Type       string `json:"type"`
	Issue      string `json:"issue"`
	Correction string `json:"correction"`
}
