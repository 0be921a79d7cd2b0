package models

// Kind discriminates the reviewable case variants.
type Kind string

const (
	KindApplication        Kind = "Application"
	KindVisaFlag           Kind = "VisaFlag"
	KindEquityVerification Kind = "EquityVerification"
	KindBoardResolution    Kind = "BoardResolution"
	KindNotice             Kind = "Notice"
)

// Kinds lists every case kind in declaration order.
var Kinds = []Kind{KindApplication, KindVisaFlag, KindEquityVerification, KindBoardResolution, KindNotice}

func (k Kind) IsValid() bool {
	switch k {
	case KindApplication, KindVisaFlag, KindEquityVerification, KindBoardResolution, KindNotice:
		return true
	}
	return false
}

// Status is the review state shared by all kinds; each kind uses a subset.
type Status string

const (
	StatusDraft            Status = "Draft"
	StatusSubmitted        Status = "Submitted"
	StatusUnderReview      Status = "UnderReview"
	StatusApproved         Status = "Approved"
	StatusRejected         Status = "Rejected"
	StatusRequiresRevision Status = "RequiresRevision"
	StatusResolved         Status = "Resolved"
	StatusArchived         Status = "Archived"
	StatusExpired          Status = "Expired"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected,
	StatusRequiresRevision, StatusResolved, StatusArchived, StatusExpired,
}

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected,
		StatusRequiresRevision, StatusResolved, StatusArchived, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further decision can follow s (archival aside).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusResolved, StatusArchived, StatusExpired:
		return true
	}
	return false
}

// IsDecision reports whether s is a reviewer verdict that triggers compliance evaluation.
func (s Status) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusResolved
}

// Priority ranks how urgently a case needs attention.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities from most (0) to least urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// SystemActor performs time-driven transitions.
var SystemActor = Actor{ID: "system", Name: "System", Role: "system"}
