package models

import "time"

// ComplianceState enumerates the session guard's fullscreen compliance states.
type ComplianceState string

const (
	ComplianceUninitialized ComplianceState = "uninitialized"
	ComplianceCompliant     ComplianceState = "compliant"
	ComplianceExited        ComplianceState = "exited"
	ComplianceWarningShown  ComplianceState = "warning_shown"
)

// ViolationRecord tracks integrity violations for one assessment session.
// Count is the raw monotone counter; Tier is capped for display purposes.
type ViolationRecord struct {
	Count   int  `json:"count"`
	Tier    int  `json:"tier"`
	Flagged bool `json:"flagged"`
}

// ExamSession is one proctored assessment session for a single user and
// problem. The guard owns the mutable compliance state; the session record
// itself carries only identity and lifecycle metadata.
type ExamSession struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	ProblemID uint      `json:"problem_id"`
	StartedAt time.Time `json:"started_at"`
}
