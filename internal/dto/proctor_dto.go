package dto

import (
	"time"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// StartSessionRequest opens a proctored exam session.
type StartSessionRequest struct {
	ProblemID uint `json:"problem_id" validate:"required,gt=0"`
	Enabled   bool `json:"enabled"`
}

// SessionToggleRequest enables or disables monitoring on a live session.
type SessionToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// SessionResponse reports the state of a proctored session.
type SessionResponse struct {
	SessionID    string                 `json:"session_id"`
	UserID       uint                   `json:"user_id"`
	ProblemID    uint                   `json:"problem_id"`
	Enabled      bool                   `json:"enabled"`
	State        models.ComplianceState `json:"state"`
	ManualPrompt bool                   `json:"manual_prompt"`
	Violations   int                    `json:"violations"`
	Tier         int                    `json:"tier"`
	Flagged      bool                   `json:"flagged"`
	StartedAt    time.Time              `json:"started_at"`
}

// NewSessionResponse merges session identity with the guard's current status.
// The enabled flag comes from the guard, which owns it, not from the session
// record.
func NewSessionResponse(session models.ExamSession, state models.ComplianceState, enabled bool, manualPrompt bool, violations models.ViolationRecord) SessionResponse {
	return SessionResponse{
		SessionID:    session.ID,
		UserID:       session.UserID,
		ProblemID:    session.ProblemID,
		Enabled:      enabled,
		State:        state,
		ManualPrompt: manualPrompt,
		Violations:   violations.Count,
		Tier:         violations.Tier,
		Flagged:      violations.Flagged,
		StartedAt:    session.StartedAt,
	}
}
