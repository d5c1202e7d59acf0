package dto

import (
	"time"

	"github.com/arka-labs/sentra-go-api/internal/models"
	"github.com/arka-labs/sentra-go-api/internal/release"
)

// ProblemResponse represents a problem to API consumers. Solution and
// explanation are populated only when the reveal gate holds: the problem is
// time-unlocked AND the caller has solved it.
type ProblemResponse struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	StarterCode string             `json:"starter_code"`
	ReleaseAt   time.Time          `json:"release_time"`
	Unlocked    bool               `json:"unlocked"`
	Solved      bool               `json:"solved"`
	Countdown   *release.Countdown `json:"countdown,omitempty"`
	Solution    string             `json:"solution,omitempty"`
	Explanation string             `json:"explanation,omitempty"`
}

// ProblemUpsertRequest is the admin payload for creating or updating a
// problem in the catalog.
type ProblemUpsertRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=255"`
	Description string    `json:"description" validate:"required"`
	Solution    string    `json:"solution"`
	Explanation string    `json:"explanation"`
	StarterCode string    `json:"starter_code"`
	ReleaseAt   time.Time `json:"release_time"`
}

// Problem converts the request into a catalog model.
func (r ProblemUpsertRequest) Problem(id uint) models.Problem {
	return models.Problem{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Solution:    r.Solution,
		Explanation: r.Explanation,
		StarterCode: r.StarterCode,
		ReleaseAt:   r.ReleaseAt,
	}
}

// NewProblemResponse shapes a problem for the caller, enforcing the reveal
// gate and attaching a countdown while the problem is still locked.
func NewProblemResponse(problem models.Problem, now time.Time, solved bool) ProblemResponse {
	unlocked := problem.Unlocked(now)

	response := ProblemResponse{
		ID:          problem.ID,
		Title:       problem.Title,
		Description: problem.Description,
		StarterCode: problem.Starter(),
		ReleaseAt:   problem.ReleaseAt,
		Unlocked:    unlocked,
		Solved:      solved,
	}

	if !unlocked {
		countdown := release.Remaining(now, problem.ReleaseAt)
		response.Countdown = &countdown
	}

	if unlocked && solved {
		response.Solution = problem.Solution
		response.Explanation = problem.Explanation
	}

	return response
}
