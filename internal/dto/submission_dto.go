package dto

import (
	"time"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// SubmitCodeRequest is the payload for grading a submission.
type SubmitCodeRequest struct {
	ProblemID uint   `json:"problem_id" validate:"required,gt=0"`
	Code      string `json:"code" validate:"required,min=1"`
}

// TestCaseResultResponse reports a single test case from the grader.
type TestCaseResultResponse struct {
	Input        string `json:"input"`
	Expected     string `json:"expected"`
	ActualOutput string `json:"actual_output"`
	Passed       bool   `json:"passed"`
}

// SubmissionResponse is the graded outcome returned to the caller.
type SubmissionResponse struct {
	ProblemID        uint                     `json:"problem_id"`
	IsCorrect        bool                     `json:"is_correct"`
	Score            int                      `json:"score"`
	Passed           bool                     `json:"passed"`
	Solved           bool                     `json:"solved"`
	Feedback         string                   `json:"feedback"`
	Suggestions      []string                 `json:"suggestions"`
	TestCaseResults  []TestCaseResultResponse `json:"test_case_results"`
	CompilationError string                   `json:"compilation_error,omitempty"`
	Fallback         bool                     `json:"fallback,omitempty"`
	GradedAt         time.Time                `json:"graded_at"`
}

// NewSubmissionResponse shapes a verdict for the caller. passed reflects the
// threshold gate and solved whether the ledger now records the problem.
func NewSubmissionResponse(problemID uint, verdict models.GradeVerdict, passed, solved bool, gradedAt time.Time) SubmissionResponse {
	results := make([]TestCaseResultResponse, 0, len(verdict.TestCaseResults))
	for _, tc := range verdict.TestCaseResults {
		results = append(results, TestCaseResultResponse{
			Input:        tc.Input,
			Expected:     tc.Expected,
			ActualOutput: tc.ActualOutput,
			Passed:       tc.Passed,
		})
	}

	suggestions := verdict.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	return SubmissionResponse{
		ProblemID:        problemID,
		IsCorrect:        verdict.IsCorrect,
		Score:            verdict.Score,
		Passed:           passed,
		Solved:           solved,
		Feedback:         verdict.Feedback,
		Suggestions:      suggestions,
		TestCaseResults:  results,
		CompilationError: verdict.CompilationError,
		Fallback:         verdict.Fallback,
		GradedAt:         gradedAt,
	}
}
