package models

import "time"

// TestCaseResult is a single test-case judgement inside a verdict.
type TestCaseResult struct {
	Input        string `json:"input"`
	Expected     string `json:"expected"`
	ActualOutput string `json:"actualOutput,omitempty"`
	Passed       bool   `json:"passed"`
}

// GradeVerdict is the structured correctness judgement produced for one code
// submission. It is immutable once created: callers either receive a fully
// formed verdict or the parser's deterministic fallback, never a partial one.
type GradeVerdict struct {
	IsCorrect        bool             `json:"isCorrect"`
	Score            int              `json:"score"`
	Feedback         string           `json:"feedback"`
	Suggestions      []string         `json:"suggestions,omitempty"`
	TestCaseResults  []TestCaseResult `json:"testCaseResults"`
	CompilationError string           `json:"compilationError,omitempty"`
	Fallback         bool             `json:"fallback,omitempty"`
}

// Passing reports whether the verdict certifies the submission as solved
// under the given score threshold.
func (v GradeVerdict) Passing(threshold int) bool {
	return v.IsCorrect && v.Score >= threshold
}

// GradedSubmission records a user's most recent graded attempt at a problem
// so a reconnecting client can recover its last verdict without resubmitting.
type GradedSubmission struct {
	ProblemID uint         `json:"problem_id"`
	Verdict   GradeVerdict `json:"verdict"`
	Passed    bool         `json:"passed"`
	Solved    bool         `json:"solved"`
	GradedAt  time.Time    `json:"graded_at"`
}
