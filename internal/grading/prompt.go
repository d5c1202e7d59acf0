// Package grading builds evaluation prompts for the AI grading service and
// turns its free-form replies into structured verdicts. The two halves are a
// contract: the builder constrains the response shape so the parser can
// recover it, and the parser degrades to a deterministic fallback when the
// service ignores the instructions anyway.
package grading

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// DefaultDescriptionLimit bounds how much of the problem statement is
// embedded in the prompt, keeping within the evaluator's context budget.
const DefaultDescriptionLimit = 1000

// SubmissionContext pairs one code submission with its problem. It is built
// fresh per submission and never reused, so a prompt can never carry stale
// problem data.
type SubmissionContext struct {
	Code    string
	Problem models.Problem
}

// PromptBuilder assembles the natural-language evaluation request.
type PromptBuilder struct {
	sanitizer        *bluemonday.Policy
	descriptionLimit int
}

// NewPromptBuilder constructs a builder. A non-positive limit falls back to
// DefaultDescriptionLimit.
func NewPromptBuilder(descriptionLimit int) *PromptBuilder {
	if descriptionLimit <= 0 {
		descriptionLimit = DefaultDescriptionLimit
	}

	return &PromptBuilder{
		sanitizer:        bluemonday.StrictPolicy(),
		descriptionLimit: descriptionLimit,
	}
}

// Build renders the grading prompt: markup-stripped, bounded problem
// statement, the submission verbatim in a fenced block, and instructions
// that pin the response to a single strict JSON shape with a compilation
// error field distinct from logical feedback.
func (b *PromptBuilder) Build(sub SubmissionContext) string {
	description := truncateRunes(b.stripMarkup(sub.Problem.Description), b.descriptionLimit)

	reference := sub.Problem.Solution
	if reference == "" {
		reference = "Not provided"
	}

	var sb strings.Builder
	sb.WriteString("You are a Java code evaluator for a coding assessment platform.\n\n")
	sb.WriteString("PROBLEM: " + sub.Problem.Title + "\n\n")
	sb.WriteString("PROBLEM DESCRIPTION (summary):\n" + description + "\n\n")
	sb.WriteString("STUDENT'S SUBMITTED CODE:\n```java\n" + sub.Code + "\n```\n\n")
	sb.WriteString("EXPECTED SOLUTION (reference):\n```java\n" + reference + "\n```\n\n")
	sb.WriteString("TASK: Evaluate the student's code and determine if it correctly solves the problem.\n\n")
	sb.WriteString("EVALUATION CRITERIA:\n")
	sb.WriteString("1. Does the code compile (syntactically correct Java)?\n")
	sb.WriteString("2. Does the algorithm logic appear correct?\n")
	sb.WriteString("3. Does it handle edge cases appropriately?\n")
	sb.WriteString("4. Would it produce correct output for typical test cases?\n\n")
	sb.WriteString("Accept any valid entry point; do not require a specific method name unless the problem statement mandates one.\n")
	sb.WriteString("If the code would not compile, report the problem in compilationError and leave feedback for logical issues only.\n\n")
	sb.WriteString("RESPOND IN THIS EXACT JSON FORMAT ONLY (no other text):\n")
	sb.WriteString(`{
  "isCorrect": true/false,
  "score": 0-100,
  "feedback": "Brief explanation of why the solution is correct/incorrect",
  "suggestions": ["suggestion 1", "suggestion 2"] or [],
  "testCaseResults": [
    {"input": "example input", "expected": "expected output", "passed": true/false}
  ],
  "compilationError": "compiler diagnostic, or omit when the code compiles"
}`)

	return sb.String()
}

func (b *PromptBuilder) stripMarkup(input string) string {
	stripped := b.sanitizer.Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// truncateRunes caps the statement at limit runes, never cutting inside a
// multi-byte sequence.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	seen := 0
	for i := range s {
		if seen == limit {
			return s[:i]
		}
		seen++
	}
	return s
}
