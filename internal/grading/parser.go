package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// verdictSchema pins the shape the parser accepts. Anything that validates
// here becomes a full verdict; anything else falls through the repair pass
// and finally to the fallback.
var verdictSchema = jsonschema.MustCompileString("verdict.schema.json", `{
	"type": "object",
	"required": ["isCorrect", "score", "feedback"],
	"properties": {
		"isCorrect": {"type": "boolean"},
		"score": {"type": "number", "minimum": 0, "maximum": 100},
		"feedback": {"type": "string"},
		"suggestions": {"type": "array", "items": {"type": "string"}},
		"compilationError": {"type": "string"},
		"testCaseResults": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"input": {"type": "string"},
					"expected": {"type": "string"},
					"actualOutput": {"type": "string"},
					"passed": {"type": "boolean"}
				}
			}
		}
	}
}`)

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyFence  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
)

// Parse extracts a GradeVerdict from the evaluator's raw reply. It is total:
// for any input it returns either a fully formed verdict or the
// deterministic fallback, never a partial object and never a panic.
//
// Candidates are tried in order with short-circuit success: a json-tagged
// fence first, then any fenced block, then the slice between the first '{'
// and the last '}' (fenced code stripped first, so braces inside a code block
// do not shadow a verdict that follows it). Each candidate gets a strict
// schema-checked decode and one repair pass escaping literal line breaks
// inside strings; only when every candidate fails does the fallback verdict
// carry the diagnostics.
func Parse(raw string) models.GradeVerdict {
	candidates := extractCandidates(raw)
	if len(candidates) == 0 {
		return Fallback("no structured verdict found in evaluator response")
	}

	var strictErr, repairErr error
	for _, candidate := range candidates {
		verdict, err := decodeStrict(candidate)
		if err == nil {
			return verdict
		}
		if strictErr == nil {
			strictErr = err
		}

		verdict, err = decodeStrict(repairNewlines(candidate))
		if err == nil {
			return verdict
		}
		if repairErr == nil {
			repairErr = err
		}
	}

	return Fallback(fmt.Sprintf("strict parse failed (%v); repair pass failed (%v)", strictErr, repairErr))
}

// Fallback is the deterministic error verdict. The diagnostic is surfaced to
// the test-taker so a resubmission is an informed retry, not a guess.
func Fallback(diagnostic string) models.GradeVerdict {
	return models.GradeVerdict{
		IsCorrect: false,
		Score:     0,
		Feedback:  fmt.Sprintf("Unable to validate code: %s. Please try again or check your code manually.", diagnostic),
		Suggestions: []string{
			"Make sure your code is syntactically correct",
			"Verify your solution logic",
		},
		TestCaseResults: []models.TestCaseResult{},
		Fallback:        true,
	}
}

func extractCandidates(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		if _, dup := seen[candidate]; dup {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	if match := jsonFence.FindStringSubmatch(raw); match != nil {
		add(match[1])
	}
	for _, match := range anyFence.FindAllStringSubmatch(raw, -1) {
		add(match[1])
	}
	if candidate, ok := extractBraced(anyFence.ReplaceAllString(raw, "")); ok {
		add(candidate)
	}
	if candidate, ok := extractBraced(raw); ok {
		add(candidate)
	}

	return out
}

func extractBraced(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func decodeStrict(candidate string) (models.GradeVerdict, error) {
	var generic interface{}
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		return models.GradeVerdict{}, fmt.Errorf("decode json: %w", err)
	}

	if err := verdictSchema.Validate(generic); err != nil {
		return models.GradeVerdict{}, fmt.Errorf("verdict shape: %w", err)
	}

	var payload struct {
		IsCorrect        bool                    `json:"isCorrect"`
		Score            float64                 `json:"score"`
		Feedback         string                  `json:"feedback"`
		Suggestions      []string                `json:"suggestions"`
		TestCaseResults  []models.TestCaseResult `json:"testCaseResults"`
		CompilationError string                  `json:"compilationError"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return models.GradeVerdict{}, fmt.Errorf("decode verdict: %w", err)
	}

	score := int(math.Round(payload.Score))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	results := payload.TestCaseResults
	if results == nil {
		results = []models.TestCaseResult{}
	}

	return models.GradeVerdict{
		IsCorrect:        payload.IsCorrect,
		Score:            score,
		Feedback:         payload.Feedback,
		Suggestions:      payload.Suggestions,
		TestCaseResults:  results,
		CompilationError: payload.CompilationError,
	}, nil
}

// repairNewlines escapes literal line breaks that appear inside JSON string
// values. Evaluators regularly emit multi-line feedback without escaping it.
func repairNewlines(candidate string) string {
	var sb strings.Builder
	sb.Grow(len(candidate))

	inString := false
	escaped := false
	for _, r := range candidate {
		if escaped {
			sb.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inString {
				escaped = true
			}
			sb.WriteRune(r)
		case '"':
			inString = !inString
			sb.WriteRune(r)
		case '\n':
			if inString {
				sb.WriteString(`\n`)
			} else {
				sb.WriteRune(r)
			}
		case '\r':
			if inString {
				sb.WriteString(`\r`)
			} else {
				sb.WriteRune(r)
			}
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
