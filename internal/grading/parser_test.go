package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Recorded evaluator replies: clean, wrapped in prose, fenced, malformed,
// adversarial. The parser must return a well-formed verdict for all of them.
const (
	cleanResponse = `{"isCorrect": true, "score": 95, "feedback": "Correct solution.", "suggestions": [], "testCaseResults": [{"input": "[1,2,3]", "expected": "6", "passed": true}]}`

	fencedResponse = "Sure! Here is my evaluation:\n```json\n" +
		`{"isCorrect": true, "score": 100, "feedback": "Perfect.", "suggestions": [], "testCaseResults": []}` +
		"\n```\nLet me know if you need anything else."

	bareFenceResponse = "```\n" +
		`{"isCorrect": false, "score": 40, "feedback": "Off-by-one error.", "suggestions": ["Check loop bounds"], "testCaseResults": []}` +
		"\n```"

	prosePaddedResponse = `Of course. After reviewing the code carefully I conclude:
{"isCorrect": false, "score": 30, "feedback": "The algorithm is wrong.", "testCaseResults": []}
Hope that helps!`

	multilineStringResponse = `{"isCorrect": false, "score": 20, "feedback": "Line one.
Line two.", "testCaseResults": []}`

	compileErrorResponse = `{"isCorrect": false, "score": 0, "feedback": "Does not compile.", "compilationError": "missing semicolon on line 4", "testCaseResults": []}`

	codeFenceThenVerdictResponse = "Here is the corrected code:\n```java\n" +
		"public class Solution { int sum(int[] a) { return 0; } }\n" +
		"```\nAnd my evaluation:\n" +
		`{"isCorrect": false, "score": 55, "feedback": "Returns zero for every input.", "testCaseResults": []}`

	codeFenceThenJSONFenceResponse = "```java\nint x = 1;\n```\n```json\n" +
		`{"isCorrect": true, "score": 90, "feedback": "Good.", "testCaseResults": []}` +
		"\n```"
)

func TestParseCleanJSON(t *testing.T) {
	verdict := Parse(cleanResponse)

	require.True(t, verdict.IsCorrect)
	require.Equal(t, 95, verdict.Score)
	require.Equal(t, "Correct solution.", verdict.Feedback)
	require.Len(t, verdict.TestCaseResults, 1)
	require.True(t, verdict.TestCaseResults[0].Passed)
	require.False(t, verdict.Fallback)
}

func TestParseFencedBlockWrappedInProse(t *testing.T) {
	verdict := Parse(fencedResponse)

	require.True(t, verdict.IsCorrect)
	require.Equal(t, 100, verdict.Score)
	require.False(t, verdict.Fallback)
}

func TestParseBareFence(t *testing.T) {
	verdict := Parse(bareFenceResponse)

	require.False(t, verdict.IsCorrect)
	require.Equal(t, 40, verdict.Score)
	require.Equal(t, []string{"Check loop bounds"}, verdict.Suggestions)
}

func TestParseIgnoresCodeFenceBeforeBareVerdict(t *testing.T) {
	verdict := Parse(codeFenceThenVerdictResponse)

	require.False(t, verdict.Fallback)
	require.False(t, verdict.IsCorrect)
	require.Equal(t, 55, verdict.Score)
	require.Equal(t, "Returns zero for every input.", verdict.Feedback)
}

func TestParsePrefersJSONFenceOverOtherFences(t *testing.T) {
	verdict := Parse(codeFenceThenJSONFenceResponse)

	require.False(t, verdict.Fallback)
	require.True(t, verdict.IsCorrect)
	require.Equal(t, 90, verdict.Score)
}

func TestParseProsePadding(t *testing.T) {
	verdict := Parse(prosePaddedResponse)

	require.False(t, verdict.IsCorrect)
	require.Equal(t, 30, verdict.Score)
	require.False(t, verdict.Fallback)
}

func TestParseRepairsLiteralNewlinesInStrings(t *testing.T) {
	verdict := Parse(multilineStringResponse)

	require.False(t, verdict.Fallback, "repair pass should recover the verdict")
	require.Equal(t, 20, verdict.Score)
	require.Contains(t, verdict.Feedback, "Line one.")
	require.Contains(t, verdict.Feedback, "Line two.")
}

func TestParseCompilationErrorDistinctFromFeedback(t *testing.T) {
	verdict := Parse(compileErrorResponse)

	require.Equal(t, "missing semicolon on line 4", verdict.CompilationError)
	require.Equal(t, "Does not compile.", verdict.Feedback)
}

func TestParseIsTotal(t *testing.T) {
	inputs := []string{
		"",
		"not json at all",
		"{",
		"}",
		"}{",
		`{"isCorrect": true`,
		`{"score": "ninety"}`,
		`{"isCorrect": "yes", "score": 50, "feedback": "hm"}`,
		`{"isCorrect": true, "score": 200, "feedback": "out of range"}`,
		"```json\ntruncated",
		strings.Repeat("{", 1000),
		"\x00\x01\x02",
	}

	for _, input := range inputs {
		verdict := Parse(input)
		require.False(t, verdict.IsCorrect)
		require.Equal(t, 0, verdict.Score)
		require.NotEmpty(t, verdict.Feedback)
		require.NotNil(t, verdict.TestCaseResults)
		require.True(t, verdict.Fallback)
	}
}

func TestParseNeverReturnsPartialVerdict(t *testing.T) {
	// Valid JSON missing required fields must not leak through half-filled.
	verdict := Parse(`{"score": 88}`)

	require.True(t, verdict.Fallback)
	require.Equal(t, 0, verdict.Score)
}

func TestParseFallbackDiagnosticNamesStage(t *testing.T) {
	noDelimiters := Parse("the student did well, ninety out of a hundred")
	require.Contains(t, noDelimiters.Feedback, "no structured verdict")

	badShape := Parse(`{"isCorrect": 1, "score": 10, "feedback": "x"}`)
	require.Contains(t, badShape.Feedback, "strict parse failed")
}

func TestParseRoundsFractionalScores(t *testing.T) {
	verdict := Parse(`{"isCorrect": true, "score": 84.6, "feedback": "close"}`)
	require.Equal(t, 85, verdict.Score)
}
