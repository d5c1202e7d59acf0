package models

import (
	"fmt"
	"time"
)

// Problem is a coding-assessment problem as served by the problem catalog.
// The catalog owns the record; this service treats it as read-only.
type Problem struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Solution    string    `json:"solution,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	StarterCode string    `json:"starter_code,omitempty"`
	ReleaseAt   time.Time `json:"release_time"`
}

// Unlocked reports whether the problem's reference solution has been
// released at the given instant. A zero release timestamp counts as already
// elapsed: withholding published content on malformed data would be worse
// than revealing it early.
func (p Problem) Unlocked(now time.Time) bool {
	if p.ReleaseAt.IsZero() {
		return true
	}
	return !now.Before(p.ReleaseAt)
}

// Starter returns the starter code for the problem, falling back to a
// generated template when the catalog does not provide one.
func (p Problem) Starter() string {
	if p.StarterCode != "" {
		return p.StarterCode
	}
	return fmt.Sprintf(`public class Solution {
    // Solve: %s

    public static void main(String[] args) {
        Solution sol = new Solution();

        // Test your solution
        System.out.println("Testing...");
    }
}`, p.Title)
}
