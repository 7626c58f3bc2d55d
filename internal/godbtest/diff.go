// Package godbtest holds small test-only helpers shared across godb's test
// files: structural diffing for tuple and page comparisons.
package godbtest

import (
	"testing"

	"github.com/d4l3k/messagediff"
)

// AssertDeepEqual fails t with a readable structural diff if got and want
// differ, instead of a bare "not equal" message.
func AssertDeepEqual(t *testing.T, got, want any, context string) {
	t.Helper()
	diff, equal := messagediff.PrettyDiff(want, got)
	if !equal {
		t.Fatalf("%s: mismatch:\n%s", context, diff)
	}
}
