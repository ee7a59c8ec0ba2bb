// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
)

var (
	labelSeparatorRe = regexp.MustCompile(`[\s_\-./]+`)
	labelStripRe     = regexp.MustCompile(`[^\p{L}\p{N} ]`)
)

// LabelKey folds a class label or tag name into a comparison key, so that
// detector output such as "red_fox" or "RED-FOX" matches the tag "Red Fox".
//
// The key is lowercase, treats runs of spaces, underscores, dashes, dots and
// slashes as one space, and drops any other punctuation or symbols.
func LabelKey(label string) string {
	s := strings.ToLower(label)
	s = labelSeparatorRe.ReplaceAllString(s, " ")
	s = labelStripRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
