// Package sanitize cleans free-text input before it is persisted.
package sanitize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// htmlTagPattern detects markup worth converting.
	htmlTagPattern = regexp.MustCompile(`(?i)<(p|br|div|span|b|i|u|strong|em|a|ul|ol|li|h[1-6]|blockquote|script|style|img|iframe|table)[\s>/]`)
	anyTagPattern  = regexp.MustCompile(`<[^>]*>`)
	spaceRun       = regexp.MustCompile(`\s+`)
	hexColor       = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

var folder = cases.Fold()

// Text sanitizes multi-line free text: Unicode NFC, control characters
// removed, HTML converted to Markdown, leftover tags stripped, trimmed and
// truncated to maxRunes (0 means unbounded).
func Text(s string, maxRunes int) string {
	s = norm.NFC.String(s)
	s = stripControl(s, true)
	s = htmlToMarkdown(s)
	s = anyTagPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return truncate(s, maxRunes)
}

// Name sanitizes a single-line label such as a tag or project name.
// Whitespace runs collapse to one space.
func Name(s string, maxRunes int) string {
	s = norm.NFC.String(s)
	s = stripControl(s, false)
	s = anyTagPattern.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return truncate(s, maxRunes)
}

// Labels sanitizes each entry with Name and drops blanks and duplicates,
// keeping first-seen order.
func Labels(in []string, maxRunes int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		l = Name(l, maxRunes)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Color returns a lowercase #rrggbb color, or an error.
// An empty input stays empty.
func Color(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if !hexColor.MatchString(s) {
		return "", fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	return strings.ToLower(s), nil
}

// URL normalizes an http(s) URL, adding https:// when no scheme is present.
func URL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", s)
	}
	return u.String(), nil
}

// Fold returns a case-folded form for case-insensitive comparison.
func Fold(s string) string {
	return folder.String(s)
}

// Filename strips directory components and characters unsafe on common
// filesystems.
func Filename(s string) string {
	s = norm.NFC.String(s)
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`<>:"|?*`, r):
			return -1
		default:
			return r
		}
	}, s)
	s = strings.TrimSpace(strings.Trim(s, "."))
	return truncate(s, 255)
}

func htmlToMarkdown(s string) string {
	if s == "" || !htmlTagPattern.MatchString(s) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return md
}

func stripControl(s string, keepNewlines bool) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			if keepNewlines {
				return r
			}
			return ' '
		}
		if r == '\r' || unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxRunes]))
}
