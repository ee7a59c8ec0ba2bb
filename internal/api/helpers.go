package api

import (
	"strconv"
	"strings"

	domainerrors "github.com/ilbumi/satin/internal/errors"
)

// parseOptionalFloat parses a query value that may be absent.
// Huma query parameters cannot be pointers, so optional numbers arrive as strings.
func parseOptionalFloat(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domainerrors.Validationf("%s must be a number", name)
	}
	return &v, nil
}

// splitCSV splits a comma separated query value, dropping blanks.
func splitCSV(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
