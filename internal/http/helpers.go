package http

import (
	"net/http"
	"strings"

	"zetafin/internal/core"
)

// pathID returns the normalized {id} path value.
func pathID(r *http.Request) core.ID {
	return core.NormalizeID(r.PathValue("id"))
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
