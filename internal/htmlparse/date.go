package htmlparse

import (
	"strings"
	"time"
)

// ParseDateDDMMYYYY parses the strict DD/MM/YYYY format the SCJN site
// uses. Anything else — including the ISO-8601 the source occasionally
// emits when its own LLM-assisted extraction runs — is treated as a
// malformed date and returns nil rather than an error (spec §9 open
// question resolution).
func ParseDateDDMMYYYY(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("02/01/2006", raw)
	if err != nil {
		return nil
	}
	return &t
}
