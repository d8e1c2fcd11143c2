package util

import (
	"regexp"
	"strings"
)

var nonPhoneRe = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone normalizes user input into E.164-like format so exclusion
// lookups and history rows key on a single spelling of each number.
func NormalizePhone(raw string) string {
	s := nonPhoneRe.ReplaceAllString(strings.TrimSpace(raw), "")

	switch {
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "0") && len(s) == 11:
		s = "+98" + s[1:]
	case strings.HasPrefix(s, "9") && len(s) == 10:
		s = "+98" + s
	case strings.HasPrefix(s, "98"):
		s = "+" + s
	}

	return s
}
