package utils

import "strings"

// NormalizePhoneNG converts local Nigerian numbers (0803...) to E.164
// (+234803...). Anything that does not look Nigerian is returned with only
// separators stripped.
func NormalizePhoneNG(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	p := b.String()

	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "+"):
		return p
	case strings.HasPrefix(p, "234"):
		return "+" + p
	case strings.HasPrefix(p, "0") && len(p) == 11:
		return "+234" + p[1:]
	default:
		return p
	}
}
