package usecase

import "time"

func utcNow() time.Time {
	return time.Now().UTC()
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// keep valid UTF-8 by cutting at a rune boundary
	for i := max; i > 0; i-- {
		if (s[i] & 0xC0) != 0x80 {
			return s[:i]
		}
	}
	return ""
}
