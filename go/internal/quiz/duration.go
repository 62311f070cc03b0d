package quiz

import (
	"strconv"
	"strings"
)

// ParseDuration converts user duration input into seconds. Input is either
// "mm:ss" or a plain number of seconds. Durations that do not parse or are
// not positive yield ErrInvalidDuration.
func ParseDuration(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidDuration
	}

	if strings.Contains(raw, ":") {
		parts := strings.SplitN(raw, ":", 2)
		minutes, err := parsePart(parts[0])
		if err != nil {
			return 0, ErrInvalidDuration
		}
		seconds, err := parsePart(parts[1])
		if err != nil {
			return 0, ErrInvalidDuration
		}
		total := minutes*60 + seconds
		if total <= 0 {
			return 0, ErrInvalidDuration
		}
		return total, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, ErrInvalidDuration
	}
	return seconds, nil
}

func parsePart(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrInvalidDuration
	}
	return n, nil
}
