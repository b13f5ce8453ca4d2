package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	sizePattern = regexp.MustCompile(`(?i)^(\d+)\s*([KMGT]?)B?$`)
	dayPattern  = regexp.MustCompile(`^(\d+)d(.*)$`)
)

var sizeShift = map[string]uint{"": 0, "K": 10, "M": 20, "G": 30, "T": 40}

// ParseSize parses a byte size such as "500MB", "2G" or "1024". Units are
// binary. An empty string means no limit and parses to 0.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	shift := sizeShift[strings.ToUpper(m[2])]
	if shift > 0 && n > (^uint64(0))>>shift {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return n << shift, nil
}

// ParseDuration extends time.ParseDuration with a leading day count, so
// "30d", "1d12h" and "90m" are all accepted. "0" and "" parse to 0.
// Negative durations are rejected.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	var days time.Duration
	if m := dayPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		days = time.Duration(n) * 24 * time.Hour
		if s = m[2]; s == "" {
			return days, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return days + d, nil
}
