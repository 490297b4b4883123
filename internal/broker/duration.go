package broker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sessionBindingTTL is the lifetime of a "--session" binding (§4.3).
const sessionBindingTTL = 24 * time.Hour

// maxBindingTTL caps any explicit duration at 90 days (§4.3).
const maxBindingTTL = 90 * 24 * time.Hour

// ParseDuration interprets a bind_active duration argument (§4.3):
// empty means permanent (permanent=true, no expiry), "--session"
// means 24h, and otherwise an integer followed by m|h|d, capped at 90
// days.
func ParseDuration(s string) (dur time.Duration, permanent bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true, nil
	}
	if s == "--session" {
		return sessionBindingTTL, false, nil
	}

	if len(s) < 2 {
		return 0, false, fmt.Errorf("broker: invalid duration %q", s)
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]
	n, convErr := strconv.Atoi(numPart)
	if convErr != nil || n <= 0 {
		return 0, false, fmt.Errorf("broker: invalid duration %q", s)
	}

	var d time.Duration
	switch unit {
	case 'm':
		d = time.Duration(n) * time.Minute
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	default:
		return 0, false, fmt.Errorf("broker: unknown duration unit %q", string(unit))
	}

	if d > maxBindingTTL {
		d = maxBindingTTL
	}
	return d, false, nil
}
