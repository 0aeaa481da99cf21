package automation

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// offsetPattern matches a signed duration expression: an optional sign,
// digits, and a unit of d (days), w (weeks), or m (calendar months).
var offsetPattern = regexp.MustCompile(`^([+-]?)(\d+)([dwm])$`)

// defaultDueDays is applied when an item declares no due offset or a
// malformed one.
const defaultDueDays = 1

// ApplyDueOffset returns base shifted by the due-offset expression,
// e.g. "+15d", "-1w", "+2m". An empty offset yields base plus one day.
// A malformed offset also yields base plus one day and a non-nil error
// so callers can log the defaulting.
func ApplyDueOffset(base time.Time, offset string) (time.Time, error) {
	if offset == "" {
		return base.AddDate(0, 0, defaultDueDays), nil
	}
	m := offsetPattern.FindStringSubmatch(offset)
	if m == nil {
		return base.AddDate(0, 0, defaultDueDays), fmt.Errorf("malformed due offset %q", offset)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return base.AddDate(0, 0, defaultDueDays), fmt.Errorf("malformed due offset %q: %w", offset, err)
	}
	if m[1] == "-" {
		n = -n
	}
	switch m[3] {
	case "d":
		return base.AddDate(0, 0, n), nil
	case "w":
		return base.AddDate(0, 0, 7*n), nil
	default: // "m"
		return base.AddDate(0, n, 0), nil
	}
}
