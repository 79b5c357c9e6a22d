package core

import (
	"fmt"
	"math"
	"strings"
)

type DurationUnit string

const (
	Minutes DurationUnit = "minutes"
	Hours   DurationUnit = "hours"
	Days    DurationUnit = "days"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 1440
)

// maxDurationMinutes keeps normalized values well inside int64.
const maxDurationMinutes = math.MaxInt64 / 2

func ParseDurationUnit(s string) (DurationUnit, error) {
	switch DurationUnit(strings.ToLower(strings.TrimSpace(s))) {
	case Minutes:
		return Minutes, nil
	case Hours:
		return Hours, nil
	case Days:
		return Days, nil
	default:
		return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidDuration, s)
	}
}

func (u DurationUnit) factor() int64 {
	switch u {
	case Hours:
		return minutesPerHour
	case Days:
		return minutesPerDay
	default:
		return 1
	}
}

// NormalizeDuration converts value expressed in unit into whole minutes.
// Fractional results are rounded to the nearest minute.
func NormalizeDuration(value float64, unit string) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: value is not finite", ErrInvalidDuration)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: value is negative", ErrInvalidDuration)
	}

	u, err := ParseDurationUnit(unit)
	if err != nil {
		return 0, err
	}

	minutes := math.Round(value * float64(u.factor()))
	if minutes > maxDurationMinutes {
		return 0, fmt.Errorf("%w: value too large", ErrInvalidDuration)
	}
	return int64(minutes), nil
}

// FormatDuration renders minutes for display:
// "45 minutes", "2 hours", "1h 30m", "1d 1h".
func FormatDuration(minutes int64) string {
	if minutes < minutesPerHour {
		return fmt.Sprintf("%d minutes", minutes)
	}

	hours := minutes / minutesPerHour
	rem := minutes % minutesPerHour
	if hours < 24 {
		if rem == 0 {
			return fmt.Sprintf("%d hours", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, rem)
	}

	return fmt.Sprintf("%dd %dh", hours/24, hours%24)
}
