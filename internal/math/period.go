package math

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPeriod is returned for a time-bucketing label outside the
// closed Period set.
var ErrUnsupportedPeriod = errors.New("unsupported period")

// Period is a stats bucketing granularity.
type Period int32

const (
	PeriodHourly Period = iota + 1
	PeriodDaily
	PeriodWeekly
)

const (
	secondsPerHour = 3600
	secondsPerDay  = 86400
	secondsPerWeek = secondsPerDay * 7
)

// ParsePeriod maps a config label to a Period.
func ParsePeriod(label string) (Period, error) {
	switch label {
	case "hourly":
		return PeriodHourly, nil
	case "daily":
		return PeriodDaily, nil
	case "weekly":
		return PeriodWeekly, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedPeriod, label)
	}
}

// ParsePeriods parses a list of labels, failing on the first unknown one.
func ParsePeriods(labels []string) ([]Period, error) {
	out := make([]Period, 0, len(labels))
	for _, l := range labels {
		p, err := ParsePeriod(l)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (p Period) String() string {
	switch p {
	case PeriodHourly:
		return "hourly"
	case PeriodDaily:
		return "daily"
	case PeriodWeekly:
		return "weekly"
	default:
		return fmt.Sprintf("Period(%d)", int32(p))
	}
}

// Seconds returns the bucket width.
func (p Period) Seconds() (int64, error) {
	switch p {
	case PeriodHourly:
		return secondsPerHour, nil
	case PeriodDaily:
		return secondsPerDay, nil
	case PeriodWeekly:
		return secondsPerWeek, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedPeriod, p)
	}
}

// Bucket floors a unix timestamp to the start of its period. Weekly
// buckets are aligned to the unix epoch (a Thursday).
func (p Period) Bucket(timestamp int64) (int64, error) {
	width, err := p.Seconds()
	if err != nil {
		return 0, err
	}
	return timestamp / width * width, nil
}

// TimestampToDay floors a unix timestamp to 00:00 UTC.
func TimestampToDay(timestamp int64) int64 {
	return timestamp / secondsPerDay * secondsPerDay
}
