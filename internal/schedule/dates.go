package schedule

import "time"

const dayLayout = "2006-01-02"

// ParseDay parses a day-precision ISO date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(dayLayout, s)
}

// DayDiff returns b-a in whole days. Both must be valid day strings; the
// caller validates before arithmetic.
func DayDiff(a, b string) (int, error) {
	ta, err := ParseDay(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDay(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// DurationDays returns end-start in days when both pointers are set and
// parse, else nil.
func DurationDays(start, end *string) *int {
	if start == nil || end == nil {
		return nil
	}
	d, err := DayDiff(*start, *end)
	if err != nil {
		return nil
	}
	return &d
}

// dayBefore reports whether a is strictly before b.
func dayBefore(a, b string) bool {
	ta, err1 := ParseDay(a)
	tb, err2 := ParseDay(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return ta.Before(tb)
}

// CheckDateOrdering rejects end < start when both are present.
func CheckDateOrdering(start, end *string) error {
	if start != nil && end != nil && dayBefore(*end, *start) {
		return ErrInvalidDateOrdering
	}
	return nil
}

func minDay(days []string) *string {
	if len(days) == 0 {
		return nil
	}
	best := days[0]
	for _, d := range days[1:] {
		if dayBefore(d, best) {
			best = d
		}
	}
	return &best
}

func maxDay(days []string) *string {
	if len(days) == 0 {
		return nil
	}
	best := days[0]
	for _, d := range days[1:] {
		if dayBefore(best, d) {
			best = d
		}
	}
	return &best
}
