package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must not be before start")
)

const Day = 24 * time.Hour

// DateRange is a rental window. Start is inclusive and End exclusive; a range
// whose End equals its Start still occupies one billed day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: start.UTC(), End: end.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrInvalidRange
	}
	if dr.End.Before(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Days is the number of billed days: ceil((End-Start)/24h), at least one.
func (dr DateRange) Days() int64 {
	span := dr.End.Sub(dr.Start)
	if span <= 0 {
		return 1
	}
	days := int64(span / Day)
	if span%Day != 0 {
		days++
	}
	return days
}

// occupiedEnd widens a zero-length range to one day so it still blocks the calendar.
func (dr DateRange) occupiedEnd() time.Time {
	if dr.End.After(dr.Start) {
		return dr.End
	}
	return dr.Start.Add(Day)
}

// Occupied returns the half-open interval the range holds on an asset calendar.
func (dr DateRange) Occupied() DateRange {
	return DateRange{Start: dr.Start, End: dr.occupiedEnd()}
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Back-to-back ranges do not.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.Start.Before(other.occupiedEnd()) && other.Start.Before(dr.occupiedEnd())
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return !t.Before(dr.Start) && t.Before(dr.occupiedEnd())
}

// MonthKey buckets the range by the calendar month of its start, formatted YYYY-MM.
func (dr DateRange) MonthKey() string {
	return dr.Start.UTC().Format("2006-01")
}
