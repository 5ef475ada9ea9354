// Package periods provides calendar-period classification for metric
// resolution. A date range either aligns exactly to a supported period (day,
// ISO week, calendar month) or it is historical and must be served from
// durable storage.
package periods

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
)

// PeriodType enumerates the supported calendar period granularities.
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

// DateRange is an inclusive [Start, End] pair of calendar dates. Both bounds
// are normalized to UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both bounds to UTC midnight.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Midnight(start), End: Midnight(end)}
}

// Valid reports whether the range is non-empty.
func (r DateRange) Valid() bool {
	return !r.End.Before(r.Start)
}

// Days returns the number of calendar days the range covers.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// PeriodKey addresses one period of one client on one platform. Immutable
// once computed; two requests with the same calendar boundaries always yield
// the same key.
type PeriodKey struct {
	ClientID   string
	Platform   metrics.Platform
	PeriodType PeriodType
	PeriodID   string
}

// CacheKey renders the canonical map key for the hot period cache.
func (k PeriodKey) CacheKey() string {
	return k.ClientID + ":" + string(k.Platform) + ":" + string(k.PeriodType) + ":" + k.PeriodID
}

// Classification is the classifier's verdict on a date range.
type Classification struct {
	Aligned    bool
	IsCurrent  bool
	PeriodType PeriodType
	PeriodID   string
}

// Midnight truncates a timestamp to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayID renders the canonical period id for a single day.
func DayID(t time.Time) string {
	return Midnight(t).Format("2006-01-02")
}

// WeekID renders the canonical ISO-week period id, e.g. "2024-W10".
func WeekID(t time.Time) string {
	year, week := Midnight(t).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthID renders the canonical year-month period id, e.g. "2024-03".
func MonthID(t time.Time) string {
	return Midnight(t).Format("2006-01")
}

// StartOfWeek returns the Monday of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	d := Midnight(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// StartOfMonth returns the first day of t's calendar month.
func StartOfMonth(t time.Time) time.Time {
	d := Midnight(t)
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the last day of t's calendar month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}

// Classify decides whether a range is a current period eligible for the hot
// cache. A range is current only when it aligns exactly to a whole supported
// period AND its end date has not yet passed relative to referenceNow. Any
// violation, including an already-closed month, is historical. The strictness
// is deliberate: it keeps a closed period from ever being served by a stale
// hot entry.
func Classify(referenceNow time.Time, r DateRange) Classification {
	today := Midnight(referenceNow)
	start := Midnight(r.Start)
	end := Midnight(r.End)

	if end.Before(start) {
		return Classification{}
	}

	switch {
	case start.Equal(end):
		return Classification{
			Aligned:    true,
			IsCurrent:  !end.Before(today),
			PeriodType: PeriodDay,
			PeriodID:   DayID(start),
		}
	case start.Weekday() == time.Monday && end.Equal(start.AddDate(0, 0, 6)):
		return Classification{
			Aligned:    true,
			IsCurrent:  !end.Before(today),
			PeriodType: PeriodWeek,
			PeriodID:   WeekID(start),
		}
	case start.Day() == 1 && end.Equal(EndOfMonth(start)):
		return Classification{
			Aligned:    true,
			IsCurrent:  !end.Before(today),
			PeriodType: PeriodMonth,
			PeriodID:   MonthID(start),
		}
	}

	return Classification{}
}

// KeyFor builds the period key for an aligned range. The second return is
// false when the range does not align to a supported period.
func KeyFor(clientID string, platform metrics.Platform, referenceNow time.Time, r DateRange) (PeriodKey, Classification, bool) {
	c := Classify(referenceNow, r)
	if !c.Aligned {
		return PeriodKey{}, c, false
	}
	return PeriodKey{
		ClientID:   clientID,
		Platform:   platform,
		PeriodType: c.PeriodType,
		PeriodID:   c.PeriodID,
	}, c, true
}

// RangeForKey reconstructs the calendar bounds of a period key. Used by the
// archival lifecycle when re-deriving ranges from cached keys.
func RangeForKey(k PeriodKey) (DateRange, error) {
	switch k.PeriodType {
	case PeriodDay:
		d, err := time.ParseInLocation("2006-01-02", k.PeriodID, time.UTC)
		if err != nil {
			return DateRange{}, fmt.Errorf("bad day period id %q: %w", k.PeriodID, err)
		}
		return DateRange{Start: d, End: d}, nil
	case PeriodWeek:
		var year, week int
		if _, err := fmt.Sscanf(k.PeriodID, "%d-W%d", &year, &week); err != nil {
			return DateRange{}, fmt.Errorf("bad week period id %q: %w", k.PeriodID, err)
		}
		// Jan 4 is always inside ISO week 1.
		jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
		start := StartOfWeek(jan4).AddDate(0, 0, (week-1)*7)
		return DateRange{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case PeriodMonth:
		d, err := time.ParseInLocation("2006-01", k.PeriodID, time.UTC)
		if err != nil {
			return DateRange{}, fmt.Errorf("bad month period id %q: %w", k.PeriodID, err)
		}
		return DateRange{Start: d, End: EndOfMonth(d)}, nil
	}
	return DateRange{}, fmt.Errorf("unsupported period type %q", k.PeriodType)
}

// SplitByMonth breaks a range on calendar-month boundaries. A range spanning
// parts of several months is resolved piecewise and summed; it is never
// classified as one current period.
func SplitByMonth(r DateRange) []DateRange {
	if !r.Valid() {
		return nil
	}
	var out []DateRange
	cursor := r.Start
	for !cursor.After(r.End) {
		end := EndOfMonth(cursor)
		if end.After(r.End) {
			end = r.End
		}
		out = append(out, DateRange{Start: cursor, End: end})
		cursor = end.AddDate(0, 0, 1)
	}
	return out
}
