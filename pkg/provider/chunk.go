package provider

import "time"

const daySeconds = 24 * 60 * 60

// Window is one provider-legal fetch sub-range, [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Chunker splits a requested range into the sub-windows a provider is
// willing to answer. Implementations differ per provider retention and
// granularity rules; the fetch loop stays the same.
type Chunker interface {
	Chunk(start, end time.Time) []Window
}

// DayChunker yields whole UTC days: start floored, end ceiled, one window
// per day. Used for hourly-granularity requests where the API answers at
// most a day at a time.
type DayChunker struct{}

func (DayChunker) Chunk(start, end time.Time) []Window {
	if !end.After(start) {
		return nil
	}
	from := start.Unix() / daySeconds * daySeconds
	to := end.Unix()
	if rem := to % daySeconds; rem != 0 {
		to += daySeconds - rem
	}

	var windows []Window
	for from < to {
		next := from + daySeconds
		if next > to {
			next = to
		}
		windows = append(windows, Window{
			Start: time.Unix(from, 0).UTC(),
			End:   time.Unix(next, 0).UTC(),
		})
		from = next
	}
	return windows
}

// MonthChunker yields spans of Months civil months, each starting on the
// first of a month in Location. Used for daily-granularity requests where
// the API insists on month-aligned multi-month queries.
type MonthChunker struct {
	Months   int
	Location *time.Location
}

func (c MonthChunker) Chunk(start, end time.Time) []Window {
	months := c.Months
	if months <= 0 {
		months = 3
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	if end.Before(start) {
		return nil
	}

	cur := start.In(loc)
	cur = time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, loc)

	var windows []Window
	for !cur.After(end.In(loc)) {
		next := time.Date(cur.Year(), cur.Month()+time.Month(months), 1, 0, 0, 0, 0, loc)
		windows = append(windows, Window{Start: cur.UTC(), End: next.UTC()})
		cur = next
	}
	return windows
}
