// Package aggregation turns raw cumulative-energy readings into
// time-bucketed consumption figures. The engine is pure: it operates on
// points already loaded from storage and never touches the database.
package aggregation

import (
	"sort"
	"time"
)

// Granularity is the bucket width of a consumption query
type Granularity string

const (
	// GranularityDay buckets by hour within the current day
	GranularityDay Granularity = "1d"
	// GranularityMonth buckets by day within the current month
	GranularityMonth Granularity = "1m"
	// GranularityYear buckets by month within the current year
	GranularityYear Granularity = "1y"
)

// ParseGranularity maps a query string to a granularity. Unknown values
// fall back to month rather than failing the request.
func ParseGranularity(s string) Granularity {
	switch s {
	case string(GranularityDay):
		return GranularityDay
	case string(GranularityYear):
		return GranularityYear
	default:
		return GranularityMonth
	}
}

// LowerBound returns the inclusive start of the current period for the
// granularity, in the given location: start of today, of this month, or
// of this year.
func (g Granularity) LowerBound(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	switch g {
	case GranularityDay:
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	case GranularityYear:
		return time.Date(n.Year(), 1, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
	}
}

// BucketKey formats a point's timestamp into its bucket label. Labels
// sort lexicographically in chronological order. The overview form
// drops the finest component, labelling the whole day, month or year
// instead of the slot within it; filtering and math are unaffected.
func (g Granularity) BucketKey(t time.Time, loc *time.Location, overview bool) string {
	lt := t.In(loc)
	switch g {
	case GranularityDay:
		if overview {
			return lt.Format("2006-01-02")
		}
		return lt.Format("2006-01-02 15")
	case GranularityYear:
		if overview {
			return lt.Format("2006")
		}
		return lt.Format("2006-01")
	default:
		if overview {
			return lt.Format("2006-01")
		}
		return lt.Format("2006-01-02")
	}
}

// Point is one cumulative reading, already filtered to a single
// (subscription, device, metric) partition.
type Point struct {
	Time  time.Time
	Value float64
}

// Bucket is one consumption figure: the difference between the bucket's
// representative cumulative reading and the previous bucket's.
type Bucket struct {
	Key      string  `json:"key"`
	Max      float64 `json:"max"`
	Consumed float64 `json:"consumed"`
}

// Engine computes windowed consumption from cumulative readings.
type Engine struct {
	loc *time.Location
}

// NewEngine creates an aggregation engine operating in the given zone.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

// Location returns the zone all bucket boundaries are computed in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Consumption groups the points into buckets and computes per-bucket
// consumption as the lag-1 difference of the last cumulative reading per
// bucket. The first bucket's predecessor defaults to zero, so it reports
// its full cumulative value. Points before the granularity's lower bound
// are ignored; an empty input yields an empty result. The overview flag
// switches the bucket labels to their coarse form without changing the
// window or the arithmetic.
func (e *Engine) Consumption(points []Point, g Granularity, now time.Time, overview bool) []Bucket {
	lower := g.LowerBound(now, e.loc)

	// Last reading per bucket. Points arrive sorted by time, so a plain
	// overwrite keeps the latest.
	last := make(map[string]Point)
	for _, p := range points {
		if p.Time.Before(lower) {
			continue
		}
		key := g.BucketKey(p.Time, e.loc, overview)
		if prev, ok := last[key]; !ok || !p.Time.Before(prev.Time) {
			last[key] = p
		}
	}
	if len(last) == 0 {
		return []Bucket{}
	}

	keys := make([]string, 0, len(last))
	for k := range last {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make([]Bucket, 0, len(keys))
	prev := 0.0
	for _, k := range keys {
		max := last[k].Value
		buckets = append(buckets, Bucket{
			Key:      k,
			Max:      max,
			Consumed: max - prev,
		})
		prev = max
	}
	return buckets
}

// TotalConsumed sums the consumption across all buckets, which equals
// the last cumulative reading because the series telescopes.
func TotalConsumed(buckets []Bucket) float64 {
	total := 0.0
	for _, b := range buckets {
		total += b.Consumed
	}
	return total
}
