// Package aggregate reduces raw record snapshots into the derived views the
// dashboard serves: a per-day time series, ranked pivot tables, and the
// demographic split. Every function is a pure function of its inputs.
package aggregate

import (
	"sort"

	"drishti/internal/domain"
)

// DefaultPivotLimit is the top-K cutoff applied to pivot tables.
const DefaultPivotLimit = 12

// Dimension selects what a pivot groups by.
type Dimension string

const (
	ByRegion  Dimension = "region"
	ByDate    Dimension = "date"
	ByAgeBand Dimension = "age_band"
)

// Metric selects what a pivot sums.
type Metric string

const (
	MetricUpdates    Metric = "total_updates"
	MetricEnrolments Metric = "total_enrolment"
)

// BuildTimeSeries groups records by calendar day, summing updates and
// enrolments per day, sorted ascending. Records with missing or unparseable
// dates are pooled into the Unknown bucket rather than dropped.
func BuildTimeSeries(records []domain.Record) domain.TimeSeries {
	type bucket struct {
		point domain.SeriesPoint
	}
	byDay := make(map[string]*bucket)
	var unknown *domain.SeriesPoint

	for _, r := range records {
		day, ok := r.Day()
		if !ok {
			if unknown == nil {
				unknown = &domain.SeriesPoint{Day: domain.UnknownKey}
			}
			unknown.Updates += r.TotalUpdates
			unknown.Enrolments += r.TotalEnrolment
			continue
		}
		key := day.Format(domain.DateLayout)
		b, ok := byDay[key]
		if !ok {
			b = &bucket{point: domain.SeriesPoint{Day: key, Date: day}}
			byDay[key] = b
		}
		b.point.Updates += r.TotalUpdates
		b.point.Enrolments += r.TotalEnrolment
	}

	points := make([]domain.SeriesPoint, 0, len(byDay))
	for _, b := range byDay {
		points = append(points, b.point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return domain.TimeSeries{Points: points, Unknown: unknown}
}

// Pivot groups records by the requested dimension, sums the requested metric,
// and returns at most limit entries sorted descending by value. Ties keep the
// order the tied keys were first seen in the record set. Missing dimension
// values fall into the "Unknown" key.
//
// The age_band dimension is special: its three keys are the band columns
// themselves, so the metric argument is ignored and each band's count is the
// value.
func Pivot(records []domain.Record, dim Dimension, metric Metric, limit int) []domain.PivotEntry {
	if limit <= 0 {
		limit = DefaultPivotLimit
	}

	if dim == ByAgeBand {
		split := Demographics(records)
		entries := []domain.PivotEntry{
			{Key: "0-5", Value: split.Age0to5},
			{Key: "5-17", Value: split.Age5to17},
			{Key: "18+", Value: split.Age18Plus},
		}
		sortPivot(entries)
		if len(entries) > limit {
			entries = entries[:limit]
		}
		return entries
	}

	totals := make(map[string]int64)
	order := make([]string, 0)
	for _, r := range records {
		key := pivotKey(r, dim)
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] += metricValue(r, metric)
	}

	entries := make([]domain.PivotEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, domain.PivotEntry{Key: key, Value: totals[key]})
	}
	sortPivot(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Demographics sums the three age-band columns across all records.
// An empty record set yields all-zero buckets.
func Demographics(records []domain.Record) domain.AgeSplit {
	var split domain.AgeSplit
	for _, r := range records {
		split.Age0to5 += r.Age0to5
		split.Age5to17 += r.Age5to17
		split.Age18Plus += r.Age18Plus
	}
	return split
}

// sortPivot orders entries descending by value. sort.SliceStable preserves
// first-seen order for tied values.
func sortPivot(entries []domain.PivotEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Value > entries[j].Value })
}

func pivotKey(r domain.Record, dim Dimension) string {
	var key string
	switch dim {
	case ByDate:
		if day, ok := r.Day(); ok {
			key = day.Format(domain.DateLayout)
		}
	default:
		key = r.Region
	}
	if key == "" {
		return domain.UnknownKey
	}
	return key
}

func metricValue(r domain.Record, metric Metric) int64 {
	if metric == MetricEnrolments {
		return r.TotalEnrolment
	}
	return r.TotalUpdates
}
