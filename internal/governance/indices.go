// Package governance derives the fixed set of normalized health scores the
// dashboard's radar summary plots. Every score is a pure function of the
// record snapshot, clamped to [0,1], and computable with the briefing layer
// down.
package governance

import (
	"math"
	"sort"

	"drishti/internal/domain"
)

// Index is one scored health dimension.
type Index struct {
	Subject string  `json:"subject"`
	Score   float64 `json:"score"`
}

// Subjects is the fixed set of tracked dimensions, in presentation order.
// Indices always returns exactly these subjects regardless of input.
var Subjects = [5]string{
	"Update Compliance",
	"Enrolment Growth",
	"System Stability",
	"Data Freshness",
	"Coverage Equity",
}

// Indices computes all five scores from the record snapshot. An empty
// snapshot yields boundary scores, not an error.
//
// Formulas:
//   - Update Compliance: child-bracket biometric updates / total updates.
//   - Enrolment Growth: |change| between the two most recent days' enrolment
//     totals relative to the earlier day, clamped; 0.5 with under two days.
//   - System Stability: 1 - (coefficient of variation of per-region update
//     totals)/10, floored at 0.
//   - Data Freshness: biometric updates / (biometric + demographic) updates.
//   - Coverage Equity: 0-5 enrolments / 5-17 enrolments, clamped; 0.5 when
//     the 5-17 bracket is empty.
func Indices(records []domain.Record) []Index {
	return []Index{
		{Subject: Subjects[0], Score: compliance(records)},
		{Subject: Subjects[1], Score: growth(records)},
		{Subject: Subjects[2], Score: stability(records)},
		{Subject: Subjects[3], Score: freshness(records)},
		{Subject: Subjects[4], Score: equity(records)},
	}
}

func compliance(records []domain.Record) float64 {
	var bio, updates int64
	for _, r := range records {
		bio += r.Bio5to17
		updates += r.TotalUpdates
	}
	if updates == 0 {
		return 0
	}
	return clamp01(float64(bio) / float64(updates))
}

func growth(records []domain.Record) float64 {
	byDay := make(map[string]int64)
	for _, r := range records {
		if day, ok := r.Day(); ok {
			byDay[day.Format(domain.DateLayout)] += r.TotalEnrolment
		}
	}
	if len(byDay) < 2 {
		return 0.5
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	prev := byDay[days[len(days)-2]]
	last := byDay[days[len(days)-1]]
	if prev == 0 {
		return 0.5
	}
	return clamp01(math.Abs(float64(last-prev)) / float64(prev))
}

func stability(records []domain.Record) float64 {
	byRegion := make(map[string]int64)
	for _, r := range records {
		key := r.Region
		if key == "" {
			key = domain.UnknownKey
		}
		byRegion[key] += r.TotalUpdates
	}
	if len(byRegion) == 0 {
		return 0
	}
	totals := make([]float64, 0, len(byRegion))
	var sum float64
	for _, v := range byRegion {
		totals = append(totals, float64(v))
		sum += float64(v)
	}
	m := sum / float64(len(totals))
	if m == 0 {
		return 0
	}
	var sq float64
	for _, v := range totals {
		d := v - m
		sq += d * d
	}
	cov := math.Sqrt(sq/float64(len(totals))) / m
	return clamp01(1 - cov/10)
}

func freshness(records []domain.Record) float64 {
	var bio, demo int64
	for _, r := range records {
		bio += r.Bio5to17 + r.Bio18Plus
		demo += r.Demo5to17 + r.Demo18Plus
	}
	if bio+demo == 0 {
		return 0
	}
	return clamp01(float64(bio) / float64(bio+demo))
}

func equity(records []domain.Record) float64 {
	var child, student int64
	for _, r := range records {
		child += r.Age0to5
		student += r.Age5to17
	}
	if student == 0 {
		return 0.5
	}
	return clamp01(float64(child) / float64(student))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
