package domain

import "time"

// DateLayout is the calendar-day format records are ingested with.
const DateLayout = "2006-01-02"

// UnknownKey is the sentinel bucket for missing or unparseable dimension values.
const UnknownKey = "Unknown"

// Record is one observation unit as supplied by the ingestion layer.
// Records are immutable once ingested; the analytics core only reads them.
type Record struct {
	Region         string `json:"region"`
	Date           string `json:"date"` // "2006-01-02"; anything else lands in the Unknown bucket
	Age0to5        int64  `json:"age_0_5"`
	Age5to17       int64  `json:"age_5_17"`
	Age18Plus      int64  `json:"age_18_greater"`
	Bio5to17       int64  `json:"bio_age_5_17"`
	Bio18Plus      int64  `json:"bio_age_18_greater"`
	Demo5to17      int64  `json:"demo_age_5_17"`
	Demo18Plus     int64  `json:"demo_age_18_greater"`
	TotalUpdates   int64  `json:"total_updates"`
	TotalEnrolment int64  `json:"total_enrolment"`
}

// Day returns the parsed calendar day and whether the date was parseable.
func (r Record) Day() (time.Time, bool) {
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SeriesPoint is one aggregated day of the time series.
type SeriesPoint struct {
	Day        string    `json:"date"`
	Date       time.Time `json:"-"`
	Updates    int64     `json:"updates"`
	Enrolments int64     `json:"enrolments"`
}

// TimeSeries is the per-day aggregate of a record snapshot. Points holds
// parseable dates, strictly increasing and unique. Unknown collects records
// whose date could not be parsed; it is presented after the dated points.
type TimeSeries struct {
	Points  []SeriesPoint
	Unknown *SeriesPoint
}

// Len returns the number of dated points (the Unknown bucket excluded).
func (ts TimeSeries) Len() int { return len(ts.Points) }

// Updates returns the dated update volumes in order.
func (ts TimeSeries) Updates() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = float64(p.Updates)
	}
	return out
}

// PivotEntry is one ranked row of a pivot table.
type PivotEntry struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// AgeSplit is the demographic breakdown across the three age bands.
type AgeSplit struct {
	Age0to5   int64 `json:"age_0_5"`
	Age5to17  int64 `json:"age_5_17"`
	Age18Plus int64 `json:"age_18_greater"`
}
