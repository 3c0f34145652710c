package forecast

import "drishti/internal/domain"

// featureRow is one model input: days since series start, calendar month,
// and the previous period's update volume. Both models consume exactly this
// row shape so their outputs stay comparable.
type featureRow [3]float64

func makeRow(daysSinceStart int, month int, lag1 float64) featureRow {
	return featureRow{float64(daysSinceStart), float64(month), lag1}
}

// trainingSet derives supervised pairs from a time series: the features of
// each point paired with that point's update volume, lagged by one period.
// The first point has no lag and is consumed only as context.
func trainingSet(ts domain.TimeSeries) ([]featureRow, []float64) {
	n := ts.Len()
	if n < 2 {
		return nil, nil
	}
	start := ts.Points[0].Date
	X := make([]featureRow, 0, n-1)
	y := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		p := ts.Points[i]
		days := int(p.Date.Sub(start).Hours() / 24)
		X = append(X, makeRow(days, int(p.Date.Month()), float64(ts.Points[i-1].Updates)))
		y = append(y, float64(p.Updates))
	}
	return X, y
}

// nextFeatures builds the inference row for the next period: the latest
// point's position and month, with the latest volume as the lag.
func nextFeatures(ts domain.TimeSeries) featureRow {
	n := ts.Len()
	last := ts.Points[n-1]
	days := int(last.Date.Sub(ts.Points[0].Date).Hours() / 24)
	return makeRow(days, int(last.Date.Month()), float64(last.Updates))
}

// truncated returns the series limited to its first n points.
func truncated(ts domain.TimeSeries, n int) domain.TimeSeries {
	return domain.TimeSeries{Points: ts.Points[:n]}
}
