package timeseries

import "time"

// Week is the calendar window used by the irrigation rolling sums.
const Week = 7 * 24 * time.Hour

// RollingSum sums values over the time window (t-window, t] ending at each
// sample. Window membership is decided by timestamps, not by sample count, so
// irregular or sub-daily series are summed by calendar time.
func RollingSum(times []time.Time, values []float64, window time.Duration) []float64 {
	out := make([]float64, len(values))
	var sum float64
	lo := 0
	for i := range values {
		sum += values[i]
		for lo < i && !times[lo].After(times[i].Add(-window)) {
			sum -= values[lo]
			lo++
		}
		out[i] = sum
	}
	return out
}

// Times returns the timestamp column.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s))
	for i, smp := range s {
		out[i] = smp.Time
	}
	return out
}

// Rainfall returns the rainfall column.
func (s Series) Rainfall() []float64 {
	out := make([]float64, len(s))
	for i, smp := range s {
		out[i] = smp.Rainfall
	}
	return out
}
