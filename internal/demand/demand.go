// Package demand turns irrigation requirements into a per-step demand volume
// series. Two variants exist: a constant demand flow applied whenever it is
// not raining, and a daily schedule estimated from a periodic weekly target
// net of rolling rainfall.
package demand

import (
	"time"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

// scheduleDays is both the length of the rolling week and the number of days
// a weekly shortfall is spread over.
const scheduleDays = 7

// Targets are weekly irrigation depths (mm) keyed by calendar period.
type Targets struct {
	Period model.TargetPeriod
	Values map[int]float64
}

// For returns the weekly target in force at t. Periods without a target
// need no irrigation.
func (tg Targets) For(t time.Time) float64 {
	key := int(t.Month())
	if tg.Period == model.TargetByWeek {
		_, key = t.ISOWeek()
	}
	return tg.Values[key]
}

// Estimate is the estimator output, one entry per sample.
type Estimate struct {
	DailyMM                  []float64 // irrigation scheduled on day-boundary rows, else 0
	Volume                   []float64 // area * DailyMM / 1000, m³
	WeeklyRainfall           []float64 // rainfall over (t-7d, t], mm
	WeeklyIrrigation         []float64 // DailyMM over (t-7d, t], mm
	WeeklyRainfallIrrigation []float64
}

// EstimateDaily schedules daily irrigation. On each row that starts a new
// calendar day the weekly target is met first by the rolling week's rainfall,
// then by irrigation already scheduled over the last seven decisions; any
// remaining shortfall is scheduled as (target - rainfall) / 7 for the day.
func EstimateDaily(s timeseries.Series, targets Targets, area float64) Estimate {
	n := len(s)
	times := s.Times()
	est := Estimate{
		DailyMM:        make([]float64, n),
		Volume:         make([]float64, n),
		WeeklyRainfall: timeseries.RollingSum(times, s.Rainfall(), timeseries.Week),
	}

	var scheduled window
	for i := 1; i < n; i++ {
		if sameDay(times[i-1], times[i]) {
			continue
		}
		target := targets.For(times[i])
		rain := est.WeeklyRainfall[i]

		var daily float64
		if target > rain+scheduled.sum() {
			daily = (target - rain) / scheduleDays
		}
		scheduled.push(daily)

		est.DailyMM[i] = daily
		est.Volume[i] = ToVolume(daily, area)
	}

	est.WeeklyIrrigation = timeseries.RollingSum(times, est.DailyMM, timeseries.Week)
	est.WeeklyRainfallIrrigation = make([]float64, n)
	for i := range est.WeeklyRainfallIrrigation {
		est.WeeklyRainfallIrrigation[i] = est.WeeklyRainfall[i] + est.WeeklyIrrigation[i]
	}
	return est
}

// ToVolume converts an irrigation depth in mm over area m² to m³.
func ToVolume(mm, area float64) float64 {
	return area * mm / 1000.0
}

// Constant returns per-step demand volumes for a constant demand flow (m³/s)
// that only runs while it is not raining. Each step's volume is the
// trapezoidal integral of the on/off flow over the step.
func Constant(s timeseries.Series, flow float64) []float64 {
	out := make([]float64, len(s))
	prev := 0.0
	for i, smp := range s {
		cur := 0.0
		if smp.Rainfall == 0 {
			cur = flow
		}
		if i > 0 {
			out[i] = smp.Timestep * (prev + cur) / 2
		}
		prev = cur
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// window keeps the most recent scheduleDays decisions.
type window struct {
	vals []float64
}

func (w *window) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > scheduleDays {
		w.vals = w.vals[1:]
	}
}

func (w *window) sum() float64 {
	var s float64
	for _, v := range w.vals {
		s += v
	}
	return s
}

// ForParams derives the demand columns for the demand mode selected in p.
// The depth column is zero in constant mode.
func ForParams(s timeseries.Series, p model.Params) (mm, volume []float64) {
	if p.DemandMode == model.DemandEstimated {
		est := EstimateDaily(s, Targets{Period: p.TargetPeriod, Values: p.IrrigationTargets}, p.IrrigationArea)
		return est.DailyMM, est.Volume
	}
	return make([]float64, len(s)), Constant(s, p.Demand)
}
