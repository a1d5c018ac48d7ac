package demand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

var jan1 = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

// daily builds one sample per day at 09:00 with the given rainfall.
func daily(rain ...float64) timeseries.Series {
	s := make(timeseries.Series, len(rain))
	for i, r := range rain {
		s[i] = timeseries.Sample{Time: jan1.Add(time.Duration(i)*24*time.Hour + 9*time.Hour), Rainfall: r}
	}
	return s.Derive(true)
}

func monthly(mm float64) Targets {
	vals := map[int]float64{}
	for m := 1; m <= 12; m++ {
		vals[m] = mm
	}
	return Targets{Period: model.TargetByMonth, Values: vals}
}

func TestEstimateDaily_NoRain(t *testing.T) {
	est := EstimateDaily(daily(0, 0, 0, 0), monthly(35), 1000)

	assert.Equal(t, 0.0, est.DailyMM[0], "first row has no previous day")
	for i := 1; i < 4; i++ {
		assert.Equal(t, 5.0, est.DailyMM[i], "row %d", i)
		assert.Equal(t, 5.0, est.Volume[i], "1000 m² * 5 mm = 5 m³")
	}
	assert.Equal(t, 15.0, est.WeeklyIrrigation[3])
}

func TestEstimateDaily_RainSatisfiesTarget(t *testing.T) {
	est := EstimateDaily(daily(0, 40, 0, 0), monthly(35), 1000)

	assert.Equal(t, 0.0, est.DailyMM[1])
	assert.Equal(t, 0.0, est.DailyMM[2])
	assert.Equal(t, 40.0, est.WeeklyRainfall[2])
	assert.Equal(t, 40.0, est.WeeklyRainfallIrrigation[3])
}

func TestEstimateDaily_ShortfallSpreadOverWeek(t *testing.T) {
	// 14 mm of rain leaves (35-14)/7 = 3 mm/day while it stays in the
	// rolling week; once it drops out the full 35/7 is scheduled.
	est := EstimateDaily(daily(14, 0, 0, 0, 0, 0, 0, 0, 0, 0), monthly(35), 1000)

	assert.Equal(t, []float64{0, 3, 3, 3, 3, 3, 3, 5, 5, 5}, est.DailyMM)
}

func TestEstimateDaily_ScheduledIrrigationCounts(t *testing.T) {
	// Day 3 rain plus the 10 mm already scheduled exceeds the target, so
	// nothing more is scheduled.
	est := EstimateDaily(daily(0, 0, 0, 30, 0), monthly(35), 1000)

	assert.Equal(t, []float64{0, 5, 5, 0, 0}, est.DailyMM)
	assert.Equal(t, 40.0, est.WeeklyRainfallIrrigation[4])
}

func TestEstimateDaily_SubDailyRowsInheritZero(t *testing.T) {
	s := timeseries.Series{
		{Time: jan1},
		{Time: jan1.Add(6 * time.Hour)},
		{Time: jan1.Add(24 * time.Hour)},
		{Time: jan1.Add(30 * time.Hour)},
	}.Derive(true)

	est := EstimateDaily(s, monthly(7), 2000)
	assert.Equal(t, []float64{0, 0, 1, 0}, est.DailyMM)
	assert.Equal(t, []float64{0, 0, 2, 0}, est.Volume)
}

func TestEstimateDaily_WindowEvictsAfterSeven(t *testing.T) {
	var w window
	for i := 1; i <= 9; i++ {
		w.push(float64(i))
	}
	require.Len(t, w.vals, scheduleDays)
	assert.Equal(t, float64(3+4+5+6+7+8+9), w.sum())
}

func TestTargets_ByWeek(t *testing.T) {
	tg := Targets{Period: model.TargetByWeek, Values: map[int]float64{1: 10, 2: 20}}
	// 2018-01-01 is a Monday in ISO week 1.
	assert.Equal(t, 10.0, tg.For(jan1))
	assert.Equal(t, 20.0, tg.For(jan1.Add(7*24*time.Hour)))
	assert.Equal(t, 0.0, tg.For(jan1.Add(70*24*time.Hour)))
	assert.Equal(t, 0.0, Targets{}.For(jan1))
}

func TestConstant_OnlyWhenDry(t *testing.T) {
	s := timeseries.Series{
		{Time: jan1},
		{Time: jan1.Add(time.Hour)},
		{Time: jan1.Add(2 * time.Hour), Rainfall: 1},
		{Time: jan1.Add(3 * time.Hour), Rainfall: 1},
	}.Derive(true)

	got := Constant(s, 0.001)
	assert.Equal(t, 0.0, got[0])
	assert.InDelta(t, 3.6, got[1], 1e-12)
	assert.InDelta(t, 1.8, got[2], 1e-12)
	assert.Equal(t, 0.0, got[3])
}

func TestForParams(t *testing.T) {
	s := daily(0, 0, 0)

	mm, vol := ForParams(s, model.Params{DemandMode: model.DemandConstant, Demand: 0})
	assert.Equal(t, []float64{0, 0, 0}, mm)
	assert.Equal(t, []float64{0, 0, 0}, vol)

	mm, vol = ForParams(s, model.Params{
		DemandMode:        model.DemandEstimated,
		IrrigationArea:    1000,
		IrrigationTargets: map[int]float64{1: 70},
	})
	assert.Equal(t, []float64{0, 10, 10}, mm)
	assert.Equal(t, []float64{0, 10, 10}, vol)
}
