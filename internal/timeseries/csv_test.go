package timeseries

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

const dnrmSample = `"Water Monitoring Portal export"
"Site 143028A"
"Time","Rainfall (mm)","Quality","Discharge (cumecs)","Quality"
01/02/2018 00:00,0.0,10,0.10,10
01/02/2018 01:00,1.5,10,0.30,10
01/02/2018 02:00,0.0,10,,10
"Comments"
"Generated"
"End"
`

func TestReadDNRM(t *testing.T) {
	s, err := ReadDNRM(strings.NewReader(dnrmSample))
	require.NoError(t, err)
	require.Len(t, s, 3)

	// Day-first dates.
	assert.Equal(t, time.Date(2018, 2, 1, 1, 0, 0, 0, time.UTC), s[1].Time)
	assert.Equal(t, 1.5, s[1].Rainfall)
	assert.Equal(t, 0.0, s[2].Discharge, "blank discharge reads as zero")
	assert.InDelta(t, 3600*(0.1+0.3)/2, s[1].Runoff, 1e-9)
	assert.InDelta(t, 3600*0.3/2, s[2].Runoff, 1e-9)
}

func TestReadDNRM_TooShort(t *testing.T) {
	_, err := ReadDNRM(strings.NewReader("a\nb\nc\nd\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestReadTable(t *testing.T) {
	in := `Timestamp,Rainfall_mm,Discharge
2018-01-01T00:00:00Z,0,1
2018-01-01T00:30:00Z,2,1
`
	s, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, 1800.0, s[1].Timestep)
	assert.Equal(t, 1800.0, s[1].Runoff)
	assert.Equal(t, 2.0, s[1].Rainfall)
}

func TestReadTable_RunoffColumnWins(t *testing.T) {
	in := `timestamp,rainfall,discharge,runoff
2018-01-01 00:00,0,1,0
2018-01-01 01:00,0,1,42
`
	s, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 42.0, s[1].Runoff)
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no rows", "timestamp,rainfall,discharge\n"},
		{"no time column", "when,rainfall,discharge\nx,0,0\n"},
		{"no flow column", "timestamp,rainfall\n2018-01-01,0\n"},
		{"bad timestamp", "timestamp,rainfall,discharge\nyesterday,0,0\n"},
		{"bad number", "timestamp,rainfall,discharge\n2018-01-01,abc,0\n"},
		{"non monotonic", "timestamp,rainfall,discharge\n2018-01-02,0,0\n2018-01-01,0,0\n"},
		{"negative discharge", "timestamp,rainfall,discharge\n2018-01-01,0,-1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}

func TestRead_UnknownFormat(t *testing.T) {
	_, err := Read(strings.NewReader(""), "xml")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestReadIrrigationTargets(t *testing.T) {
	t.Run("by month from dates", func(t *testing.T) {
		in := "Date,Irrigation\n01/01/2018,25\n01/02/2018,20\n"
		got, err := ReadIrrigationTargets(strings.NewReader(in), model.TargetByMonth)
		require.NoError(t, err)
		assert.Equal(t, map[int]float64{1: 25, 2: 20}, got)
	})
	t.Run("integer keys", func(t *testing.T) {
		got, err := ReadIrrigationTargets(strings.NewReader("7,12.5\n8,14\n"), model.TargetByWeek)
		require.NoError(t, err)
		assert.Equal(t, map[int]float64{7: 12.5, 8: 14}, got)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := ReadIrrigationTargets(strings.NewReader("Date,Irrigation\n"), model.TargetByMonth)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestWriteRows(t *testing.T) {
	rows := []model.Row{
		{Time: t0, TankVolume: 50},
		{Time: t0.Add(time.Hour), Runoff: 10, Harvested: 5, TankVolume: 55, DemandVolume: 1, FractionMet: model.Defined(1)},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,rainfall_mm"))
	assert.Contains(t, lines[1], ",,", "undefined fraction is a blank cell")
	assert.Contains(t, lines[2], "2018-01-01T01:00:00Z")
}
