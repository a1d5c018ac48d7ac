// Package timeseries holds the read-only input series fed to the simulator:
// sample validation, derived columns (timestep, runoff volume), rolling
// calendar-window sums, content hashing and CSV ingestion/export.
package timeseries

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// hashPrefix versions the content hash encoding.
const hashPrefix = "v2:"

// Sample is one timestamped observation.
type Sample struct {
	Time      time.Time
	Rainfall  float64 // mm over the step
	Discharge float64 // m³/s at Time
	Runoff    float64 // m³ arriving during the step ending at Time
	Timestep  float64 // seconds since the previous sample, 0 for the first
}

// Series is an ordered run of samples with strictly increasing timestamps.
type Series []Sample

// ValidationError reports the first invalid row of a series.
type ValidationError struct {
	Row    int // -1 when the error concerns the whole series
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row < 0 {
		return "timeseries: " + e.Reason
	}
	return fmt.Sprintf("timeseries: row %d: %s", e.Row, e.Reason)
}

// Unwrap lets callers match every validation failure with model.ErrInvalidInput.
func (e *ValidationError) Unwrap() error { return model.ErrInvalidInput }

// Validate checks the series is non-empty, strictly increasing in time and
// free of negative or non-finite values.
func (s Series) Validate() error {
	if len(s) == 0 {
		return &ValidationError{Row: -1, Reason: "series is empty"}
	}
	for i, smp := range s {
		if smp.Time.IsZero() {
			return &ValidationError{Row: i, Reason: "missing timestamp"}
		}
		if i > 0 && !smp.Time.After(s[i-1].Time) {
			return &ValidationError{Row: i, Reason: fmt.Sprintf("timestamp %s is not after %s",
				smp.Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))}
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"rainfall", smp.Rainfall},
			{"discharge", smp.Discharge},
			{"runoff", smp.Runoff},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return &ValidationError{Row: i, Reason: f.name + " is not a finite number"}
			}
			if f.v < 0 {
				return &ValidationError{Row: i, Reason: fmt.Sprintf("%s is negative (%g)", f.name, f.v)}
			}
		}
	}
	return nil
}

// Derive returns a copy with Timestep filled in. When runoffFromDischarge is
// set, Runoff is recomputed as the trapezoidal volume between consecutive
// discharge readings. The first sample's derived fields are zero.
func (s Series) Derive(runoffFromDischarge bool) Series {
	out := make(Series, len(s))
	copy(out, s)
	for i := range out {
		if i == 0 {
			out[i].Timestep = 0
			out[i].Runoff = 0
			continue
		}
		dt := out[i].Time.Sub(out[i-1].Time).Seconds()
		out[i].Timestep = dt
		if runoffFromDischarge {
			out[i].Runoff = dt * (out[i-1].Discharge + out[i].Discharge) / 2
		}
	}
	return out
}

// Hash returns a versioned SHA-256 digest of the series content. Two series
// hash equal only if every timestamp, its UTC offset and every numeric field
// are bit-identical. The offset matters because calendar days are taken in
// each sample's own zone.
func (s Series) Hash() string {
	h := sha256.New()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeU64(uint64(len(s)))
	for _, smp := range s {
		_, off := smp.Time.Zone()
		writeU64(uint64(smp.Time.UnixNano())) //nolint:gosec // two's complement round-trips
		writeU64(uint64(int64(off)))          //nolint:gosec // two's complement round-trips
		writeU64(math.Float64bits(smp.Rainfall))
		writeU64(math.Float64bits(smp.Discharge))
		writeU64(math.Float64bits(smp.Runoff))
		writeU64(math.Float64bits(smp.Timestep))
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil))
}

// Runoff returns the runoff column.
func (s Series) Runoff() []float64 {
	out := make([]float64, len(s))
	for i, smp := range s {
		out[i] = smp.Runoff
	}
	return out
}

// Timesteps returns the timestep column.
func (s Series) Timesteps() []float64 {
	out := make([]float64, len(s))
	for i, smp := range s {
		out[i] = smp.Timestep
	}
	return out
}

// Describe summarises the series as a registered dataset.
func (s Series) Describe(name string) model.Dataset {
	d := model.Dataset{Name: name, Hash: s.Hash(), Rows: len(s)}
	if len(s) > 0 {
		d.Start = s[0].Time
		d.End = s[len(s)-1].Time
	}
	return d
}
