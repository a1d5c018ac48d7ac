package model

import (
	"encoding/json"
	"strconv"
)

// Fraction is a ratio that may be undefined. A zero Fraction is undefined,
// which is the "not applicable" marker for steps without irrigation demand.
// Consumers must check Valid before reading Value; an undefined fraction is
// never the same thing as "met" or "not met".
type Fraction struct {
	Value float64
	Valid bool
}

// Defined returns a valid Fraction holding v.
func Defined(v float64) Fraction {
	return Fraction{Value: v, Valid: true}
}

// Undefined returns the "not applicable" Fraction.
func Undefined() Fraction {
	return Fraction{}
}

// Or returns the fraction's value, or fallback when it is undefined.
func (f Fraction) Or(fallback float64) float64 {
	if !f.Valid {
		return fallback
	}
	return f.Value
}

// String renders the value, or an empty string when undefined (matches the
// blank cell written to CSV exports).
func (f Fraction) String() string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'g', -1, 64)
}

// MarshalJSON encodes an undefined fraction as null.
func (f Fraction) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON decodes null as undefined.
func (f *Fraction) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Fraction{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Defined(v)
	return nil
}
