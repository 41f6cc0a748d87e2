package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Value is one price figure. Fmt carries the provider's display string when the
// snapshot was requested formatted; Num carries the number.
type Value struct {
	Num   decimal.Decimal
	Fmt   string
	Valid bool
}

func NewValue(d decimal.Decimal) Value {
	return Value{Num: d, Valid: true}
}

func NewFloatValue(f float64) Value {
	return Value{Num: decimal.NewFromFloat(f), Valid: true}
}

// String prefers the display string.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	if v.Fmt != "" {
		return v.Fmt
	}
	return v.Num.String()
}

type formattedValue struct {
	Raw json.RawMessage `json:"raw"`
	Fmt string          `json:"fmt"`
}

// UnmarshalJSON accepts a bare number, a numeric string, null, or the
// formatted envelope {"raw": 1.5, "fmt": "1.50"}. An empty envelope is absent.
func (v *Value) UnmarshalJSON(b []byte) error {
	*v = Value{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] != '{' {
		d, err := parseDecimal(b)
		if err != nil {
			return err
		}
		*v = NewValue(d)
		return nil
	}

	var fv formattedValue
	if err := json.Unmarshal(b, &fv); err != nil {
		return err
	}
	if len(fv.Raw) == 0 || string(fv.Raw) == "null" {
		return nil
	}
	d, err := parseDecimal(fv.Raw)
	if err != nil {
		return err
	}
	*v = Value{Num: d, Fmt: fv.Fmt, Valid: true}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Raw json.Number `json:"raw"`
		Fmt string      `json:"fmt,omitempty"`
	}{Raw: json.Number(v.Num.String()), Fmt: v.Fmt})
}

func parseDecimal(b []byte) (decimal.Decimal, error) {
	s := string(bytes.Trim(b, `"`))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price value %q: %w", s, err)
	}
	return d, nil
}
