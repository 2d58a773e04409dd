package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// UnavailableText is the stored and reported form of an unavailable value.
const UnavailableText = "N/A"

// Value is one observed cell: either an exact number or the unavailable sentinel.
// The zero Value is unavailable.
type Value struct {
	num   decimal.Decimal
	valid bool
}

// Unavailable returns the sentinel for a series that could not be observed.
func Unavailable() Value {
	return Value{}
}

// Number returns an available value holding f. NaN and infinities are
// not numbers a series can hold and yield Unavailable.
func Number(f float64) Value {
	if !finite(f) {
		return Unavailable()
	}
	return Value{num: decimal.NewFromFloat(f), valid: true}
}

// DecimalValue returns an available value holding d.
func DecimalValue(d decimal.Decimal) Value {
	return Value{num: d, valid: true}
}

// ParseValue parses a fetched or stored representation.
// Thousands separators and surrounding whitespace are ignored.
// Blank cells and the "N/A" sentinel yield Unavailable with ok=true;
// any other non-numeric text, including numbers outside the float64 range,
// yields ok=false.
func ParseValue(s string) (v Value, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, UnavailableText) {
		return Unavailable(), true
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return Unavailable(), false
	}
	if f, _ := d.Float64(); !finite(f) {
		return Unavailable(), false
	}
	return DecimalValue(d), true
}

// Available reports whether v holds a number.
func (v Value) Available() bool {
	return v.valid
}

// Float returns the numeric value; ok is false for Unavailable.
func (v Value) Float() (f float64, ok bool) {
	if !v.valid {
		return 0, false
	}
	f, _ = v.num.Float64()
	return f, true
}

// OrZero returns the numeric value, or 0 when unavailable.
func (v Value) OrZero() float64 {
	f, _ := v.Float()
	return f
}

// Decimal returns the exact numeric value; ok is false for Unavailable.
func (v Value) Decimal() (decimal.Decimal, bool) {
	return v.num, v.valid
}

// Equal compares two values numerically. Two unavailable values are equal.
func (v Value) Equal(o Value) bool {
	if v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	return v.num.Equal(o.num)
}

// String returns the canonical representation used in storage and reports.
func (v Value) String() string {
	if !v.valid {
		return UnavailableText
	}
	return v.num.String()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
