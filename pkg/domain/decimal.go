package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	dErrors "casereview/pkg/domain-errors"
)

// maxScale bounds the digits accepted after the decimal point so that sums
// stay exact under decimalContext.
const maxScale = 8

// decimalContext is wide enough that additions of validated inputs never round.
var decimalContext = apd.BaseContext.WithPrecision(64)

// Decimal is an immutable exact decimal. The zero value is 0.
type Decimal struct {
	v *apd.Decimal
}

// NewDecimal returns coeff * 10^exp.
func NewDecimal(coeff int64, exp int32) Decimal {
	return Decimal{v: apd.New(coeff, exp)}
}

// DecimalFromInt returns i as a Decimal.
func DecimalFromInt(i int64) Decimal {
	return NewDecimal(i, 0)
}

// ParseDecimal parses a plain or scientific decimal literal.
// NaN, infinities and values with more than 8 fractional digits are rejected.
func ParseDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid decimal %q", s))
	}
	if d.Form != apd.Finite {
		return Decimal{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("decimal %q must be finite", s))
	}
	if d.Exponent < -maxScale {
		return Decimal{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("decimal %q has more than %d fractional digits", s, maxScale))
	}
	if d.NumDigits()+int64(d.Exponent) > 30 {
		return Decimal{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("decimal %q is out of range", s))
	}
	return Decimal{v: d}, nil
}

// MustDecimal is ParseDecimal for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) raw() *apd.Decimal {
	if d.v == nil {
		return &apd.Decimal{}
	}
	return d.v
}

// Add returns d + o.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	out := new(apd.Decimal)
	if _, err := decimalContext.Add(out, d.raw(), o.raw()); err != nil {
		return Decimal{}, fmt.Errorf("decimal add: %w", err)
	}
	return Decimal{v: out}, nil
}

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	out := new(apd.Decimal)
	if _, err := decimalContext.Sub(out, d.raw(), o.raw()); err != nil {
		return Decimal{}, fmt.Errorf("decimal sub: %w", err)
	}
	return Decimal{v: out}, nil
}

// Sum adds all values.
func Sum(values ...Decimal) (Decimal, error) {
	total := Decimal{}
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Decimal{}, err
		}
	}
	return total, nil
}

// Cmp compares d and o and returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	return d.raw().Cmp(o.raw())
}

// Equal reports numeric equality, so 100 equals 100.00.
func (d Decimal) Equal(o Decimal) bool { return d.Cmp(o) == 0 }

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int { return d.raw().Sign() }

// IsZero reports whether d is numerically zero.
func (d Decimal) IsZero() bool { return d.Sign() == 0 }

// Float64 is lossy and only meant for metrics and expression inputs.
func (d Decimal) Float64() float64 {
	f, err := d.raw().Float64()
	if err != nil {
		return 0
	}
	return f
}

// String renders plain notation without an exponent.
func (d Decimal) String() string {
	return d.raw().Text('f')
}

// MarshalJSON writes the value as a JSON number.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = Decimal{}
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return dErrors.New(dErrors.CodeValidation, "invalid decimal string")
		}
	}
	parsed, err := ParseDecimal(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
