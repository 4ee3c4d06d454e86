package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Amount is a token quantity in base units. All balance, supply and
// transfer values are Amounts. Arithmetic must go through Add/Sub so
// overflow and underflow surface as failures instead of wrapping.
type Amount uint64

// MaxAmount is the largest representable token quantity.
const MaxAmount Amount = math.MaxUint64

// Add returns a+b and whether the sum fits. ok is false on overflow
// and the returned value is unspecified.
func (a Amount) Add(b Amount) (Amount, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Sub returns a-b and whether b <= a. ok is false on underflow and
// the returned value is unspecified.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// String formats the amount as a decimal integer.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// ParseAmount parses a decimal integer string into an Amount.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount(v), nil
}

// MarshalJSON encodes the amount as a JSON string. Full uint64 range
// does not survive a float64 round trip, so amounts never travel as
// JSON numbers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an amount from a JSON string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal amount: %w", err)
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
