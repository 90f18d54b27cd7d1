package decode

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// Observed is implemented by every tolerant field so a caller can count
// how many positions of a payload were defaulted.
type Observed interface {
	DecodeOutcome() Outcome
}

// Amount is a monetary field decoded with ParseAmount.
type Amount struct {
	Value   decimal.Decimal
	Outcome Outcome
}

func NewAmount(v decimal.Decimal) Amount {
	return Amount{Value: v}
}

func (a *Amount) UnmarshalJSON(raw []byte) error {
	a.Value, a.Outcome = ParseAmount(raw)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Value.String()), nil
}

func (a Amount) DecodeOutcome() Outcome { return a.Outcome }

// Int is an integer field that may be absent. Valid is false when the
// value was null, missing or coerced.
type Int struct {
	Value   int64
	Valid   bool
	Outcome Outcome
}

func NewInt(v int64) Int {
	return Int{Value: v, Valid: true}
}

func (i *Int) UnmarshalJSON(raw []byte) error {
	i.Value, i.Outcome = ParseInt(raw)
	i.Valid = i.Outcome == Parsed
	return nil
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(i.Value, 10)), nil
}

func (i Int) DecodeOutcome() Outcome { return i.Outcome }

// Ptr returns nil when the value is not valid.
func (i Int) Ptr() *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Value
	return &v
}

// Text is a string field that tolerates numeric input.
type Text struct {
	Value   string
	Outcome Outcome
}

func NewText(v string) Text {
	return Text{Value: v}
}

func (t *Text) UnmarshalJSON(raw []byte) error {
	t.Value, t.Outcome = ParseText(raw)
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Value)
}

func (t Text) DecodeOutcome() Outcome { return t.Outcome }

func (t Text) String() string { return t.Value }

// Bool is a boolean field that tolerates 0/1 and string forms.
type Bool struct {
	Value   bool
	Outcome Outcome
}

func (b *Bool) UnmarshalJSON(raw []byte) error {
	b.Value, b.Outcome = ParseBool(raw)
	return nil
}

func (b Bool) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Value)
}

func (b Bool) DecodeOutcome() Outcome { return b.Outcome }

// Tally counts coerced positions.
type Tally struct {
	coerced int
}

func (t *Tally) Observe(fields ...Observed) {
	for _, f := range fields {
		if f.DecodeOutcome() == Coerced {
			t.coerced++
		}
	}
}

func (t *Tally) Coerced() int {
	if t == nil {
		return 0
	}
	return t.coerced
}
