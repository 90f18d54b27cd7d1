// Package decode turns loosely typed scalar JSON values into typed fields
// without ever failing. Numbers may arrive as JSON numbers, as numeric
// strings, as empty strings or as the literal "null"; anything that is not
// a usable number becomes the zero value and is reported as Coerced.
package decode

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Outcome uint8

const (
	// Parsed means the raw value was a usable value of the expected kind.
	Parsed Outcome = iota
	// Absent means the raw value was JSON null or missing.
	Absent
	// Coerced means a value was present but unusable and was replaced by the default.
	Coerced
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Absent:
		return "absent"
	case Coerced:
		return "coerced"
	default:
		return "unknown"
	}
}

var jsonNull = []byte("null")

// ParseAmount decodes a monetary amount. It never fails: the zero amount is
// returned for null, blank, "null" and unparseable input.
func ParseAmount(raw []byte) (decimal.Decimal, Outcome) {
	text, outcome := scalarText(raw)
	if outcome != Parsed {
		return decimal.Zero, outcome
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, Coerced
	}
	return value, Parsed
}

// ParseInt decodes an integer. Integral decimals such as "100.0" are
// accepted; fractional values and values outside int64 are not.
func ParseInt(raw []byte) (int64, Outcome) {
	text, outcome := scalarText(raw)
	if outcome != Parsed {
		return 0, outcome
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, Parsed
	}
	value, err := decimal.NewFromString(text)
	if err != nil || !value.IsInteger() {
		return 0, Coerced
	}
	if value.LessThan(minInt64) || value.GreaterThan(maxInt64) {
		return 0, Coerced
	}
	return value.IntPart(), Parsed
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// ParseText decodes a string position that some producers fill with numbers.
func ParseText(raw []byte) (string, Outcome) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return "", Absent
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", Coerced
		}
		return s, Parsed
	}
	switch raw[0] {
	case '{', '[':
		return "", Coerced
	}
	return string(raw), Parsed
}

// ParseBool accepts JSON booleans as well as 0/1 and "true"/"false" strings.
func ParseBool(raw []byte) (bool, Outcome) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return false, Absent
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return false, Coerced
		}
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "1":
		return true, Parsed
	case "false", "0":
		return false, Parsed
	default:
		return false, Coerced
	}
}

// scalarText extracts the textual form of a numeric position.
func scalarText(raw []byte) (string, Outcome) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return "", Absent
	}

	text := string(raw)
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", Coerced
		}
	case '{', '[', 't', 'f':
		return "", Coerced
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "null") {
		return "", Coerced
	}
	return text, Parsed
}
