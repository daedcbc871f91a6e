// Package sanitize normalizes loosely typed numeric and document input fields.
package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// numberShape matches what survives stripping and still reads as one finite number.
var numberShape = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)

// Clean turns v into a decimal, keeping only digits, dots and minus signs of its string form.
// It never fails: nil and unparseable input yield an invalid NullDecimal.
// Input that strips down to nothing (for example "" or "kg") reads as zero.
func Clean(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(x)
	case decimal.NullDecimal:
		return x
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(x))
	case json.Number:
		// a JSON number literal may use exponent form, which stripping would mangle
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return decimal.NewNullDecimal(d)
		}
		return cleanString(x.String())
	case string:
		return cleanString(x)
	default:
		return cleanString(fmt.Sprint(x))
	}
}

func fromFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

func cleanString(s string) decimal.NullDecimal {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.NewNullDecimal(decimal.Zero)
	}
	if !numberShape.MatchString(clean) {
		return decimal.NullDecimal{}
	}

	neg := strings.HasPrefix(clean, "-")
	clean = strings.TrimPrefix(clean, "-")
	clean = strings.TrimSuffix(clean, ".")
	if strings.HasPrefix(clean, ".") {
		clean = "0" + clean
	}
	if neg {
		clean = "-" + clean
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// Number is a request field decoded through Clean.
type Number struct {
	decimal.NullDecimal
}

func NewNumber(v any) Number {
	return Number{NullDecimal: Clean(v)}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return errors.Wrap(err, "decode number")
	}
	n.NullDecimal = Clean(raw)
	return nil
}

// Document is a free-form JSON object field. Clients may send it inline or as a
// JSON-encoded string; null decodes to an empty document.
type Document map[string]any

func (d *Document) UnmarshalJSON(b []byte) error {
	out, err := ParseDocument(b)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// ParseDocument decodes an object, a string holding an object, or null.
func ParseDocument(b []byte) (map[string]any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return map[string]any{}, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, errors.Wrap(err, "decode document string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return map[string]any{}, nil
		}
		b = []byte(s)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// EqualNumbers compares two sanitized values numerically. Two nulls are equal.
func EqualNumbers(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

// EqualDocuments compares documents by value, ignoring key order.
func EqualDocuments(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
