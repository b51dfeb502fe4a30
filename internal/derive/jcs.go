package derive

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Canonicalize reduces arbitrary JSON bytes to RFC 8785 JSON
// Canonicalization Scheme form: object keys sorted, no insignificant
// whitespace, and null-valued object fields omitted
// entirely rather than serialized as "key":null.
//
// No JCS library exists anywhere in the example corpus; this is a
// deliberate, narrowly-scoped hand implementation rather than a missing
// dependency; see DESIGN.md.
func Canonicalize(raw []byte) (string, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", errors.Wrap(err, "failed to decode JSON for canonicalization")
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, pruneNulls(v)); err != nil {
		return "", errors.Wrap(err, "failed to write canonical JSON")
	}
	return buf.String(), nil
}

// pruneNulls removes null-valued object fields, recursively. Array
// elements are never dropped (only an explicit "undefined" field on an
// object is the target of this rule).
func pruneNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = pruneNulls(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = pruneNulls(val)
		}
		return out
	default:
		return v
	}
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		return writeCanonicalString(buf, t)
	case json.Number:
		return writeCanonicalNumber(buf, t)
	case map[string]interface{}:
		return writeCanonicalObject(buf, t)
	case []interface{}:
		return writeCanonicalArray(buf, t)
	default:
		return errors.Errorf("unsupported JSON value type %T", v)
	}
}

func writeCanonicalObject(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// RFC 8785 §3.2.3: sort by UTF-16 code unit order, which coincides with
	// a plain byte-wise sort of the UTF-8 encoding for the BMP range this
	// application domain (path/domain/meta keys) actually uses.
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeCanonicalArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, elem); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	enc, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(enc)
	return nil
}

// writeCanonicalNumber formats a JSON number per RFC 8785 §3.2.2.3: integers
// without a fractional part or exponent, everything else as the shortest
// round-tripping decimal representation (ECMA-262 Number::toString).
func writeCanonicalNumber(buf *bytes.Buffer, n json.Number) error {
	if i, err := n.Int64(); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return errors.Wrapf(err, "invalid JSON number %q", string(n))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Errorf("JSON number %q is not finite", string(n))
	}
	buf.WriteString(formatJSFloat(f))
	return nil
}

func formatJSFloat(f float64) string {
	abs := math.Abs(f)
	if abs == 0 {
		return "0"
	}
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	// Outside [1e-6, 1e21) ECMA-262 uses exponent form with an unpadded
	// exponent ("1e-7", "1.5e+21"); Go pads it to two digits ("1e-07").
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}
