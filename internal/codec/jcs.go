// Package codec is the single source of truth for "what bytes does this
// value have?". It implements canonical JSON serialization (an RFC 8785
// style JCS rendering) and SHA-256 digesting, the way
// Mindburn-Labs/helm's pkg/canonicalize package does it: a dedicated
// recursive routine, not a reflection-based off-the-shelf encoder, because
// stdlib json.Marshal neither sorts map keys at every depth deterministically
// across Go versions nor gives control over float rendering.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrInvalidValue is returned when a value cannot be canonicalized:
// NaN/Infinity floats, or a non-string map key reaching the recursive walk.
var ErrInvalidValue = errors.New("codec: invalid value")

// CanonicalBytes returns the canonical byte rendering of v: object keys
// sorted lexicographically at every nesting level, separators exactly ","
// and ":", no whitespace, non-ASCII preserved (no \u escaping of BMP),
// NaN/Infinity rejected. For any two values that are structurally equal
// (objects as unordered key/value sets, arrays as ordered lists, scalars
// by JSON identity), CanonicalBytes(a) == CanonicalBytes(b).
func CanonicalBytes(v interface{}) ([]byte, error) {
	// Round-trip through the standard encoder first so struct tags and
	// json.Marshaler implementations are respected; decode with UseNumber
	// so integers and floats stay distinguishable through the recursive
	// walk (see the Open Question on float rendering in SPEC_FULL.md).
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: pre-marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("codec: intermediate decode failed: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJSONNumber unmarshals raw JSON into out using json.Number for every
// numeric literal, the same decoding discipline CanonicalBytes applies
// internally, so callers that need to inspect a decoded payload (e.g. the
// policy engine) see the same integer/float distinction that hashing sees.
func DecodeJSONNumber(raw []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// Digest returns the 64-char lowercase hex SHA-256 digest of CanonicalBytes(v).
func Digest(v interface{}) (string, error) {
	b, err := CanonicalBytes(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
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
	case json.Number:
		return writeCanonicalNumber(buf, t)
	case string:
		return writeCanonicalString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
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
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// writeCanonicalString emits standard JSON escaping of control characters,
// '"' and '\\'; non-ASCII is emitted as literal UTF-8 bytes rather than
// \uXXXX. The string is transcribed exactly as decoded — no Unicode
// normalization is applied, matching spec §4.1 ("non-ASCII is emitted as
// UTF-8 bytes literally") and the ground-truth encoder (plain json.dumps
// in app/schemas/evaluation.py), which does not normalize either.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	tmpEnc := json.NewEncoder(&tmp)
	tmpEnc.SetEscapeHTML(false)
	if err := tmpEnc.Encode(s); err != nil {
		return fmt.Errorf("codec: string encode failed: %w", err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// writeCanonicalNumber renders a json.Number deterministically:
//   - integer literals (no '.', 'e', 'E') are re-emitted as exact integers.
//   - float literals are decoded to float64 and rendered with
//     strconv.FormatFloat(f, 'g', -1, 64), the shortest round-trip form,
//     rejecting NaN/Infinity per spec.
func writeCanonicalNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if isIntegerLiteral(s) {
		if _, err := n.Int64(); err == nil {
			buf.WriteString(s)
			return nil
		}
		// Integer literal too large for int64: emit the literal verbatim,
		// it is already the canonical decimal form of the integer.
		buf.WriteString(s)
		return nil
	}

	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: NaN/Infinity forbidden", ErrInvalidValue)
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func isIntegerLiteral(s string) bool {
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			return false
		}
	}
	return true
}
