// Package schema validates an external JSON object against the Request
// shape (spec §3/§4.2) before it ever reaches the Engine. It rejects
// missing/unknown fields, wrong scalar types, out-of-bound strings,
// malformed timestamps, and any payload containing non-JSON scalars
// (NaN/Infinity, non-string map keys) — the same PEP-boundary discipline
// Mindburn-Labs/helm applies in pkg/manifest/validate_tool_args.go, plus a
// structural JSON-Schema pre-check (santhosh-tekuri/jsonschema/v5, as used
// in pkg/firewall/firewall.go) ahead of the hand-rolled recursive walk.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

// ErrorKind enumerates the validation error taxonomy of spec §4.2.
type ErrorKind string

const (
	KindMissing        ErrorKind = "missing"
	KindExtraForbidden ErrorKind = "extra_forbidden"
	KindWrongType      ErrorKind = "wrong_type"
	KindInvalidValue   ErrorKind = "invalid_value"
)

// FieldError describes a single offending field.
type FieldError struct {
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
}

// ValidationError aggregates every offending field found in one request.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", fe.Field, fe.Message, fe.Kind))
	}
	return "schema: validation failed: " + strings.Join(parts, "; ")
}

var timeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)

const requestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "subject", "ruleset", "payload", "injected_time_utc"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string"},
    "subject": {"type": "string", "minLength": 1, "maxLength": 128},
    "ruleset": {"type": "string", "minLength": 1, "maxLength": 128},
    "payload": {"type": "object"},
    "injected_time_utc": {"type": "string"}
  }
}`

var compiledRequestSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://veraseal.local/schemas/request.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(requestSchemaJSON)); err != nil {
		panic(fmt.Sprintf("schema: embedded request schema invalid: %v", err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("schema: embedded request schema failed to compile: %v", err))
	}
	compiledRequestSchema = compiled

	var doc interface{}
	if err := json.Unmarshal([]byte(requestSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("schema: embedded request schema failed to parse as a document: %v", err))
	}
	requestSchemaDocument = doc
}

var requestSchemaDocument interface{}

// RequestSchemaDocument returns the embedded request JSON Schema as a
// generic document, for the GET /v1/schema boundary endpoint (the
// ORIGINAL-SOURCE SUPPLEMENT's re-addition of the ground-truth original's
// schema introspection surface) to re-serve verbatim.
func RequestSchemaDocument() interface{} {
	return requestSchemaDocument
}

// Validate parses raw bytes as a Request, enforcing every constraint of
// spec §3. On success it returns a typed, immutable *seal.Request. A body
// that is not well-formed JSON returns a plain error; any other failure
// returns a *ValidationError listing every offending field.
func Validate(raw []byte) (*seal.Request, error) {
	var generic interface{}
	dec := json.NewDecoder(strings.NewReader(string(sanitizeLenientLiterals(raw))))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("schema: malformed JSON: %w", err)
	}
	generic = restoreLenientLiterals(generic)

	obj, ok := generic.(map[string]interface{})
	if !ok {
		return nil, &ValidationError{Errors: []FieldError{{
			Field: "$", Kind: KindWrongType, Message: "request body must be a JSON object",
		}}}
	}

	// Structural pre-check: required/forbidden fields and top-level types.
	if err := compiledRequestSchema.Validate(obj); err != nil {
		return nil, translateSchemaError(err)
	}

	var errs []FieldError

	version, _ := obj["version"].(string)
	if version != "v1" {
		errs = append(errs, FieldError{Field: "version", Kind: KindInvalidValue, Message: `must equal "v1"`})
	}

	subject, _ := obj["subject"].(string)
	if l := len(subject); l < 1 || l > 128 {
		errs = append(errs, FieldError{Field: "subject", Kind: KindInvalidValue, Message: "must be 1..128 chars"})
	}

	ruleset, _ := obj["ruleset"].(string)
	if l := len(ruleset); l < 1 || l > 128 {
		errs = append(errs, FieldError{Field: "ruleset", Kind: KindInvalidValue, Message: "must be 1..128 chars"})
	}

	injected, _ := obj["injected_time_utc"].(string)
	if !timeRe.MatchString(injected) {
		errs = append(errs, FieldError{Field: "injected_time_utc", Kind: KindInvalidValue, Message: "must match RFC3339-like timestamp grammar"})
	}

	payload, ok := obj["payload"].(map[string]interface{})
	if !ok {
		errs = append(errs, FieldError{Field: "payload", Kind: KindWrongType, Message: "must be a JSON object"})
	} else {
		walkPayload("payload", payload, &errs)
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{Errors: []FieldError{{
			Field: "payload", Kind: KindInvalidValue, Message: "failed to re-serialize payload: " + err.Error(),
		}}}
	}

	return &seal.Request{
		Version:         version,
		Subject:         subject,
		Ruleset:         ruleset,
		Payload:         payloadBytes,
		InjectedTimeUTC: injected,
	}, nil
}

// walkPayload recursively validates that the payload contains only:
// objects with string keys, arrays, strings, booleans, integers, finite
// floats, or null — rejecting NaN/Infinity and non-string map keys. Bare
// NaN/Infinity/-Infinity tokens (the literal grammar Python's json.loads
// accepts, per the ground-truth original) survive decoding via
// sanitizeLenientLiterals/restoreLenientLiterals above as ordinary
// json.Number values, so this is the single place that rejects them — with
// the offending field path, matching spec §8 scenario 6 — rather than
// failing the whole request as malformed JSON before the walk ever runs.
func walkPayload(path string, v interface{}, errs *[]FieldError) {
	switch t := v.(type) {
	case nil, bool, string:
		return
	case json.Number:
		f, err := t.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			*errs = append(*errs, FieldError{Field: path, Kind: KindInvalidValue, Message: "not a finite number"})
		}
	case map[string]interface{}:
		for k, val := range t {
			walkPayload(path+"."+k, val, errs)
		}
	case []interface{}:
		for i, val := range t {
			walkPayload(fmt.Sprintf("%s[%d]", path, i), val, errs)
		}
	default:
		*errs = append(*errs, FieldError{Field: path, Kind: KindInvalidValue, Message: fmt.Sprintf("unsupported scalar type %T", v)})
	}
}

func translateSchemaError(err error) *ValidationError {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Errors: []FieldError{{Field: "$", Kind: KindInvalidValue, Message: err.Error()}}}
	}

	var errs []FieldError
	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			errs = append(errs, FieldError{
				Field:   fieldFromPointer(e.InstanceLocation),
				Kind:    classifyMessage(e.Message),
				Message: e.Message,
			})
			return
		}
		for _, c := range e.Causes {
			collect(c)
		}
	}
	collect(ve)
	return &ValidationError{Errors: errs}
}

func fieldFromPointer(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return "$"
	}
	return strings.ReplaceAll(ptr, "/", ".")
}

func classifyMessage(msg string) ErrorKind {
	switch {
	case strings.Contains(msg, "additionalProperties") || strings.Contains(msg, "not allowed"):
		return KindExtraForbidden
	case strings.Contains(msg, "required"):
		return KindMissing
	case strings.Contains(msg, "type"):
		return KindWrongType
	default:
		return KindInvalidValue
	}
}

// Go's encoding/json rejects bare NaN/Infinity/-Infinity tokens as a syntax
// error, but Python's json.loads (the ground-truth original's decoder,
// app/schemas/evaluation.py) accepts them by default. sanitizeLenientLiterals
// rewrites each bare occurrence (outside of quoted strings) into a quoted
// sentinel so the standard decoder accepts the document; restoreLenientLiterals
// turns each sentinel back into a json.Number carrying the original literal,
// so walkPayload — not the decoder — is what rejects it, with a field path.
const (
	lenientNaNSentinel    = "\x00veraseal:lenient:nan\x00"
	lenientInfSentinel    = "\x00veraseal:lenient:inf\x00"
	lenientNegInfSentinel = "\x00veraseal:lenient:neg-inf\x00"
)

var lenientTokens = []struct {
	literal     string
	replacement string
}{
	// Longest-prefix-first so "-Infinity" is matched before a bare "Infinity".
	{"-Infinity", "\"\\u0000veraseal:lenient:neg-inf\\u0000\""},
	{"Infinity", "\"\\u0000veraseal:lenient:inf\\u0000\""},
	{"NaN", "\"\\u0000veraseal:lenient:nan\\u0000\""},
}

func sanitizeLenientLiterals(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}

		matched := false
		for _, tok := range lenientTokens {
			n := len(tok.literal)
			if i+n > len(raw) || string(raw[i:i+n]) != tok.literal {
				continue
			}
			if i > 0 && isIdentByte(raw[i-1]) {
				continue
			}
			if i+n < len(raw) && isIdentByte(raw[i+n]) {
				continue
			}
			out = append(out, tok.replacement...)
			i += n - 1
			matched = true
			break
		}
		if matched {
			continue
		}

		out = append(out, c)
	}
	return out
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func restoreLenientLiterals(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		switch t {
		case lenientNaNSentinel:
			return json.Number("NaN")
		case lenientInfSentinel:
			return json.Number("Infinity")
		case lenientNegInfSentinel:
			return json.Number("-Infinity")
		default:
			return t
		}
	case map[string]interface{}:
		for k, val := range t {
			t[k] = restoreLenientLiterals(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = restoreLenientLiterals(val)
		}
		return t
	default:
		return v
	}
}
