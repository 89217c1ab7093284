//go:build property
// +build property

package codec

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCanonicalBytes_Idempotent_Property exercises the quantified invariant
// of spec §8: canonicalize(R) == canonicalize(R) byte-for-byte across
// independent invocations, for arbitrarily generated string-keyed objects.
func TestCanonicalBytes_Idempotent_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("canonicalization is idempotent", prop.ForAll(
		func(keys []string, values []string) bool {
			obj := make(map[string]interface{})
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					obj[keys[i]] = values[i]
				}
			}

			a, err1 := CanonicalBytes(obj)
			b, err2 := CanonicalBytes(obj)
			if err1 != nil || err2 != nil {
				return err1 == err2
			}
			return string(a) == string(b)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("canonicalization is invariant to map rebuild order", prop.ForAll(
		func(keys []string, values []string) bool {
			obj := make(map[string]interface{})
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					obj[keys[i]] = values[i]
				}
			}
			rebuilt := make(map[string]interface{}, len(obj))
			for k, v := range obj {
				rebuilt[k] = v
			}

			a, err1 := CanonicalBytes(obj)
			b, err2 := CanonicalBytes(rebuilt)
			if err1 != nil || err2 != nil {
				return err1 == err2
			}
			return string(a) == string(b)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
