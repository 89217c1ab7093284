package boundary

import (
	"net/http"

	"github.com/Lamont-Labs/VeraSeal/internal/schema"
)

// Version and Commit are overridable at build time via
// -ldflags "-X .../internal/boundary.Version=... -X .../internal/boundary.Commit=...",
// the standard Go substitute for the ground-truth original's FastAPI
// app(version="1.0.0") metadata (app/main.py) — this repo has no other
// ambient facility for stamping a release identifier.
var (
	Version = "dev"
	Commit  = "unknown"
)

// VersionInfo is the GET /v1/version response shape, matching the fields
// the original's tests/api/test_new_endpoints.py::TestVersionEndpoint
// requires: name, version, commit, description.
type VersionInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Description string `json:"description"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionInfo{
		Name:        "VeraSeal",
		Version:     Version,
		Commit:      Commit,
		Description: "Deterministic evaluator that records decisions with verifiable proof",
	})
}

// schemaResponse is the GET /v1/schema response shape: the compiled
// request schema, a literal description of the response shape, and the
// legacy policy's one-line rule summary, mirroring the original's
// TestSchemaEndpoint assertions (request/response/mvp_rule keys,
// request.required, request.additionalProperties).
type schemaResponse struct {
	Request  interface{} `json:"request"`
	Response interface{} `json:"response"`
	MVPRule  string      `json:"mvp_rule"`
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schemaResponse{
		Request: schema.RequestSchemaDocument(),
		Response: map[string]interface{}{
			"evaluation_id":     "string, 16 lowercase hex characters",
			"input_sha256":      "string, 64 lowercase hex characters",
			"output_sha256":     "string, 64 lowercase hex characters",
			"manifest_sha256":   "string, 64 lowercase hex characters",
			"policy_id":         "string",
			"decision":          "one of ACCEPT, REJECT",
			"reasons":           "array of string",
			"created_time_utc":  "string, same value as request.injected_time_utc",
		},
		MVPRule: `legacy policy "mvp-placeholder-v0": payload.assert == true yields ACCEPT, anything else yields REJECT`,
	})
}

// example is one entry of the GET /v1/examples response, which holds three
// named, ready-to-submit example requests and their expected decisions, matching
// TestExamplesEndpoint's vendor_approval/policy_exception/access_approval
// keys. These are illustrative labels, not distinct policy variants — the
// default policy (evaluation-policy-v1) evaluates all three.
type example struct {
	Description      string                 `json:"description"`
	Request          map[string]interface{} `json:"request"`
	ExpectedDecision string                 `json:"expected_decision"`
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	mk := func(subject, ruleset string, payload map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"version":           "v1",
			"subject":           subject,
			"ruleset":           ruleset,
			"payload":           payload,
			"injected_time_utc": "2026-01-01T00:00:00Z",
		}
	}

	writeJSON(w, http.StatusOK, map[string]example{
		"vendor_approval": {
			Description: "A vendor onboarding request approved under the default policy.",
			Request: mk("vendor-acme-co", "vendor-approval-v1", map[string]interface{}{
				"decision_requested": "ACCEPT",
				"justification":      "vendor passed security questionnaire",
			}),
			ExpectedDecision: "ACCEPT",
		},
		"policy_exception": {
			Description: "An exception request rejected for missing justification.",
			Request: mk("policy-exception-482", "policy-exception-v1", map[string]interface{}{
				"decision_requested": "ACCEPT",
				"justification":      "",
			}),
			ExpectedDecision: "REJECT",
		},
		"access_approval": {
			Description: "An access-grant request rejected by the caller explicitly.",
			Request: mk("user-jdoe-prod-db", "access-approval-v1", map[string]interface{}{
				"decision_requested": "REJECT",
				"justification":      "ticket closed without approval",
			}),
			ExpectedDecision: "REJECT",
		},
	})
}
