// Package seal holds the wire and persistence types shared by every stage
// of the seal pipeline: Schema, Policy, Invariants, Engine, Store, and
// Replay all operate on these types rather than on raw JSON.
package seal

import "encoding/json"

// Decision is the fixed verdict vocabulary a policy may return.
type Decision string

const (
	Accept Decision = "ACCEPT"
	Reject Decision = "REJECT"
)

// Request is the immutable input to an evaluation, accepted by Schema.
type Request struct {
	Version         string          `json:"version"`
	Subject         string          `json:"subject"`
	Ruleset         string          `json:"ruleset"`
	Payload         json.RawMessage `json:"payload"`
	InjectedTimeUTC string          `json:"injected_time_utc"`
}

// TraceStep is a single order-sensitive step in an evaluation's trace.
type TraceStep struct {
	StepName string `json:"step_name"`
	Status   string `json:"status"` // "PASS" | "FAIL"
	Details  string `json:"details"`
}

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// Result is the full, durable outcome of an evaluation.
type Result struct {
	EvaluationID   string      `json:"evaluation_id"`
	InputSHA256    string      `json:"input_sha256"`
	OutputSHA256   string      `json:"output_sha256"`
	ManifestSHA256 string      `json:"manifest_sha256,omitempty"`
	PolicyID       string      `json:"policy_id"`
	Decision       Decision    `json:"decision"`
	Reasons        []string    `json:"reasons"`
	Trace          []TraceStep `json:"trace"`
	CreatedTimeUTC string      `json:"created_time_utc"`
}

// OutputProjection is the subset of Result persisted to output.json (spec
// §4.6): evaluation_id, input_sha256, output_sha256, policy_id, decision,
// reasons, created_time_utc. Trace lives in its own trace.json file.
type OutputProjection struct {
	EvaluationID   string   `json:"evaluation_id"`
	InputSHA256    string   `json:"input_sha256"`
	OutputSHA256   string   `json:"output_sha256"`
	PolicyID       string   `json:"policy_id"`
	Decision       Decision `json:"decision"`
	Reasons        []string `json:"reasons"`
	CreatedTimeUTC string   `json:"created_time_utc"`
}

// ManifestFile is one entry of a Manifest's ordered file list.
type ManifestFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest binds an evaluation id to the digests of its persisted files.
type Manifest struct {
	EvaluationID   string         `json:"evaluation_id"`
	Files          []ManifestFile `json:"files"`
	ManifestSHA256 string         `json:"manifest_sha256,omitempty"`
}

// Metadata is the denormalized index record for an evaluation.
type Metadata struct {
	EvaluationID    string `json:"evaluation_id"`
	InjectedTimeUTC string `json:"injected_time_utc"`
	Subject         string `json:"subject"`
	Ruleset         string `json:"ruleset"`
	InputSHA256     string `json:"input_sha256"`
	OutputSHA256    string `json:"output_sha256"`
	TraceSHA256     string `json:"trace_sha256"`
	ManifestSHA256  string `json:"manifest_sha256"`
}

// ReplayVerdict is the outcome of replaying a stored evaluation.
type ReplayVerdict struct {
	ReplayOK   bool     `json:"replay_ok"`
	Mismatches []string `json:"mismatches,omitempty"`
}
