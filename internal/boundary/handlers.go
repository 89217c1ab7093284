package boundary

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Lamont-Labs/VeraSeal/internal/engine"
	"github.com/Lamont-Labs/VeraSeal/internal/invariant"
	"github.com/Lamont-Labs/VeraSeal/internal/policy"
	"github.com/Lamont-Labs/VeraSeal/internal/replay"
	"github.com/Lamont-Labs/VeraSeal/internal/schema"
	"github.com/Lamont-Labs/VeraSeal/internal/seal"
	"github.com/Lamont-Labs/VeraSeal/internal/store"
)

// handleEvaluate implements POST /v1/evaluate, the error taxonomy of
// spec §7: MalformedJson -> 400, SchemaError -> 422 with field list,
// InvariantViolation(PRE) -> 400, InvariantViolation(POST)/IoError -> 500,
// AlreadyExists -> 409.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx, done := s.Obs.TrackOperation(r.Context(), "evaluate")
	defer func() { done(nil) }()

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		WriteBadRequest(w, "failed to read request body")
		return
	}

	// policy_id selects which policy evaluates the request; it travels as
	// a query parameter rather than inside the body, since the body is
	// the Request shape of spec §3/§4.2 exactly, nothing more.
	policyID := r.URL.Query().Get("policy_id")

	req, err := schema.Validate(raw)
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			WriteUnprocessableEntity(w, verr.Error())
			return
		}
		WriteBadRequest(w, err.Error())
		return
	}

	result, _, err := engine.Evaluate(req, policyID)
	if err != nil {
		var v *invariant.Violation
		if errors.As(err, &v) {
			if v.Kind == invariant.Pre {
				WriteBadRequest(w, v.Error())
			} else {
				WriteInternal(w, v)
			}
			return
		}
		var up *policy.ErrUnknownPolicy
		if errors.As(err, &up) {
			WriteUnprocessableEntity(w, err.Error())
			return
		}
		WriteInternal(w, err)
		return
	}

	stored, err := s.Store.Persist(req, result)
	if err != nil {
		var already *store.AlreadyExistsError
		if errors.As(err, &already) {
			WriteConflict(w, already.Error())
			return
		}
		WriteInternal(w, err)
		return
	}

	if s.Index != nil {
		md := seal.Metadata{
			EvaluationID:    stored.EvaluationID,
			InjectedTimeUTC: req.InjectedTimeUTC,
			Subject:         req.Subject,
			Ruleset:         req.Ruleset,
			InputSHA256:     stored.InputSHA256,
			OutputSHA256:    stored.OutputSHA256,
			ManifestSHA256:  stored.ManifestSHA256,
		}
		s.Index.RecordBestEffort(ctx, md)
	}

	writeJSON(w, http.StatusOK, stored)
}

// handleFetch implements GET /v1/evaluations/{id}/<file>.json for each of
// the five persisted files.
func (s *Server) handleFetch(file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		loaded, err := s.Store.Load(id)
		if err != nil {
			var nf *store.NotFoundError
			if errors.As(err, &nf) {
				WriteNotFound(w, nf.Error())
				return
			}
			WriteInternal(w, err)
			return
		}

		var body []byte
		switch file {
		case "input.json":
			body = loaded.Input
		case "output.json":
			body = loaded.Output
		case "trace.json":
			body = loaded.Trace
		case "metadata.json":
			body = loaded.Metadata
		case "manifest.json":
			body = loaded.Manifest
		}
		if body == nil {
			WriteNotFound(w, "evaluation exists but "+file+" is missing")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// handleBundle implements GET /v1/evaluations/{id}/bundle.zip, optionally
// signing the bundle when the Store has a Signer configured and
// replicating it off-site via Archive (fire-and-forget).
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	bundle, sig, err := s.Store.BundleWithSignature(id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			WriteNotFound(w, nf.Error())
			return
		}
		WriteInternal(w, err)
		return
	}

	if s.Archive != nil {
		s.Archive.ReplicateBestEffort(r.Context(), id, bundle)
	}
	if sig != nil {
		w.Header().Set("X-Bundle-Signature", hex.EncodeToString(sig))
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.zip"`)
	_, _ = w.Write(bundle)
}

// handleReplay implements POST /v1/evaluations/{id}/replay. Per spec §7, a
// replay mismatch is data, not an HTTP error: the verdict is the 200
// response body even when replay_ok is false.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	verdict, err := replay.Run(s.Store, id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			WriteNotFound(w, nf.Error())
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
