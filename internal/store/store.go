// Package store implements the append-only filesystem artifact layout of
// spec §4.6: atomic fsync writes, manifest computation, directory-level
// commit, and deterministic ZIP bundling. It is grounded on
// Mindburn-Labs/helm's pkg/artifacts.FileStore (temp-file-then-rename
// writes) and pkg/audit/export.go (ZIP assembly), generalized from a
// content-addressed blob store into an evaluation-id-addressed directory
// store, and tightened to the crash-consistency strategy of spec §4.8
// option (a), not per-file renames: the four evaluation-directory files
// (input, output, trace, metadata) are built in a temp sibling directory and
// renamed into place atomically. The manifest lives under manifests/, outside
// that directory, and is written by its own atomic write after the rename,
// so a crash between the two leaves a committed evaluation directory
// without its manifest file.
package store

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Lamont-Labs/VeraSeal/internal/codec"
	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

// Sentinel errors mapped by the boundary layer per spec §7.
type AlreadyExistsError struct{ EvaluationID string }

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("store: evaluation %s already exists", e.EvaluationID)
}

type NotFoundError struct{ EvaluationID string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: evaluation %s not found", e.EvaluationID)
}

type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// bundleEpoch is the fixed ZIP entry timestamp spec §4.6 mandates so that
// bundle(id) is byte-identical across repeated calls.
var bundleEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Store is the append-only evaluation artifact store rooted at a single
// artifact directory, explicitly constructed with that root — never a
// package-level global (spec §9 "No global state").
type Store struct {
	root   string
	signer Signer
}

// New ensures the artifact root and its evaluations/ and manifests/
// subdirectories exist and are writable, matching spec §6's "created on
// startup if absent; must be writable".
func New(root string) (*Store, error) {
	for _, sub := range []string{"evaluations", "manifests"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, &IoError{Op: "mkdir " + sub, Err: err}
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) evalDir(id string) string {
	return filepath.Join(s.root, "evaluations", id)
}

func (s *Store) manifestPath(id string) string {
	return filepath.Join(s.root, "manifests", id+".manifest.json")
}

// Persist writes request, result into the append-only layout of spec §4.6,
// returning a Result identical to the input one but with manifest_sha256
// filled. If evaluations/<id>/ already exists, returns *AlreadyExistsError
// without touching anything on disk (append-only discipline).
func (s *Store) Persist(req *seal.Request, result *seal.Result) (*seal.Result, error) {
	id := result.EvaluationID
	finalDir := s.evalDir(id)

	if _, err := os.Stat(finalDir); err == nil {
		return nil, &AlreadyExistsError{EvaluationID: id}
	} else if !os.IsNotExist(err) {
		return nil, &IoError{Op: "stat evaluation dir", Err: err}
	}

	// Build the four evaluation-directory files in a temp sibling directory
	// first, per spec §4.8 strategy (a): either all four exist under
	// evaluations/<id>/ or that directory does not. The manifest is not part
	// of this set; it is written after the rename below.
	tmpDir := filepath.Join(s.root, "evaluations", ".tmp-"+uuid.NewString())
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, &IoError{Op: "mkdir temp eval dir", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	inputBytes, err := codec.CanonicalBytes(requestWireShape(req))
	if err != nil {
		return nil, &IoError{Op: "canonicalize input", Err: err}
	}
	if err := atomicWrite(filepath.Join(tmpDir, "input.json"), inputBytes); err != nil {
		return nil, err
	}

	traceBytes, err := codec.CanonicalBytes(result.Trace)
	if err != nil {
		return nil, &IoError{Op: "canonicalize trace", Err: err}
	}
	if err := atomicWrite(filepath.Join(tmpDir, "trace.json"), traceBytes); err != nil {
		return nil, err
	}

	projection := seal.OutputProjection{
		EvaluationID:   result.EvaluationID,
		InputSHA256:    result.InputSHA256,
		OutputSHA256:   result.OutputSHA256,
		PolicyID:       result.PolicyID,
		Decision:       result.Decision,
		Reasons:        result.Reasons,
		CreatedTimeUTC: result.CreatedTimeUTC,
	}
	outputBytes, err := codec.CanonicalBytes(projection)
	if err != nil {
		return nil, &IoError{Op: "canonicalize output", Err: err}
	}
	if err := atomicWrite(filepath.Join(tmpDir, "output.json"), outputBytes); err != nil {
		return nil, err
	}

	// Manifest: file digests and sizes in the fixed order input, output,
	// trace (spec §4.6 step 5).
	manifest := seal.Manifest{
		EvaluationID: id,
		Files: []seal.ManifestFile{
			{Path: "input.json", SHA256: codec.HashBytes(inputBytes), Size: int64(len(inputBytes))},
			{Path: "output.json", SHA256: codec.HashBytes(outputBytes), Size: int64(len(outputBytes))},
			{Path: "trace.json", SHA256: codec.HashBytes(traceBytes), Size: int64(len(traceBytes))},
		},
	}
	manifestHashBytes, err := codec.CanonicalBytes(manifest)
	if err != nil {
		return nil, &IoError{Op: "canonicalize manifest", Err: err}
	}
	manifestSHA256 := codec.HashBytes(manifestHashBytes)
	manifest.ManifestSHA256 = manifestSHA256

	metadata := seal.Metadata{
		EvaluationID:    id,
		InjectedTimeUTC: req.InjectedTimeUTC,
		Subject:         req.Subject,
		Ruleset:         req.Ruleset,
		InputSHA256:     result.InputSHA256,
		OutputSHA256:    result.OutputSHA256,
		TraceSHA256:     codec.HashBytes(traceBytes),
		ManifestSHA256:  manifestSHA256,
	}
	metadataBytes, err := codec.CanonicalBytes(metadata)
	if err != nil {
		return nil, &IoError{Op: "canonicalize metadata", Err: err}
	}
	if err := atomicWrite(filepath.Join(tmpDir, "metadata.json"), metadataBytes); err != nil {
		return nil, err
	}

	// The persisted manifest copy includes manifest_sha256; the digest
	// above was computed over the form without it (spec §4.6).
	manifestBytesOnDisk, err := codec.CanonicalBytes(manifest)
	if err != nil {
		return nil, &IoError{Op: "canonicalize manifest for disk", Err: err}
	}

	// Commit: rename temp dir to final eval dir, then commit the manifest
	// file (outside the renamed dir, so it gets its own atomic write). This
	// rename is the actual linearization point under concurrent Persist
	// calls for the same id: os.Stat above is only a fast-path check and
	// cannot by itself guarantee "exactly one commits" (TOCTOU), so a
	// rename failure caused by the destination already existing is what
	// turns into *AlreadyExistsError, not a generic *IoError.
	if err := os.Rename(tmpDir, finalDir); err != nil {
		if isAlreadyExistsRenameErr(err) {
			return nil, &AlreadyExistsError{EvaluationID: id}
		}
		return nil, &IoError{Op: "commit evaluation dir", Err: err}
	}
	if err := atomicWrite(s.manifestPath(id), manifestBytesOnDisk); err != nil {
		return nil, err
	}

	out := *result
	out.ManifestSHA256 = manifestSHA256
	return &out, nil
}

// Load reads the four evaluation-directory files and the manifest for id.
// Returns *NotFoundError if the evaluation directory does not exist.
type Loaded struct {
	Input    []byte
	Output   []byte
	Trace    []byte
	Metadata []byte
	Manifest []byte
}

func (s *Store) Load(id string) (*Loaded, error) {
	dir := s.evalDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, &NotFoundError{EvaluationID: id}
	}

	loaded := &Loaded{}
	var err error
	if loaded.Input, err = readIfExists(filepath.Join(dir, "input.json")); err != nil {
		return nil, err
	}
	if loaded.Output, err = readIfExists(filepath.Join(dir, "output.json")); err != nil {
		return nil, err
	}
	if loaded.Trace, err = readIfExists(filepath.Join(dir, "trace.json")); err != nil {
		return nil, err
	}
	if loaded.Metadata, err = readIfExists(filepath.Join(dir, "metadata.json")); err != nil {
		return nil, err
	}
	if loaded.Manifest, err = readIfExists(s.manifestPath(id)); err != nil {
		return nil, err
	}
	return loaded, nil
}

// Bundle produces a deterministic ZIP of the five persisted files for id,
// per spec §4.6: ascending filename order within a top-level <id>/ folder,
// every entry timestamped to the fixed 2000-01-01 epoch, fixed compression.
// Two calls for the same id are byte-identical.
func (s *Store) Bundle(id string) ([]byte, error) {
	loaded, err := s.Load(id)
	if err != nil {
		return nil, err
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"input.json", loaded.Input},
		{"manifest.json", loaded.Manifest},
		{"metadata.json", loaded.Metadata},
		{"output.json", loaded.Output},
		{"trace.json", loaded.Trace},
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{
			Name:     id + "/" + e.name,
			Method:   zip.Deflate,
			Modified: bundleEpoch,
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, &IoError{Op: "zip entry " + e.name, Err: err}
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, &IoError{Op: "zip write " + e.name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &IoError{Op: "zip close", Err: err}
	}
	return buf.Bytes(), nil
}

func readIfExists(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IoError{Op: "read " + path, Err: err}
	}
	return b, nil
}

// atomicWrite opens a unique temp file beside the destination, writes all
// bytes, fsyncs, closes, and renames over the target — spec §4.6's "Atomic
// write" contract. The temp file is removed on any error before rename.
func atomicWrite(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &IoError{Op: "create temp file", Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IoError{Op: "write temp file", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IoError{Op: "fsync temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "close temp file", Err: err}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "rename temp file", Err: err}
	}
	return nil
}

// isAlreadyExistsRenameErr reports whether err is the OS's rejection of
// os.Rename(tmpDir, finalDir) because finalDir already exists as a
// non-empty directory — the race a second concurrent Persist for the same
// id loses. Linux reports this as ENOTEMPTY, some other platforms as
// EEXIST; os.IsExist covers the latter, the explicit errno check the former.
func isAlreadyExistsRenameErr(err error) bool {
	if os.IsExist(err) {
		return true
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.ENOTEMPTY) || errors.Is(linkErr.Err, syscall.EEXIST)
	}
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}

// requestWireShape projects Request into the same map shape Engine hashes,
// so input.json's on-disk canonical bytes match input_sha256 exactly.
func requestWireShape(req *seal.Request) map[string]interface{} {
	var payload interface{}
	_ = codec.DecodeJSONNumber(req.Payload, &payload)
	return map[string]interface{}{
		"version":           req.Version,
		"subject":           req.Subject,
		"ruleset":           req.Ruleset,
		"payload":           payload,
		"injected_time_utc": req.InjectedTimeUTC,
	}
}
