package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRun_ReplayOKReturnsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(replayVerdict{ReplayOK: true})
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	code := Run([]string{"veraseal-verify", "-server", srv.URL, "-id", "abc123"}, &out, &errOut)

	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "OK") {
		t.Fatalf("expected OK output, got %q", out.String())
	}
}

func TestRun_ReplayMismatchReturnsOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(replayVerdict{ReplayOK: false, Mismatches: []string{"decision mismatch"}})
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	code := Run([]string{"veraseal-verify", "-server", srv.URL, "-id", "abc123"}, &out, &errOut)

	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out.String(), "TAMPER DETECTED") {
		t.Fatalf("expected tamper message, got %q", out.String())
	}
}

func TestRun_MissingIDReturnsTwo(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"veraseal-verify", "-server", "http://localhost:1"}, &out, &errOut)

	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRun_ServerUnreachableReturnsTwo(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"veraseal-verify", "-server", "http://127.0.0.1:1", "-id", "abc123", "-timeout", "200ms"}, &out, &errOut)

	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRun_JSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(replayVerdict{ReplayOK: true})
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	code := Run([]string{"veraseal-verify", "-server", srv.URL, "-id", "abc123", "-json"}, &out, &errOut)

	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var verdict replayVerdict
	if err := json.Unmarshal(out.Bytes(), &verdict); err != nil {
		t.Fatalf("expected valid JSON, got %q: %v", out.String(), err)
	}
	if !verdict.ReplayOK {
		t.Fatal("expected replay_ok true")
	}
}
