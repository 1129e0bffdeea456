package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/resilience"
)

func testConfig(srv *httptest.Server) Config {
	return Config{
		BaseURL: srv.URL,
		Model:   "test-model",
		APIKey:  "k",
		Timeout: 5 * time.Second,
		Policy: resilience.Policy{
			MaxAttempts:     2,
			InitialBackoff:  time.Millisecond,
			MaxBackoff:      time.Millisecond,
			Multiplier:      2,
			BreakerDisabled: true,
		},
	}
}

func candidateBody(texts ...string) []byte {
	parts := make([]part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, part{Text: t})
	}
	body, _ := json.Marshal(generateResponse{
		Candidates: []struct {
			Content      content `json:"content"`
			FinishReason string  `json:"finishReason"`
		}{{Content: content{Role: "model", Parts: parts}}},
	})
	return body
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotPrompt = req.Contents[0].Parts[0].Text
		w.Write(candidateBody("The label warns ", "about bleeding."))
	}))
	defer srv.Close()

	text, err := New(testConfig(srv)).Generate(context.Background(), "question with context")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "The label warns about bleeding." {
		t.Fatalf("text = %q", text)
	}
	if gotPrompt != "question with context" {
		t.Fatalf("prompt = %q", gotPrompt)
	}
}

func TestGenerateRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(candidateBody("ok answer"))
	}))
	defer srv.Close()

	text, err := New(testConfig(srv)).Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "ok answer" {
		t.Fatalf("text = %q", text)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestGenerateExhaustedRetriesAreTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(testConfig(srv)).Generate(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("error not classified temporary: %v", err)
	}
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(testConfig(srv)).Generate(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client error must not be temporary: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestGenerateEmptyCandidateIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	if _, err := New(testConfig(srv)).Generate(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
