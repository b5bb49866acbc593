package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/retriever"
	"github.com/kotaehq/kotae/internal/storage"
	"github.com/kotaehq/kotae/internal/vector"
)

const testDim = 3

type fakeTranscriber struct {
	text string
}

func (f *fakeTranscriber) TranscribeURL(ctx context.Context, audioURL string) string {
	return f.text
}

type fakeResponder struct {
	lastChunks []string
}

func (f *fakeResponder) Respond(ctx context.Context, profile *config.OrgProfile, transcript string, contextChunks []string) string {
	f.lastChunks = contextChunks
	if len(contextChunks) > 0 {
		return "Based on our records: " + contextChunks[0]
	}
	return profile.FallbackReply
}

type serverFixture struct {
	srv       *Server
	responder *fakeResponder
	calls     *storage.SQLiteStore
}

func newTestServer(t *testing.T, transcript string) *serverFixture {
	t.Helper()
	dataDir := t.TempDir()

	store, err := vector.NewStore(testDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	err = store.Add(context.Background(),
		[]string{"office hours are 9 to 5", "returns within 30 days"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]models.Metadata{
			{Source: "kb.txt", ChunkIndex: 0},
			{Source: "kb.txt", ChunkIndex: 1},
		})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Save(filepath.Join(dataDir, "acme", "vector_store")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	calls, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "calls.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = calls.Close() })

	cfg := &config.Config{}
	cfg.Storage.DataDir = dataDir
	cfg.Storage.CallLogPath = filepath.Join(dataDir, "calls.db")
	cfg.Embedding.Backend = "mock"
	cfg.Embedding.Dimensions = testDim
	cfg.Retrieval.TopK = 2
	cfg.Retrieval.ChunkSize = 500
	cfg.Retrieval.ChunkOverlap = 50
	cfg.Retrieval.DefaultOrg = "acme"

	reg := retriever.NewRegistry(dataDir, testDim, nil)
	rtr := retriever.NewRetriever(reg, embedding.NewMockEmbedder(testDim), nil)

	responder := &fakeResponder{}
	srv := NewServer(rtr, reg, calls, &fakeTranscriber{text: transcript}, responder, cfg, nil)
	return &serverFixture{srv: srv, responder: responder, calls: calls}
}

func TestHandleVoiceInbound(t *testing.T) {
	f := newTestServer(t, "")

	form := url.Values{"CallSid": {"CA1"}, "From": {"+15550001111"}}
	r := httptest.NewRequest(http.MethodPost, "/voice/inbound", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.srv.handleVoiceInbound(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Say") || !strings.Contains(body, "<Record") {
		t.Fatalf("unexpected body:\n%s", body)
	}
	if !strings.Contains(body, "/voice/recording?org=acme") {
		t.Fatalf("record action missing org:\n%s", body)
	}
}

func TestHandleVoiceRecording(t *testing.T) {
	f := newTestServer(t, "when are you open")

	form := url.Values{
		"CallSid":      {"CA2"},
		"From":         {"+15550002222"},
		"RecordingUrl": {"http://recordings.example/CA2"},
	}
	r := httptest.NewRequest(http.MethodPost, "/voice/recording", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.srv.handleVoiceRecording(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Based on our records:") {
		t.Fatalf("reply missing retrieved context:\n%s", body)
	}
	if !strings.Contains(body, "<Hangup") {
		t.Fatalf("missing hangup:\n%s", body)
	}
	if len(f.responder.lastChunks) == 0 {
		t.Fatal("responder received no context chunks")
	}

	call, err := f.calls.GetCallBySID(context.Background(), "CA2")
	if err != nil {
		t.Fatalf("GetCallBySID: %v", err)
	}
	if call.Transcript != "when are you open" || call.Org != "acme" {
		t.Fatalf("recorded call = %+v", call)
	}
}

func TestHandleVoiceRecordingNoRecording(t *testing.T) {
	f := newTestServer(t, "should not be used")

	r := httptest.NewRequest(http.MethodPost, "/voice/recording", strings.NewReader(""))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.srv.handleVoiceRecording(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// The apostrophes in the canned reply come out XML-escaped, so match on
	// an apostrophe-free fragment.
	if !strings.Contains(w.Body.String(), "connect you with a colleague") {
		t.Fatalf("expected fallback reply:\n%s", w.Body.String())
	}
}

func TestHandleRetrieve(t *testing.T) {
	f := newTestServer(t, "")

	payload, _ := json.Marshal(models.RetrieveRequest{Query: "office hours", K: 1})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	f.srv.handleRetrieve(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp models.RetrieveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Org != "acme" {
		t.Fatalf("org = %q", resp.Org)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("count/results = %d/%d", resp.Count, len(resp.Results))
	}
	if resp.Results[0].Metadata.Source != "kb.txt" {
		t.Fatalf("metadata = %+v", resp.Results[0].Metadata)
	}
}

func TestHandleRetrieveMissingQuery(t *testing.T) {
	f := newTestServer(t, "")

	r := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader(`{"org":"acme"}`))
	w := httptest.NewRecorder()
	f.srv.handleRetrieve(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleRetrieveBadJSON(t *testing.T) {
	f := newTestServer(t, "")

	r := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	f.srv.handleRetrieve(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	f := newTestServer(t, "")

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.srv.handleHealth(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	f := newTestServer(t, "")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	f.srv.handleStatus(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Orgs  map[string]int `json:"orgs"`
		Calls int64          `json:"calls"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Orgs["acme"] != 2 {
		t.Fatalf("acme size = %d, want 2", resp.Orgs["acme"])
	}
}
