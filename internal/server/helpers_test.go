package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aigist/internal/gist"
	"aigist/internal/gistsync"
	"aigist/internal/llm"
	"aigist/internal/store"
)

type recordedReq struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type fakeGist struct {
	Description string
	Public      bool
	Files       map[string]string
}

// fakeGitHub is an in-memory stand-in for the gists REST API.
type fakeGitHub struct {
	mu    sync.Mutex
	seq   int
	gists map[string]*fakeGist
	reqs  []recordedReq
	// when failStatus is set every request gets failBody with that status
	failStatus int
	failBody   string
}

func newFakeGitHub() *fakeGitHub { return &fakeGitHub{gists: map[string]*fakeGist{}} }

func (f *fakeGitHub) requests() []recordedReq {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedReq(nil), f.reqs...)
}

func (f *fakeGitHub) render(id string, g *fakeGist) []byte {
	files := map[string]any{}
	for name, content := range g.Files {
		files[name] = map[string]any{
			"filename":  name,
			"type":      "text/plain",
			"size":      len(content),
			"truncated": false,
			"content":   content,
		}
	}
	b, _ := json.Marshal(map[string]any{
		"id":          id,
		"description": g.Description,
		"public":      g.Public,
		"files":       files,
		"html_url":    "https://gist.github.com/" + id,
		"created_at":  "2024-01-01T00:00:00Z",
		"updated_at":  "2024-01-02T00:00:00Z",
	})
	return b
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, recordedReq{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})

	if f.failStatus != 0 {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(f.failStatus)
		_, _ = io.WriteString(w, f.failBody)
		return
	}
	var in struct {
		Description *string `json:"description"`
		Public      bool    `json:"public"`
		Files       map[string]*struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &in)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	id := strings.TrimPrefix(r.URL.Path, "/gists/")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/gists":
		f.seq++
		id = fmt.Sprintf("g%d", f.seq)
		g := &fakeGist{Public: in.Public, Files: map[string]string{}}
		if in.Description != nil {
			g.Description = *in.Description
		}
		for name, fc := range in.Files {
			g.Files[name] = fc.Content
		}
		f.gists[id] = g
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(f.render(id, g))
	case r.Method == http.MethodGet && r.URL.Path == "/gists":
		parts := make([]json.RawMessage, 0, len(f.gists))
		for gid, g := range f.gists {
			parts = append(parts, f.render(gid, g))
		}
		b, _ := json.Marshal(parts)
		_, _ = w.Write(b)
	case r.Method == http.MethodGet && f.gists[id] != nil:
		_, _ = w.Write(f.render(id, f.gists[id]))
	case r.Method == http.MethodPatch && f.gists[id] != nil:
		g := f.gists[id]
		if in.Description != nil {
			g.Description = *in.Description
		}
		for name, fc := range in.Files {
			g.Files[name] = fc.Content
		}
		_, _ = w.Write(f.render(id, g))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	}
}

type fakeCompleter struct {
	mu    sync.Mutex
	raw   string
	text  string
	err   error
	calls int
	got   []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = messages
	if f.err != nil {
		return nil, &llm.CompletionError{Err: f.err}
	}
	return &llm.Completion{Raw: json.RawMessage(f.raw), Model: "test-model", Content: f.text}, nil
}

// chatRaw wraps content in a minimal chat.completion envelope.
func chatRaw(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

type harness struct {
	api *API
	h   http.Handler
	gh  *fakeGitHub
	st  *store.SQLiteStore
	llm *fakeCompleter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gh := newFakeGitHub()
	srv := httptest.NewServer(gh)
	t.Cleanup(srv.Close)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "data", "gists.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fc := &fakeCompleter{}
	remote := gist.New(srv.URL, "ghp_testtoken", 5*time.Second)
	api := NewAPI(gistsync.New(remote, st, nil), fc, nil)
	return &harness{api: api, h: api.Handler(0), gh: gh, st: st, llm: fc}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.h.ServeHTTP(rr, req)
	return rr
}

func (h *harness) mirrorRows(t *testing.T, id string) (count int, description string) {
	t.Helper()
	require.NoError(t, h.st.DB().QueryRow(`SELECT COUNT(*) FROM gists WHERE id=?`, id).Scan(&count))
	if count > 0 {
		require.NoError(t, h.st.DB().QueryRow(`SELECT description FROM gists WHERE id=?`, id).Scan(&description))
	}
	return count, description
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e), rr.Body.String())
	return e
}
