package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"aigist/internal/action"
	"aigist/internal/gist"
	"aigist/internal/gistsync"
	"aigist/internal/llm"
	"aigist/internal/models"
)

const maxBodyBytes = 10 << 20

type fileInput struct {
	Filename string  `json:"filename"`
	Content  *string `json:"content"`
}

type createGistRequest struct {
	Description *string     `json:"description"`
	Public      *bool       `json:"public"`
	Files       []fileInput `json:"files"`
}

type updateGistRequest struct {
	Description *string     `json:"description"`
	Files       []fileInput `json:"files"`
}

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
	// Stream is accepted for client compatibility; responses are never streamed.
	Stream bool `json:"stream"`
}

func (a *API) handleCreateGist(w http.ResponseWriter, r *http.Request) {
	var req createGistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Description == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "description required")
		return
	}
	if req.Public == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "public required")
		return
	}
	files, err := filesFromInput(req.Files)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	g, err := a.gists.Create(r.Context(), *req.Description, *req.Public, files)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.metrics.inc(func(m *metricsCollector) { m.mirrorWrites++ })
	writeJSON(w, http.StatusOK, g)
}

func (a *API) handleUpdateGist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "gist id required")
		return
	}
	var req updateGistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	files, err := filesFromInput(req.Files)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	g, err := a.gists.Update(r.Context(), id, req.Description, files)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.metrics.inc(func(m *metricsCollector) { m.mirrorWrites++ })
	writeJSON(w, http.StatusOK, g)
}

func (a *API) handleListGists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := gist.ListOptions{
		Page:    gistsync.DefaultPage,
		PerPage: gistsync.DefaultPerPage,
		Since:   q.Get("since"),
		Until:   q.Get("until"),
	}
	var err error
	if opts.Page, err = intParam(q.Get("page"), "page", opts.Page); err != nil {
		a.fail(w, r, err)
		return
	}
	if opts.PerPage, err = intParam(q.Get("per_page"), "per_page", opts.PerPage); err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.gists.List(r.Context(), opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.Gist{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	c, ok := a.complete(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleChatGist(w http.ResponseWriter, r *http.Request) {
	c, ok := a.complete(w, r)
	if !ok {
		return
	}
	dir, err := action.Parse(c)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	g, err := a.actions.Dispatch(r.Context(), dir)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.metrics.inc(func(m *metricsCollector) {
		m.actions[dir.Action()]++
		m.mirrorWrites++
	})
	writeJSON(w, http.StatusOK, g)
}

// complete decodes a chat request and runs it through the completer.
// It writes the error response itself and reports false on failure.
func (a *API) complete(w http.ResponseWriter, r *http.Request) (*llm.Completion, bool) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return nil, false
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "messages required")
		return nil, false
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("messages[%d].role: unsupported role %q", i, m.Role))
			return nil, false
		}
	}
	a.metrics.inc(func(m *metricsCollector) { m.completions++ })
	c, err := a.llm.Complete(r.Context(), req.Messages)
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return c, true
}

// filesFromInput validates the request file list and flattens it to name → content.
func filesFromInput(in []fileInput) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for i, f := range in {
		if strings.TrimSpace(f.Filename) == "" {
			return nil, &gistsync.ValidationError{Field: fmt.Sprintf("files[%d].filename", i), Msg: "must not be empty"}
		}
		if f.Content == nil {
			return nil, &gistsync.ValidationError{Field: fmt.Sprintf("files[%d].content", i), Msg: "required"}
		}
		if _, dup := out[f.Filename]; dup {
			return nil, &gistsync.ValidationError{Field: "files", Msg: "duplicate filename " + strconv.Quote(f.Filename)}
		}
		out[f.Filename] = *f.Content
	}
	return out, nil
}

func intParam(raw, field string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &gistsync.ValidationError{Field: field, Msg: "must be an integer"}
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json: "+err.Error())
		return false
	}
	return true
}

// fail maps a typed error to its HTTP response.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *gistsync.ValidationError
		ue *gist.UpstreamError
		ce *llm.CompletionError
		ie *action.InvalidActionError
		me *gistsync.MirrorError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "invalid_request", ve.Error())
	case errors.As(err, &ue):
		a.metrics.inc(func(m *metricsCollector) { m.upstreamErrors[ue.StatusCode]++ })
		a.log.Warn("github.error", "path", r.URL.Path, "status", ue.StatusCode)
		ct := ue.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(ue.StatusCode)
		_, _ = w.Write(ue.Body)
	case errors.As(err, &ce):
		a.metrics.inc(func(m *metricsCollector) { m.completionFailures++ })
		a.log.Error("completion.failed", "path", r.URL.Path, "error", ce.Error())
		writeError(w, http.StatusInternalServerError, "completion_failed", ce.Error())
	case errors.As(err, &ie):
		a.metrics.inc(func(m *metricsCollector) { m.invalidActions++ })
		writeError(w, http.StatusBadRequest, "invalid_action", ie.Error())
	case errors.As(err, &me):
		a.metrics.inc(func(m *metricsCollector) { m.mirrorFailures++ })
		writeError(w, http.StatusInternalServerError, "mirror_write_failed", me.Error())
	default:
		a.log.Error("request.failed", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "encode response: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	b, _ := json.Marshal(apiError{Error: errStr, Message: message, Code: status})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}
