package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGistRoundTripAndMirror(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/gists", `{"description":"d","public":true,"files":[{"filename":"a.txt","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "g1", got["id"])
	assert.Equal(t, "https://gist.github.com/g1", got["html_url"])
	files := got["files"].(map[string]any)
	assert.Equal(t, "hello", files["a.txt"].(map[string]any)["content"])

	reqs := h.gh.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.JSONEq(t, `{"description":"d","public":true,"files":{"a.txt":{"content":"hello"}}}`, string(reqs[0].Body))

	n, desc := h.mirrorRows(t, "g1")
	assert.Equal(t, 1, n)
	assert.Equal(t, "d", desc)
}

func TestCreateGistValidation(t *testing.T) {
	cases := map[string]string{
		"missing description": `{"public":true,"files":[{"filename":"a","content":"x"}]}`,
		"missing public":      `{"description":"d","files":[{"filename":"a","content":"x"}]}`,
		"no files":            `{"description":"d","public":false,"files":[]}`,
		"blank filename":      `{"description":"d","public":false,"files":[{"filename":" ","content":"x"}]}`,
		"missing content":     `{"description":"d","public":false,"files":[{"filename":"a"}]}`,
		"non-string content":  `{"description":"d","public":false,"files":[{"filename":"a","content":5}]}`,
		"duplicate filename":  `{"description":"d","public":false,"files":[{"filename":"a","content":"x"},{"filename":"a","content":"y"}]}`,
		"not json":            `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			rr := h.do(http.MethodPost, "/gists", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			e := decodeAPIError(t, rr)
			assert.Equal(t, "invalid_request", e.Error)
			assert.Equal(t, 400, e.Code)
			assert.Empty(t, h.gh.requests(), "no outbound call")
		})
	}
}

func TestUpdateGistReplacesMirrorRow(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/gists", `{"description":"first","public":false,"files":[{"filename":"a.txt","content":"old"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	patch := `{"description":"second","files":[{"filename":"a.txt","content":"new"}]}`
	for i := 0; i < 2; i++ {
		rr = h.do(http.MethodPatch, "/gists/g1", patch)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	n, desc := h.mirrorRows(t, "g1")
	assert.Equal(t, 1, n, "replayed update must not duplicate")
	assert.Equal(t, "second", desc)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "second", got["description"])
}

func TestUpdateGistWithoutDescriptionOmitsIt(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/gists", `{"description":"keep","public":false,"files":[{"filename":"a","content":"x"}]}`).Code)

	rr := h.do(http.MethodPatch, "/gists/g1", `{"files":[{"filename":"a","content":"y"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	reqs := h.gh.requests()
	last := reqs[len(reqs)-1]
	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body, &body))
	assert.NotContains(t, body, "description")

	_, desc := h.mirrorRows(t, "g1")
	assert.Equal(t, "keep", desc)
}

func TestUpstreamErrorPassThrough(t *testing.T) {
	h := newHarness(t)
	h.gh.failStatus = http.StatusUnprocessableEntity
	h.gh.failBody = `{"message":"bad"}`

	rr := h.do(http.MethodPost, "/gists", `{"description":"d","public":true,"files":[{"filename":"a","content":"x"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, `{"message":"bad"}`, rr.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	n, _ := h.mirrorRows(t, "g1")
	assert.Zero(t, n, "no mirror row after upstream failure")
}

func TestUpdateUnknownGistIsUpstream404(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPatch, "/gists/missing", `{"files":[]}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"Not Found"}`, rr.Body.String())
}

func TestListGistsDefaultsAndPassThrough(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/gists", `{"description":"d","public":true,"files":[{"filename":"a","content":"x"}]}`).Code)

	rr := h.do(http.MethodGet, "/gists?since=2024-01-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "g1", list[0]["id"])

	reqs := h.gh.requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "/gists", last.Path)
	assert.Equal(t, "page=1&per_page=30&since=2024-01-01T00%3A00%3A00Z", last.Query)
}

func TestListGistsValidationBeforeOutboundCall(t *testing.T) {
	for _, q := range []string{"page=0", "per_page=0", "per_page=101", "page=abc", "per_page=1.5", "page=-1"} {
		t.Run(q, func(t *testing.T) {
			h := newHarness(t)
			rr := h.do(http.MethodGet, "/gists?"+q, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "invalid_request", decodeAPIError(t, rr).Error)
			assert.Empty(t, h.gh.requests())
		})
	}
}

func TestListGistsAcceptsBounds(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, "/gists?page=3&per_page=100", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.Equal(t, "page=3&per_page=100", h.gh.requests()[0].Query)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodDelete, "/gists/g1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Empty(t, h.gh.requests())
}
