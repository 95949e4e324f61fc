package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigist/internal/llm"
)

func TestChatReturnsProviderResponseVerbatim(t *testing.T) {
	h := newHarness(t)
	h.llm.raw = chatRaw("hi there")
	h.llm.text = "hi there"

	rr := h.do(http.MethodPost, "/chat", `{"messages":[{"role":"system","content":"be brief"},{"role":"user","content":"hello"}],"stream":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, h.llm.raw, rr.Body.String())
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hello"},
	}, h.llm.got)
}

func TestChatRequiresMessages(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/chat", `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, h.llm.calls)
}

func TestChatCompletionFailure(t *testing.T) {
	h := newHarness(t)
	h.llm.err = errors.New("provider exploded")
	rr := h.do(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"x"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := decodeAPIError(t, rr)
	assert.Equal(t, "completion_failed", e.Error)
	assert.Contains(t, e.Message, "provider exploded")
}

func TestChatGistCreate(t *testing.T) {
	h := newHarness(t)
	h.llm.raw = `{"action":"create_gist","gist_data":{"description":"from model","public":false,"files":{"notes.md":"# hi"}}}`

	rr := h.do(http.MethodPost, "/chat/gist", `{"messages":[{"role":"user","content":"make a gist"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "g1", got["id"])
	assert.Equal(t, "from model", got["description"])

	n, desc := h.mirrorRows(t, "g1")
	assert.Equal(t, 1, n)
	assert.Equal(t, "from model", desc)
}

func TestChatGistUpdateMergesExistingFiles(t *testing.T) {
	h := newHarness(t)
	h.gh.gists["g7"] = &fakeGist{Description: "orig", Files: map[string]string{"a.txt": "old", "b.txt": "keep"}}
	content := "Here you go:\n```json\n{\"action\":\"update_gist\",\"gist_id\":\"g7\",\"gist_data\":{\"files\":{\"a.txt\":\"new\"}}}\n```"
	h.llm.raw = chatRaw(content)
	h.llm.text = content

	rr := h.do(http.MethodPost, "/chat/gist", `{"messages":[{"role":"user","content":"update a.txt"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	reqs := h.gh.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/gists/g7", reqs[0].Path)
	assert.Equal(t, http.MethodPatch, reqs[1].Method)
	assert.JSONEq(t, `{"description":"orig","files":{"a.txt":{"content":"new"},"b.txt":{"content":"keep"}}}`, string(reqs[1].Body))

	assert.Equal(t, map[string]string{"a.txt": "new", "b.txt": "keep"}, h.gh.gists["g7"].Files)
	n, desc := h.mirrorRows(t, "g7")
	assert.Equal(t, 1, n)
	assert.Equal(t, "orig", desc)
}

func TestChatGistMissingActionMakesNoMutation(t *testing.T) {
	h := newHarness(t)
	h.llm.raw = chatRaw("I cannot help with that.")
	h.llm.text = "I cannot help with that."

	rr := h.do(http.MethodPost, "/chat/gist", `{"messages":[{"role":"user","content":"?"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_action", decodeAPIError(t, rr).Error)
	assert.Empty(t, h.gh.requests())
}

func TestChatGistUpstreamErrorPassesThrough(t *testing.T) {
	h := newHarness(t)
	h.gh.failStatus = http.StatusUnprocessableEntity
	h.gh.failBody = `{"message":"bad"}`
	h.llm.raw = `{"action":"create_gist","gist_data":{"description":"d","public":true,"files":{"a":"b"}}}`

	rr := h.do(http.MethodPost, "/chat/gist", `{"messages":[{"role":"user","content":"x"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, `{"message":"bad"}`, rr.Body.String())
}

func TestChatGistDirectiveFieldValidation(t *testing.T) {
	cases := map[string]string{
		"create without description or public": `{"action":"create_gist","gist_data":{"files":{"a.txt":"x"}}}`,
		"list duplicate and missing content":   `{"action":"update_gist","gist_id":"g1","gist_data":{"files":[{"filename":"a","content":"1"},{"filename":"a","content":"2"},{"filename":"b"}]}}`,
		"list missing content":                 `{"action":"create_gist","gist_data":{"description":"d","public":true,"files":[{"filename":"b"}]}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.llm.raw = raw
			rr := h.do(http.MethodPost, "/chat/gist", `{"messages":[{"role":"user","content":"x"}]}`)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "invalid_request", decodeAPIError(t, rr).Error)
			assert.Empty(t, h.gh.requests(), "no outbound call")
		})
	}
}

func TestChatRejectsUnknownRoleBeforeProvider(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/chat", `{"messages":[{"role":"wizard","content":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	e := decodeAPIError(t, rr)
	assert.Equal(t, "invalid_request", e.Error)
	assert.Contains(t, e.Message, "wizard")
	assert.Zero(t, h.llm.calls)
}
