// Package action turns an action directive embedded in a completion into a
// gist create or update.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"aigist/internal/gistsync"
	"aigist/internal/llm"
)

const (
	ActionCreate = "create_gist"
	ActionUpdate = "update_gist"
)

// Directive is either a CreateDirective or an UpdateDirective.
type Directive interface {
	Action() string
}

type CreateDirective struct {
	Description string
	Public      bool
	Files       map[string]string
}

func (CreateDirective) Action() string { return ActionCreate }

type UpdateDirective struct {
	GistID string
	// Description is nil when the model did not supply one.
	Description *string
	Files       map[string]string
}

func (UpdateDirective) Action() string { return ActionUpdate }

// InvalidActionError means the completion carried no usable directive.
type InvalidActionError struct {
	Reason string
}

func (e *InvalidActionError) Error() string { return "invalid action: " + e.Reason }

func invalid(format string, args ...any) error {
	return &InvalidActionError{Reason: fmt.Sprintf(format, args...)}
}

type gistData struct {
	Description *string         `json:"description"`
	Public      *bool           `json:"public"`
	Files       json.RawMessage `json:"files"`
}

// Parse extracts the directive from a completion. The top level of the raw
// provider response is searched first, then the first choice's content.
func Parse(c *llm.Completion) (Directive, error) {
	if c == nil {
		return nil, invalid("empty completion")
	}
	obj, ok := findDirective(c.Raw)
	if !ok {
		obj, ok = findDirective(extractJSON(c.Content))
	}
	if !ok {
		return nil, invalid("no action field in completion")
	}

	var action string
	if err := json.Unmarshal(obj["action"], &action); err != nil {
		return nil, invalid("action is not a string")
	}
	switch action {
	case ActionCreate:
		data, err := decodeGistData(obj["gist_data"])
		if err != nil {
			return nil, err
		}
		if data.Description == nil {
			return nil, &gistsync.ValidationError{Field: "gist_data.description", Msg: "required"}
		}
		if data.Public == nil {
			return nil, &gistsync.ValidationError{Field: "gist_data.public", Msg: "required"}
		}
		return CreateDirective{Description: *data.Description, Public: *data.Public, Files: data.files}, nil
	case ActionUpdate:
		var id string
		if err := json.Unmarshal(obj["gist_id"], &id); err != nil || strings.TrimSpace(id) == "" {
			return nil, invalid("update_gist requires a gist_id string")
		}
		data, err := decodeGistData(obj["gist_data"])
		if err != nil {
			return nil, err
		}
		return UpdateDirective{GistID: id, Description: data.Description, Files: data.files}, nil
	default:
		return nil, invalid("unrecognized action %q", action)
	}
}

type decodedData struct {
	gistData
	files map[string]string
}

func decodeGistData(raw json.RawMessage) (decodedData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return decodedData{}, invalid("gist_data must be an object")
	}
	var d decodedData
	if err := json.Unmarshal(raw, &d.gistData); err != nil {
		return decodedData{}, invalid("gist_data: %v", err)
	}
	files, err := decodeFiles(d.Files)
	if err != nil {
		return decodedData{}, err
	}
	d.files = files
	return d, nil
}

// decodeFiles accepts {"name": "content"}, {"name": {"content": "..."}}
// or [{"filename": "name", "content": "..."}].
func decodeFiles(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]string{}, nil
	}
	out := map[string]string{}
	switch raw[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, invalid("gist_data.files: %v", err)
		}
		for name, v := range m {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out[name] = s
				continue
			}
			var fc struct {
				Content *string `json:"content"`
			}
			if err := json.Unmarshal(v, &fc); err != nil {
				return nil, invalid("gist_data.files[%q]: %v", name, err)
			}
			if fc.Content == nil {
				return nil, &gistsync.ValidationError{Field: fmt.Sprintf("gist_data.files[%q].content", name), Msg: "required"}
			}
			out[name] = *fc.Content
		}
	case '[':
		var list []struct {
			Filename string  `json:"filename"`
			Content  *string `json:"content"`
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, invalid("gist_data.files: %v", err)
		}
		for i, f := range list {
			if f.Content == nil {
				return nil, &gistsync.ValidationError{Field: fmt.Sprintf("gist_data.files[%d].content", i), Msg: "required"}
			}
			if _, dup := out[f.Filename]; dup {
				return nil, &gistsync.ValidationError{Field: "gist_data.files", Msg: "duplicate filename " + strconv.Quote(f.Filename)}
			}
			out[f.Filename] = *f.Content
		}
	default:
		return nil, invalid("gist_data.files must be an object or list")
	}
	return out, nil
}

func findDirective(raw []byte) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	if _, ok := obj["action"]; !ok {
		return nil, false
	}
	return obj, true
}

// extractJSON pulls an object out of model text, tolerating a ``` fence
// or prose around it.
func extractJSON(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil
	}
	return []byte(s[start : end+1])
}

// MergeFiles returns existing overlaid with incoming; incoming wins.
func MergeFiles(existing, incoming map[string]string) map[string]string {
	out := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}
