package models

import (
	"encoding/json"
	"time"
)

// Gist is a named collection of files hosted by GitHub.
type Gist struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]GistFile `json:"files"`
	HTMLURL     string              `json:"html_url,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// raw holds the upstream payload this gist was decoded from.
	raw json.RawMessage
}

// GistFile is a single file entry keyed by filename inside a gist.
type GistFile struct {
	Filename  string `json:"filename,omitempty"`
	Type      string `json:"type,omitempty"`
	Language  string `json:"language,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
	Size      int    `json:"size,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Content   string `json:"content"`
}

// FileContent is the per-file body GitHub accepts on create and update.
type FileContent struct {
	Content string `json:"content"`
}

type gistAlias Gist

// DecodeGist decodes an upstream gist and retains its exact bytes.
func DecodeGist(data []byte) (*Gist, error) {
	var g Gist
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (g *Gist) UnmarshalJSON(data []byte) error {
	var a gistAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*g = Gist(a)
	g.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the upstream payload unchanged when one was decoded.
func (g Gist) MarshalJSON() ([]byte, error) {
	if len(g.raw) > 0 {
		return g.raw, nil
	}
	return json.Marshal(gistAlias(g))
}

// Contents flattens the file map to filename -> content. Truncated files
// are skipped: their full content is not in the payload.
func (g *Gist) Contents() map[string]string {
	out := make(map[string]string, len(g.Files))
	for name, f := range g.Files {
		if f.Truncated {
			continue
		}
		out[name] = f.Content
	}
	return out
}

// FileContents converts filename -> content into the upstream request shape.
func FileContents(files map[string]string) map[string]FileContent {
	out := make(map[string]FileContent, len(files))
	for name, c := range files {
		out[name] = FileContent{Content: c}
	}
	return out
}
