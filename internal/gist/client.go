package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aigist/internal/models"
	"aigist/internal/version"
)

const (
	DefaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
)

// UpstreamError is a non-2xx response from the gist host, body kept verbatim.
type UpstreamError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github http %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// ListOptions filters GET /gists. Since and Until are passed through unparsed.
type ListOptions struct {
	Page    int
	PerPage int
	Since   string
	Until   string
}

// DefaultTimeout bounds each GitHub call when New is given no timeout.
const DefaultTimeout = 60 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: &http.Client{Timeout: timeout}}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Create calls POST /gists.
func (c *Client) Create(ctx context.Context, description string, public bool, files map[string]string) (*models.Gist, error) {
	body := map[string]any{
		"description": description,
		"public":      public,
		"files":       models.FileContents(files),
	}
	data, err := c.send(ctx, http.MethodPost, "/gists", nil, body)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Update calls PATCH /gists/{id}. A nil description leaves it unchanged upstream.
func (c *Client) Update(ctx context.Context, id string, description *string, files map[string]string) (*models.Gist, error) {
	body := map[string]any{"files": models.FileContents(files)}
	if description != nil {
		body["description"] = *description
	}
	data, err := c.send(ctx, http.MethodPatch, "/gists/"+url.PathEscape(id), nil, body)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Get calls GET /gists/{id}.
func (c *Client) Get(ctx context.Context, id string) (*models.Gist, error) {
	data, err := c.send(ctx, http.MethodGet, "/gists/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// List calls GET /gists for the authenticated user.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]models.Gist, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.Since != "" {
		q.Set("since", opts.Since)
	}
	if opts.Until != "" {
		q.Set("until", opts.Until)
	}
	data, err := c.send(ctx, http.MethodGet, "/gists", q, nil)
	if err != nil {
		return nil, err
	}
	var out []models.Gist
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode gist list: %w", err)
	}
	return out, nil
}

func decode(data []byte) (*models.Gist, error) {
	g, err := models.DecodeGist(data)
	if err != nil {
		return nil, fmt.Errorf("decode gist: %w", err)
	}
	return g, nil
}

func (c *Client) send(ctx context.Context, method, path string, q url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", "aigist/"+version.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("github %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: data}
	}
	return data, nil
}
