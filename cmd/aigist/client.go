package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// apiClient is a thin HTTP client for a running aigist server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient() (*apiClient, error) {
	cfg, err := clientConfig()
	if err != nil {
		return nil, err
	}
	return &apiClient{base: strings.TrimRight(cfg.ServerURL, "/"), http: &http.Client{Timeout: cfg.HTTPTimeout}}, nil
}

// do sends body as JSON and returns the response body; non-2xx becomes an error carrying it.
func (c *apiClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func printJSON(w io.Writer, data []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		w.Write(data)
		return
	}
	buf.WriteByte('\n')
	w.Write(buf.Bytes())
}

func gistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gists",
		Short: "List and create gists through a running server",
	}
	cmd.AddCommand(gistsListCmd(), gistsCreateCmd(), gistsUpdateCmd())
	return cmd
}

func gistsListCmd() *cobra.Command {
	var (
		page, perPage int
		since, until  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List gists of the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			q := url.Values{}
			q.Set("page", strconv.Itoa(page))
			q.Set("per_page", strconv.Itoa(perPage))
			if since != "" {
				q.Set("since", since)
			}
			if until != "" {
				q.Set("until", until)
			}
			data, err := c.do(cmd.Context(), http.MethodGet, "/gists?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 30, "results per page (max 100)")
	cmd.Flags().StringVar(&since, "since", "", "only gists updated after this ISO 8601 timestamp")
	cmd.Flags().StringVar(&until, "until", "", "only gists updated before this ISO 8601 timestamp")
	return cmd
}

type fileArg struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func readFiles(paths []string) ([]fileArg, error) {
	out := make([]fileArg, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, fileArg{Filename: filepath.Base(p), Content: string(b)})
	}
	return out, nil
}

func gistsCreateCmd() *cobra.Command {
	var (
		description string
		public      bool
	)
	cmd := &cobra.Command{
		Use:   "create FILE...",
		Short: "Create a gist from local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFiles(args)
			if err != nil {
				return err
			}
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			data, err := c.do(cmd.Context(), http.MethodPost, "/gists", map[string]any{
				"description": description,
				"public":      public,
				"files":       files,
			})
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "gist description")
	cmd.Flags().BoolVar(&public, "public", false, "make the gist public")
	return cmd
}

func gistsUpdateCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "update ID [FILE...]",
		Short: "Replace files of an existing gist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFiles(args[1:])
			if err != nil {
				return err
			}
			body := map[string]any{"files": files}
			if cmd.Flags().Changed("description") {
				body["description"] = description
			}
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			data, err := c.do(cmd.Context(), http.MethodPatch, "/gists/"+url.PathEscape(args[0]), body)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func chatCmd() *cobra.Command {
	var (
		gist   bool
		system string
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "chat PROMPT",
		Short: "Send a prompt to the completion provider, optionally acting on a gist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var messages []map[string]string
			if system != "" {
				messages = append(messages, map[string]string{"role": "system", "content": system})
			}
			messages = append(messages, map[string]string{"role": "user", "content": strings.Join(args, " ")})

			c, err := newAPIClient()
			if err != nil {
				return err
			}
			path := "/chat"
			if gist {
				path = "/chat/gist"
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			data, err := c.do(ctx, http.MethodPost, path, map[string]any{"messages": messages})
			if err != nil {
				return err
			}
			if gist || raw {
				printJSON(cmd.OutOrStdout(), data)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), firstChoice(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&gist, "gist", false, "let the model create or update a gist")
	cmd.Flags().StringVar(&system, "system", "", "system message sent before the prompt")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the full provider response")
	return cmd
}

// firstChoice returns the first choice's message content, or the raw body when absent.
func firstChoice(data []byte) string {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || len(resp.Choices) == 0 {
		return string(data)
	}
	return resp.Choices[0].Message.Content
}
