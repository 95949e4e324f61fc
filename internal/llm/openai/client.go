package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aigist/internal/llm"
)

const defaultTimeout = 60 * time.Second

// Options configures an OpenAI-compatible chat completions client.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	client openai.Client
	model  string
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("completion model is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(hc),
		// failures surface to the caller as-is
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Client{client: openai.NewClient(reqOpts...), model: opts.Model}, nil
}

// Complete implements llm.Completer with a single non-streaming request.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	params, err := c.buildParams(messages)
	if err != nil {
		return nil, &llm.CompletionError{Err: err}
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &llm.CompletionError{Err: err}
	}
	raw := json.RawMessage(resp.RawJSON())
	if len(raw) == 0 {
		if raw, err = json.Marshal(resp); err != nil {
			return nil, &llm.CompletionError{Err: err}
		}
	}
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return &llm.Completion{Raw: raw, Model: resp.Model, Content: content}, nil
}

func (c *Client) buildParams(messages []llm.Message) (openai.ChatCompletionNewParams, error) {
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, errors.New("messages are required")
	}
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		p, err := toMessageParam(m)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		out = append(out, p)
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: out,
	}, nil
}

func toMessageParam(m llm.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch llm.Role(strings.ToLower(strings.TrimSpace(string(m.Role)))) {
	case llm.RoleSystem:
		return openai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return openai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return openai.AssistantMessage(m.Content), nil
	case llm.RoleDeveloper:
		return openai.DeveloperMessage(m.Content), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role: %q", m.Role)
	}
}

var _ llm.Completer = (*Client)(nil)
