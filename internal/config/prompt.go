package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Provider is a selectable completion API base URL.
type Provider struct {
	Name    string
	BaseURL string
}

// Providers is the menu offered for LITELLM_API_BASE; choosing past the end means "Other".
var Providers = []Provider{
	{"OpenAI", "https://api.openai.com/v1"},
	{"Microsoft Azure", "https://api.cognitive.microsoft.com"},
	{"Google Cloud", "https://ai-platform.googleapis.com"},
	{"IBM Watson", "https://api.us-south.assistant.watson.cloud.ibm.com"},
	{"Amazon AWS", "https://runtime.sagemaker.amazonaws.com"},
	{"Hugging Face", "https://api-inference.huggingface.co"},
	{"Cohere", "https://api.cohere.ai"},
	{"Anthropic", "https://api.anthropic.com"},
	{"AI21 Labs", "https://api.ai21.com/studio/v1"},
	{"AssemblyAI", "https://api.assemblyai.com"},
}

var secretConfigKeys = map[string]bool{KeyGitHubToken: true, KeyLLMAPIKey: true}

// Prompter asks for missing configuration values.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// readSecret reads one line without echo; nil falls back to a plain line read.
	readSecret func() (string, error)
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// NewTerminalPrompter reads from stdin and hides secrets when stdin is a TTY.
func NewTerminalPrompter() *Prompter {
	p := NewPrompter(os.Stdin, os.Stdout)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			return string(b), err
		}
	}
	return p
}

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// Ask prompts for each key and returns the non-empty answers.
func (p *Prompter) Ask(keys []string) (map[string]string, error) {
	fmt.Fprintln(p.out, "Some required configuration values are missing. Please enter them:")
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		var (
			v   string
			err error
		)
		switch {
		case key == KeyLLMBaseURL:
			v, err = p.askBaseURL()
		case secretConfigKeys[key]:
			fmt.Fprintf(p.out, "Enter %s: ", key)
			v, err = p.secret()
		case key == KeyLLMModel:
			fmt.Fprintf(p.out, "Enter %s (e.g. gpt-4o): ", key)
			v, err = p.line()
		default:
			fmt.Fprintf(p.out, "Enter %s: ", key)
			v, err = p.line()
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if v != "" {
			out[key] = v
		}
	}
	return out, nil
}

func (p *Prompter) askBaseURL() (string, error) {
	fmt.Fprintf(p.out, "Select the %s from the following options:\n", KeyLLMBaseURL)
	for i, pr := range Providers {
		fmt.Fprintf(p.out, "%d. %s (%s)\n", i+1, pr.Name, pr.BaseURL)
	}
	fmt.Fprintf(p.out, "%d. Other\n", len(Providers)+1)
	fmt.Fprint(p.out, "Enter the number of your choice: ")
	choice, err := p.line()
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(Providers) {
		return Providers[n-1].BaseURL, nil
	}
	fmt.Fprintf(p.out, "Enter %s: ", KeyLLMBaseURL)
	return p.line()
}

func (p *Prompter) line() (string, error) {
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (p *Prompter) secret() (string, error) {
	if p.readSecret == nil {
		return p.line()
	}
	s, err := p.readSecret()
	return strings.TrimSpace(s), err
}

// Resolve loads the config file at path and the environment, validates,
// and when values are missing and p is non-nil, prompts for them, persists
// the answers to path and validates again.
func Resolve(path string, p *Prompter) (Config, error) {
	if err := LoadAndApply(path); err != nil {
		return Config{}, err
	}
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return cfg, err
	}
	verr := cfg.Validate()
	var me *MissingError
	if verr == nil || p == nil || !errors.As(verr, &me) {
		return cfg, verr
	}
	values, err := p.Ask(me.Keys)
	if err != nil {
		return cfg, err
	}
	for k, v := range values {
		os.Setenv(k, v)
	}
	if len(values) > 0 {
		if err := SaveValues(path, values); err != nil {
			return cfg, err
		}
	}
	cfg, err = FromEnv(os.Getenv)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
