package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	KeyGitHubToken  = "GITHUB_TOKEN"
	KeyGHToken      = "GH_TOKEN"
	KeyGitHubAPIURL = "GITHUB_API_URL"
	KeyLLMBaseURL   = "LITELLM_API_BASE"
	KeyLLMAPIKey    = "LITELLM_API_KEY"
	KeyLLMModel     = "LITELLM_MODEL"
	KeyDBPath       = "AIGIST_DB_PATH"
	KeyAddr         = "AIGIST_ADDR"
	KeyServerURL    = "AIGIST_SERVER_URL"
	KeyLogLevel     = "AIGIST_LOG_LEVEL"
	KeyLogFormat    = "AIGIST_LOG_FORMAT"
	KeyLogFile      = "AIGIST_LOG_FILE"
	KeyRateLimitRPS = "AIGIST_RATE_LIMIT_RPS"
	KeyHTTPTimeout  = "AIGIST_HTTP_TIMEOUT"
	KeyConfigFile   = "AIGIST_CONFIG"
)

// KnownKeys defines environment variable keys that aigist recognizes.
var KnownKeys = []string{
	KeyGitHubToken,
	KeyGHToken,
	KeyGitHubAPIURL,
	KeyLLMBaseURL,
	KeyLLMAPIKey,
	KeyLLMModel,
	KeyDBPath,
	KeyAddr,
	KeyServerURL,
	KeyLogLevel,
	KeyLogFormat,
	KeyLogFile,
	KeyRateLimitRPS,
	KeyHTTPTimeout,
}

const (
	DefaultGitHubAPIURL = "https://api.github.com"
	DefaultDBPath       = "./data/gists.db"
	DefaultAddr         = ":8000"
	DefaultServerURL    = "http://localhost:8000"
	DefaultHTTPTimeout  = 60 * time.Second
)

// Config is built once at startup and passed to components by reference.
type Config struct {
	GitHubToken  string
	GitHubAPIURL string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	DBPath       string
	Addr         string
	ServerURL    string
	LogLevel     string
	LogFormat    string
	LogFile      string
	RateLimitRPS float64
	HTTPTimeout  time.Duration
}

// MissingError lists required keys that have no value.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	cfg := Config{
		GitHubToken:  get(KeyGitHubToken),
		GitHubAPIURL: orDefault(get(KeyGitHubAPIURL), DefaultGitHubAPIURL),
		LLMBaseURL:   get(KeyLLMBaseURL),
		LLMAPIKey:    get(KeyLLMAPIKey),
		LLMModel:     get(KeyLLMModel),
		DBPath:       orDefault(get(KeyDBPath), DefaultDBPath),
		Addr:         orDefault(get(KeyAddr), DefaultAddr),
		ServerURL:    orDefault(get(KeyServerURL), DefaultServerURL),
		LogLevel:     orDefault(get(KeyLogLevel), "info"),
		LogFormat:    orDefault(get(KeyLogFormat), "json"),
		LogFile:      get(KeyLogFile),
		HTTPTimeout:  DefaultHTTPTimeout,
	}
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = get(KeyGHToken)
	}
	if v := get(KeyRateLimitRPS); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return cfg, fmt.Errorf("%s: invalid value %q", KeyRateLimitRPS, v)
		}
		cfg.RateLimitRPS = f
	}
	if v := get(KeyHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("%s: invalid duration %q", KeyHTTPTimeout, v)
		}
		cfg.HTTPTimeout = d
	}
	return cfg, nil
}

// Validate reports every missing required key at once.
func (c Config) Validate() error {
	var missing []string
	if c.GitHubToken == "" {
		missing = append(missing, KeyGitHubToken)
	}
	if c.LLMBaseURL == "" {
		missing = append(missing, KeyLLMBaseURL)
	}
	if c.LLMAPIKey == "" {
		missing = append(missing, KeyLLMAPIKey)
	}
	if c.LLMModel == "" {
		missing = append(missing, KeyLLMModel)
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// DefaultPath is $AIGIST_CONFIG or ~/.aigist/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(KeyConfigFile); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".aigist", "config.yaml")
	}
	return filepath.Join(home, ".aigist", "config.yaml")
}

// LoadAndApply reads the YAML config file at path and applies values into
// the process environment for known keys that are not already set.
// Environment variables take precedence over file values. A missing file is not an error.
func LoadAndApply(path string) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}
	for _, key := range KnownKeys {
		if os.Getenv(key) != "" {
			continue
		}
		if v, ok := lookupInsensitive(data, key); ok {
			os.Setenv(key, toString(v))
		}
	}
	return nil
}

// ReadFile parses the YAML config file; a missing file yields an empty map.
func ReadFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return m, nil
}

// SaveValues merges values into the YAML config file at path.
func SaveValues(path string, values map[string]string) error {
	cur, err := ReadFile(path)
	if err != nil {
		return err
	}
	for k, v := range values {
		for existing := range cur {
			if strings.EqualFold(existing, k) && existing != k {
				delete(cur, existing)
			}
		}
		cur[k] = v
	}
	keys := make([]string, 0, len(cur))
	for k := range cur {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: toString(cur[k])},
		)
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func lookupInsensitive(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// avoid trailing .0 for integer-like values
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
