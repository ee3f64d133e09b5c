package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SummarizerOpenAI      = "openai"
	SummarizerHuggingFace = "huggingface"

	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

type Reddit struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	MinInterval  time.Duration
}

type Summarizer struct {
	Backend     string
	OpenAIKey   string
	OpenAIModel string
	HFEndpoint  string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Cache       bool
	HealthEvery time.Duration
}

type Store struct {
	Backend         string
	SQLitePath      string
	DynamoPrefix    string
	AWSRegion       string
	AWSEndpoint     string
	RetentionRows   int
	ValkeyAddresses []string
	ValkeyPassword  string
	ValkeyTLS       bool
	ValkeyTTL       time.Duration
}

type Analysis struct {
	MinCommentLength int
	StrictFilter     bool
	CommentLimit     int
	ScoringWorkers   int
	SearchLimit      int
	HotLimit         int
	PageSize         int
	Subreddits       []string
}

// Warm drives the background pass that pre-analyzes hot posts. A zero
// Interval disables it.
type Warm struct {
	Interval   time.Duration
	Subreddits []string
}

type Digest struct {
	At       string
	Timezone string
	Top      int
}

// Config is everything cmd/dashboard needs to wire the service.
type Config struct {
	BindAddr string
	LogLevel string

	Reddit     Reddit
	Summarizer Summarizer
	Store      Store
	Analysis   Analysis
	Digest     Digest
	Warm       Warm
}

type subredditFile struct {
	Subreddits []string `yaml:"subreddits"`
}

// Load builds a Config from environment variables and validates it.
func Load() (*Config, error) {
	c := &Config{
		BindAddr: getEnv("BIND_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Reddit: Reddit{
			ClientID:     getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:    getEnv("REDDIT_USER_AGENT", ""),
			MinInterval:  getDuration("REDDIT_MIN_INTERVAL", "600ms"),
		},
		Summarizer: Summarizer{
			Backend:     strings.ToLower(getEnv("SUMMARIZER_BACKEND", SummarizerOpenAI)),
			OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4"),
			HFEndpoint:  getEnv("HF_SUMMARY_ENDPOINT", ""),
			MaxTokens:   getInt("SUMMARY_MAX_TOKENS", 250),
			Temperature: getFloat("SUMMARY_TEMPERATURE", 0.7),
			Timeout:     getDuration("SUMMARY_TIMEOUT", "30s"),
			Cache:       getBool("SUMMARY_CACHE", true),
			HealthEvery: getDuration("SUMMARIZER_HEALTH_INTERVAL", "15s"),
		},
		Store: Store{
			Backend:         strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
			SQLitePath:      getEnv("SQLITE_PATH", "./agora.db"),
			DynamoPrefix:    getEnv("DYNAMODB_TABLE_PREFIX", "Agora"),
			AWSRegion:       getEnv("AWS_REGION", "us-west-2"),
			AWSEndpoint:     getEnv("AWS_ENDPOINT", ""),
			RetentionRows:   getInt("RETENTION_ROWS", 1000),
			ValkeyAddresses: splitAndTrim(getEnv("VALKEY_INIT_ADDRESS", "")),
			ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
			ValkeyTLS:       getBool("VALKEY_TLS", false),
			ValkeyTTL:       getDuration("VALKEY_SUMMARY_TTL", "0s"),
		},
		Analysis: Analysis{
			MinCommentLength: getInt("MIN_COMMENT_LENGTH", 10),
			StrictFilter:     getBool("STRICT_COMMENT_FILTER", false),
			CommentLimit:     getInt("COMMENT_LIMIT", 30),
			ScoringWorkers:   getInt("SCORING_WORKERS", 1),
			SearchLimit:      getInt("SEARCH_LIMIT", 2),
			HotLimit:         getInt("HOT_LIMIT", 15),
			PageSize:         getInt("PAGE_SIZE", 5),
		},
		Digest: Digest{
			At:       getEnv("DIGEST_TIME", "07:00"),
			Timezone: getEnv("DIGEST_TIMEZONE", "UTC"),
			Top:      getInt("DIGEST_TOP", 3),
		},
		Warm: Warm{
			Interval:   getDuration("WARM_INTERVAL", "0s"),
			Subreddits: splitAndTrim(getEnv("WARM_SUBREDDITS", "news,worldnews")),
		},
	}

	if path := getEnv("CURATED_SUBREDDITS_FILE", ""); path != "" {
		subs, err := LoadSubreddits(path)
		if err != nil {
			return nil, err
		}
		c.Analysis.Subreddits = subs
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadSubreddits reads a YAML file of the form `subreddits: [a, b]`.
func LoadSubreddits(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[Config] read subreddits file: %w", err)
	}

	var f subredditFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("[Config] parse subreddits file: %w", err)
	}

	subs := make([]string, 0, len(f.Subreddits))
	for _, s := range f.Subreddits {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("[Config] subreddits file %s lists no subreddits", path)
	}
	return subs, nil
}

func (c *Config) validate() error {
	positive := []struct {
		key   string
		value int
	}{
		{"SUMMARY_MAX_TOKENS", c.Summarizer.MaxTokens},
		{"RETENTION_ROWS", c.Store.RetentionRows},
		{"MIN_COMMENT_LENGTH", c.Analysis.MinCommentLength},
		{"COMMENT_LIMIT", c.Analysis.CommentLimit},
		{"SCORING_WORKERS", c.Analysis.ScoringWorkers},
		{"SEARCH_LIMIT", c.Analysis.SearchLimit},
		{"HOT_LIMIT", c.Analysis.HotLimit},
		{"PAGE_SIZE", c.Analysis.PageSize},
		{"DIGEST_TOP", c.Digest.Top},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}

	if c.Warm.Interval < 0 {
		return fmt.Errorf("WARM_INTERVAL cannot be negative")
	}
	if c.Warm.Interval > 0 && len(c.Warm.Subreddits) == 0 {
		return fmt.Errorf("WARM_SUBREDDITS must list a subreddit when warming is enabled")
	}

	if c.Summarizer.Timeout <= 0 {
		return fmt.Errorf("SUMMARY_TIMEOUT must be positive")
	}
	if c.Summarizer.Temperature < 0 || c.Summarizer.Temperature > 2 {
		return fmt.Errorf("SUMMARY_TEMPERATURE must be within [0, 2]")
	}

	switch c.Summarizer.Backend {
	case SummarizerOpenAI:
		if c.Summarizer.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai summarizer")
		}
	case SummarizerHuggingFace:
		if c.Summarizer.HFEndpoint == "" {
			return fmt.Errorf("HF_SUMMARY_ENDPOINT is required for the huggingface summarizer")
		}
	default:
		return fmt.Errorf("unknown SUMMARIZER_BACKEND %q", c.Summarizer.Backend)
	}

	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty")
		}
	case StoreDynamoDB:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if _, err := time.Parse("15:04", c.Digest.At); err != nil {
		return fmt.Errorf("DIGEST_TIME must be HH:MM: %w", err)
	}
	if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
		return fmt.Errorf("DIGEST_TIMEZONE: %w", err)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, fallback)); err == nil {
		return d
	}
	d, err := time.ParseDuration(fallback)
	if err != nil {
		panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, err))
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
