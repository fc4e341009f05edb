package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// DefaultSelectors are tried in order when extracting an article body.
var DefaultSelectors = []string{
	"div.GeneralMaterial-article",
	"div.RichText",
	"div.SimpleBlock-article",
	"article",
	".article-content",
	".post-content",
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type Config struct {
	Feed        Feed        `yaml:"feed"`
	Fetch       Fetch       `yaml:"fetch"`
	Translation Translation `yaml:"translation"`
	Summary     Summary     `yaml:"summary"`
	Storage     Storage     `yaml:"storage"`
	Pipeline    Pipeline    `yaml:"pipeline"`
	Server      Server      `yaml:"server"`
	Schedule    Schedule    `yaml:"schedule"`
	Logging     Logging     `yaml:"logging"`
}

type Feed struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type Fetch struct {
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	Selectors   []string      `yaml:"selectors"`
	MinLength   int           `yaml:"min_length"`
	Readability bool          `yaml:"readability"`
}

// Chunk failure policies.
const (
	ChunkFailureKeep = "keep"
	ChunkFailureDrop = "drop"
)

type Translation struct {
	Provider       string        `yaml:"provider"`
	SourceLang     string        `yaml:"source_lang"`
	TargetLang     string        `yaml:"target_lang"`
	Delay          time.Duration `yaml:"delay"`
	Timeout        time.Duration `yaml:"timeout"`
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkSeparator string        `yaml:"chunk_separator"`
	ChunkFailure   string        `yaml:"chunk_failure"`
	Google         Google        `yaml:"google"`
	OpenAI         OpenAI        `yaml:"openai"`
	Ollama         Ollama        `yaml:"ollama"`
}

type Google struct {
	Endpoint string `yaml:"endpoint"`
}

type OpenAI struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

type Ollama struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type Summary struct {
	TargetLength     int `yaml:"target_length"`
	CharsPerSentence int `yaml:"chars_per_sentence"`
}

type Storage struct {
	Backend        string `yaml:"backend"`
	DataDir        string `yaml:"data_dir"`
	PostgresDSNEnv string `yaml:"postgres_dsn_env"`
}

type Pipeline struct {
	Limit          int  `yaml:"limit"`
	SkipDuplicates bool `yaml:"skip_duplicates"`
}

type Server struct {
	Port     int `yaml:"port"`
	PageSize int `yaml:"page_size"`
}

type Schedule struct {
	Cron string `yaml:"cron"`
}

type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ConfigDir returns the XDG config directory for meduzareader.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "meduzareader")
}

// DataDir returns the XDG data directory for meduzareader.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "meduzareader")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/meduzareader/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'meduzareader init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file. A .env file in the working
// directory, if present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	return &Config{
		Feed: Feed{
			URL:       "https://meduza.io/rss/all",
			Timeout:   30 * time.Second,
			UserAgent: "meduzareader/1.0 (feed reader)",
		},
		Fetch: Fetch{
			Timeout:   10 * time.Second,
			UserAgent: browserUserAgent,
			Selectors: append([]string(nil), DefaultSelectors...),
			MinLength: 100,
		},
		Translation: Translation{
			Provider:       "google",
			SourceLang:     "ru",
			TargetLang:     "ja",
			Delay:          time.Second,
			Timeout:        30 * time.Second,
			ChunkSize:      4000,
			ChunkSeparator: " ",
			ChunkFailure:   ChunkFailureKeep,
			Google:         Google{Endpoint: "https://translate.googleapis.com/translate_a/single"},
			OpenAI:         OpenAI{Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
			Ollama:         Ollama{Model: "qwen2.5:7b", BaseURL: "http://localhost:11434"},
		},
		Summary: Summary{
			TargetLength:     200,
			CharsPerSentence: 50,
		},
		Storage: Storage{
			Backend:        "sqlite",
			PostgresDSNEnv: "MEDUZA_POSTGRES_DSN",
		},
		Pipeline: Pipeline{
			Limit:          5,
			SkipDuplicates: true,
		},
		Server:   Server{Port: 8000, PageSize: 10},
		Schedule: Schedule{Cron: "@every 1h"},
		Logging: Logging{
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url must be set")
	}
	if c.Translation.ChunkSize <= 0 {
		return fmt.Errorf("translation.chunk_size must be positive, got %d", c.Translation.ChunkSize)
	}
	switch c.Translation.ChunkFailure {
	case ChunkFailureKeep, ChunkFailureDrop:
	default:
		return fmt.Errorf("translation.chunk_failure must be %q or %q, got %q",
			ChunkFailureKeep, ChunkFailureDrop, c.Translation.ChunkFailure)
	}
	if c.Translation.Delay < 0 {
		return fmt.Errorf("translation.delay must not be negative")
	}
	if c.Summary.CharsPerSentence <= 0 {
		return fmt.Errorf("summary.chars_per_sentence must be positive")
	}
	if len(c.Fetch.Selectors) == 0 {
		c.Fetch.Selectors = append([]string(nil), DefaultSelectors...)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
