package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields the config file leaves empty.
const (
	DefaultTestCommand         = "pnpm test"
	DefaultTestTimeout         = 30 * time.Second
	DefaultMaxOutput           = 16000
	DefaultMaxRetries          = 3
	DefaultFeedbackCodeChars   = 500
	DefaultFeedbackErrorChars  = 500
	DefaultProvider            = "openai"
	DefaultModel               = "gpt-4o-mini"
	DefaultAPIKeyEnv           = "OPENAI_API_KEY"
	DefaultMaxTokens           = 4000
	DefaultGeneratorTimeout    = 2 * time.Minute
	DefaultRateLimit           = 1.0
	DefaultBurst               = 1
	DefaultMaxTransportRetries = 3
	DefaultPromptsDir          = ".tdd/prompts"

	envPrefix = "TDD_"
)

// ErrNoConfig is returned by LoadDefault when no config file exists in the search path.
var ErrNoConfig = errors.New("no tdd config found")

// Load reads and parses a configuration from the given YAML file path.
// TDD_<SECTION>_<FIELD> environment variables override file values, then
// defaults are applied to anything still unset. A relative project root is
// resolved against the config file's directory, and an omitted root means
// that directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(filepath.Dir(path), cfg.Project.Root)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./tdd.yaml, ~/.tdd/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"tdd.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".tdd", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("%w (searched: %v)", ErrNoConfig, candidates)
}

// Default returns a configuration built from defaults and environment overrides only.
func Default() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv layers TDD_* environment variables over cfg.
// TDD_GENERATOR_MODEL maps to generator.model, TDD_PROJECT_TEST_COMMAND to
// project.test_command: the first underscore after the prefix separates the
// section from the field name.
func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return fmt.Errorf("loading environment overrides: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("applying environment overrides: %w", err)
	}
	return nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + field
}

// applyDefaults fills every unset field with its default.
func applyDefaults(cfg *Config) {
	p := &cfg.Project
	if p.Root == "" {
		p.Root = "."
	}
	if p.TestCommand == "" {
		p.TestCommand = DefaultTestCommand
	}
	if p.TestTimeout == "" {
		p.TestTimeout = DefaultTestTimeout.String()
	}
	if p.MaxOutput <= 0 {
		p.MaxOutput = DefaultMaxOutput
	}

	pl := &cfg.Pipeline
	if pl.MaxRetries == 0 {
		pl.MaxRetries = DefaultMaxRetries
	}
	if pl.FeedbackCodeChars <= 0 {
		pl.FeedbackCodeChars = DefaultFeedbackCodeChars
	}
	if pl.FeedbackErrorChars <= 0 {
		pl.FeedbackErrorChars = DefaultFeedbackErrorChars
	}

	g := &cfg.Generator
	if g.Provider == "" {
		g.Provider = DefaultProvider
	}
	if g.Model == "" {
		g.Model = DefaultModel
	}
	if g.APIKeyEnv == "" && g.Provider == "openai" {
		g.APIKeyEnv = DefaultAPIKeyEnv
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = DefaultMaxTokens
	}
	if g.Timeout == "" {
		g.Timeout = DefaultGeneratorTimeout.String()
	}
	if g.RateLimit == 0 {
		g.RateLimit = DefaultRateLimit
	}
	if g.Burst <= 0 {
		g.Burst = DefaultBurst
	}
	if g.MaxTransportRetries == 0 {
		g.MaxTransportRetries = DefaultMaxTransportRetries
	}
	if g.PromptsDir == "" {
		g.PromptsDir = DefaultPromptsDir
	}
}
