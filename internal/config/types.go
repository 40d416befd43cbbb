package config

import "time"

// Config is the top-level configuration structure parsed from tdd.yaml.
type Config struct {
	Project   Project   `yaml:"project"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Generator Generator `yaml:"generator"`
}

// Project describes the workspace the cycles run against and how its tests are invoked.
type Project struct {
	Root        string   `yaml:"root"`
	TestCommand string   `yaml:"test_command"`
	TestTimeout string   `yaml:"test_timeout"`
	MaxOutput   int      `yaml:"max_output"`
	Exclude     []string `yaml:"exclude"`
}

// Pipeline controls how requirements are sequenced and how green retries build feedback.
type Pipeline struct {
	MaxRetries         int      `yaml:"max_retries"`
	FeedbackCodeChars  int      `yaml:"feedback_code_chars"`
	FeedbackErrorChars int      `yaml:"feedback_error_chars"`
	Requirements       []string `yaml:"requirements"`
}

// Generator configures the code generation oracle.
type Generator struct {
	Provider            string  `yaml:"provider"`
	Model               string  `yaml:"model"`
	BaseURL             string  `yaml:"base_url"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	Temperature         float64 `yaml:"temperature"`
	MaxTokens           int     `yaml:"max_tokens"`
	Timeout             string  `yaml:"timeout"`
	RateLimit           float64 `yaml:"rate_limit"`
	Burst               int     `yaml:"burst"`
	MaxTransportRetries int     `yaml:"max_transport_retries"`
	PromptsDir          string  `yaml:"prompts_dir"`
}

// TestTimeoutDuration returns the parsed per-invocation test timeout.
func (p Project) TestTimeoutDuration() time.Duration {
	return parseDuration(p.TestTimeout, DefaultTestTimeout)
}

// TimeoutDuration returns the parsed per-request generation timeout.
func (g Generator) TimeoutDuration() time.Duration {
	return parseDuration(g.Timeout, DefaultGeneratorTimeout)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
