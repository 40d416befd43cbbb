package generate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/lucasnoah/tddfactory/internal/config"
)

// Completer sends one prompt to a model and returns its raw text answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// retryableError marks a transport failure worth retrying (429, 5xx, network).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func isTransientStatus(code int) bool {
	return code == 429 || code >= 500
}

// classifyNetError wraps network-level failures as retryable. Caller
// cancellation is never retried.
func classifyNetError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &retryableError{err: err}
	}
	return err
}

// NewCompleter builds the Completer for the configured provider.
func NewCompleter(cfg config.Generator) (Completer, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := ""
		if cfg.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.APIKeyEnv)
		}
		if apiKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai API key required (set $%s)", cfg.APIKeyEnv)
		}
		return NewOpenAICompleter(cfg, apiKey), nil
	case "ollama":
		return NewOllamaCompleter(cfg)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}
