package cli

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/tddfactory/internal/checks"
	"github.com/lucasnoah/tddfactory/internal/config"
	"github.com/lucasnoah/tddfactory/internal/generate"
	"github.com/lucasnoah/tddfactory/internal/logging"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
	"github.com/lucasnoah/tddfactory/internal/workspace"
)

// loadConfig resolves the configuration from --config, the default search
// path, or built-in defaults when no file exists. --project overrides the
// project root.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
		if errors.Is(err, config.ErrNoConfig) {
			cfg, err = config.Default()
		}
	}
	if err != nil {
		return nil, err
	}
	if projectDir != "" {
		cfg.Project.Root = projectDir
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	return logging.New(logLevel, logFormat, cmd.ErrOrStderr())
}

func openStore(cfg *config.Config) (*workspace.Store, error) {
	return workspace.NewStore(cfg.Project.Root, cfg.Project.Exclude)
}

func newTestRunner(cfg *config.Config, store *workspace.Store, logger *zap.Logger) *checks.Runner {
	return checks.NewRunner(&checks.ExecRunner{}, checks.Config{
		Dir:       store.Root(),
		Command:   cfg.Project.TestCommand,
		Timeout:   cfg.Project.TestTimeoutDuration(),
		MaxOutput: cfg.Project.MaxOutput,
	}, logger)
}

// promptsDir returns the per-project template override directory.
func promptsDir(cfg *config.Config, root string) string {
	if filepath.IsAbs(cfg.Generator.PromptsDir) {
		return cfg.Generator.PromptsDir
	}
	return filepath.Join(root, cfg.Generator.PromptsDir)
}

// newGenerator builds the LLM-backed generator. Tests replace it.
var newGenerator = func(cfg *config.Config, store *workspace.Store, logger *zap.Logger, metrics *telemetry.Metrics) (generate.Generator, error) {
	completer, err := generate.NewCompleter(cfg.Generator)
	if err != nil {
		return nil, err
	}
	return generate.NewLLMGenerator(cfg.Generator, completer,
		generate.WithLogger(logger),
		generate.WithMetrics(metrics),
		generate.WithPromptsDir(promptsDir(cfg, store.Root())),
		generate.WithTestCommand(cfg.Project.TestCommand),
		generate.WithPathResolver(store),
	), nil
}
