package cli

import (
	"github.com/spf13/cobra"

	"github.com/lucasnoah/tddfactory/internal/logging"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	configFile string
	projectDir string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "tdd",
	Short: "tdd — drives a code generator through red/green/refactor cycles",
	Long: `tdd turns an ordered list of plain-language requirements into tested code.
For each requirement it asks the generator for one failing test (RED), retries
minimal implementations until the suite passes (GREEN), then tries a refactor
and rolls it back if the suite regresses (REFACTOR).

Configuration is read from --config, ./tdd.yaml or ~/.tdd/config.yaml, and
TDD_<SECTION>_<FIELD> environment variables override file values.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (default ./tdd.yaml, then ~/.tdd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project root (overrides project.root)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatAuto, "log format: auto, json or console")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptsCmd)
}
