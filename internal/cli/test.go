package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the project's test command once and show its output",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		res := newTestRunner(cfg, store, logger).Run(cmd.Context())
		w := cmd.OutOrStdout()
		fmt.Fprint(w, res.Output)
		if res.Output != "" && !strings.HasSuffix(res.Output, "\n") {
			fmt.Fprintln(w)
		}
		if !res.Success {
			return fmt.Errorf("tests failed (exit %d, %s)", res.ExitCode, res.Duration.Round(time.Millisecond))
		}
		fmt.Fprintf(w, "tests passed (%s)\n", res.Duration.Round(time.Millisecond))
		return nil
	},
}
