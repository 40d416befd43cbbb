package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/tddfactory/internal/config"
	"github.com/lucasnoah/tddfactory/internal/orchestrator"
	"github.com/lucasnoah/tddfactory/internal/report"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run [requirement...]",
	Short: "Run a red/green/refactor cycle for each requirement, in order",
	Long: `Run a red/green/refactor cycle for each requirement, in order.

Requirements come from the arguments, then from -f (a YAML list, or a mapping
with a "requirements" key). With neither, pipeline.requirements from the
config is used. A failed cycle does not stop the run; the exit status is
non-zero unless every cycle completes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reqFile, _ := cmd.Flags().GetString("file")
		maxRetries, _ := cmd.Flags().GetInt("max-retries")
		jsonOut, _ := cmd.Flags().GetBool("json")
		verbose, _ := cmd.Flags().GetBool("verbose")
		metricsFile, _ := cmd.Flags().GetString("metrics-file")
		traceFile, _ := cmd.Flags().GetString("trace-file")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("max-retries") {
			cfg.Pipeline.MaxRetries = maxRetries
		}
		if errs := config.Validate(cfg); len(errs) > 0 {
			for _, e := range errs {
				cmd.PrintErrf("  - %s\n", e)
			}
			return fmt.Errorf("config has %d validation error(s)", len(errs))
		}

		requirements, err := collectRequirements(cfg, args, reqFile)
		if err != nil {
			return err
		}
		if len(requirements) == 0 {
			return errors.New("no requirements: pass them as arguments, with -f, or under pipeline.requirements")
		}
		cmd.SilenceUsage = true

		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if traceFile != "" {
			f, err := os.Create(traceFile)
			if err != nil {
				return fmt.Errorf("create trace file: %w", err)
			}
			defer f.Close()
			shutdown, err := telemetry.SetupTracing(f)
			if err != nil {
				return err
			}
			defer shutdown(cmd.Context())
		}

		metrics := telemetry.NewMetrics()
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		gen, err := newGenerator(cfg, store, logger, metrics)
		if err != nil {
			return fmt.Errorf("create generator: %w", err)
		}

		p := orchestrator.New(gen, store, newTestRunner(cfg, store, logger), cfg.Pipeline,
			orchestrator.WithLogger(logger),
			orchestrator.WithMetrics(metrics),
		)
		p.SetProgress(cmd.ErrOrStderr())

		summary := p.Run(cmd.Context(), requirements)

		w := cmd.OutOrStdout()
		if jsonOut {
			err = report.JSON(w, summary)
		} else {
			err = report.Text(w, summary, report.Options{Verbose: verbose})
		}
		if err != nil {
			return err
		}

		if metricsFile != "" {
			if err := metrics.WriteTextfile(metricsFile); err != nil {
				return err
			}
		}

		if n := summary.RollbackFailures(); n > 0 && jsonOut {
			cmd.PrintErrf("warning: %d refactor rollback(s) failed; implementation files may hold broken code\n", n)
		}
		if !summary.AllComplete() {
			return fmt.Errorf("%d of %d cycle(s) did not complete", summary.Total-summary.Completed, summary.Total)
		}
		return nil
	},
}

// collectRequirements returns the argument requirements followed by those in
// reqFile, or the configured list when both are empty.
func collectRequirements(cfg *config.Config, args []string, reqFile string) ([]string, error) {
	var reqs []string
	for i, a := range args {
		if a == "" {
			return nil, fmt.Errorf("requirement argument %d is empty", i+1)
		}
		reqs = append(reqs, a)
	}
	if reqFile != "" {
		fromFile, err := config.LoadRequirements(reqFile)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, fromFile...)
	}
	if len(reqs) == 0 {
		reqs = cfg.Pipeline.Requirements
	}
	return reqs, nil
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "YAML file of requirements")
	runCmd.Flags().Int("max-retries", config.DefaultMaxRetries, "GREEN implementation attempts per requirement (overrides pipeline.max_retries)")
	runCmd.Flags().Bool("json", false, "print the summary as JSON")
	runCmd.Flags().BoolP("verbose", "v", false, "include raw test output of failed phases")
	runCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	runCmd.Flags().String("trace-file", "", "write OpenTelemetry spans to this file")
}
