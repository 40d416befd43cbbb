package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/tddfactory/internal/workspace"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Show the project file listing the generator sees",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		files, err := store.List()
		if err != nil {
			return fmt.Errorf("list project files: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), workspace.Listing(files))
		return nil
	},
}
