package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/tddfactory/internal/prompt"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect and customize the generator prompt templates",
}

var promptsInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Write the built-in templates into the project's prompts directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		dir := promptsDir(cfg, store.Root())
		written, err := prompt.InstallBuiltinTemplates(dir, force)
		if err != nil {
			return err
		}
		if len(written) == 0 {
			cmd.Printf("All templates already present in %s (use --force to overwrite).\n", dir)
			return nil
		}
		for _, name := range written {
			cmd.Printf("wrote %s\n", name)
		}
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the template a phase will use, including project overrides",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		tmpl, err := prompt.LoadTemplate(args[0], promptsDir(cfg, store.Root()))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), tmpl)
		return nil
	},
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in template names",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range prompt.BuiltinNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	promptsInstallCmd.Flags().Bool("force", false, "overwrite existing templates")
	promptsCmd.AddCommand(promptsInstallCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	promptsCmd.AddCommand(promptsListCmd)
}
