package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
	Long: `Settings resolve from defaults, then the config file, then environment
variables. 'config show' lists every key with its value and where the
value came from; secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List resolved settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Write a setting to the config file",
	Example: `  lexis config set llm.provider groq
  lexis config set retrieval.top_k 8`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:     "unset [key]",
	Short:   "Remove a setting from the config file",
	Example: `  lexis config unset llm.model`,
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigUnset,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the embedding and LLM providers are reachable",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	entries, err := r.Settings().Entries()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, displayValue(e.Value), sourceLabel(e))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if _, err := r.Resolved(); err != nil {
		cmd.Println()
		cmd.Println(color.YellowString("Settings are invalid: %v", err))
	}
	return nil
}

func displayValue(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func sourceLabel(e driving.Setting) string {
	if e.Source == driving.SourceEnv && e.Env != "" {
		return fmt.Sprintf("env (%s)", e.Env)
	}
	return string(e.Source)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	if err := r.Settings().Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}
	if err := r.Settings().Unset(args[0]); err != nil {
		return err
	}
	cmd.Printf("Unset %s\n", args[0])
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	checks, err := r.Settings().CheckProviders(cmd.Context())
	if err != nil {
		return err
	}

	failed := false
	for _, c := range checks {
		target := fmt.Sprintf("%s/%s", displayValue(string(c.Provider)), displayValue(c.Model))
		if c.Err != nil {
			failed = true
			cmd.Printf("  %-10s %s %s: %v\n", c.Role, color.RedString("FAIL"), target, c.Err)
			continue
		}
		cmd.Printf("  %-10s %s   %s\n", c.Role, color.GreenString("OK"), target)
	}

	if failed {
		return errors.New("provider check failed")
	}
	return nil
}
