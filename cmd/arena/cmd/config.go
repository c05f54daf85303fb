package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/arena/agents"
	"github.com/rustyeddy/arena/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage arena configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  arena config init -o arena.yaml
  arena config validate -f arena.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, validate it and build every configured agent
so unknown kinds are reported before a run starts.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "arena.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  arena run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	agts, err := agents.Build(cfg.Agents)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Arena: %d cycles every %s, $%.2f per agent\n",
		cfg.Arena.Cycles, orNone(cfg.Arena.CycleInterval), cfg.Arena.StartingCapital)
	fmt.Fprintf(out, "  Market: %s %v\n", cfg.Market.Source, cfg.Arena.Instruments)
	for _, a := range agts {
		fmt.Fprintf(out, "  Agent: %s (%s)\n", a.Name(), a.ID())
	}
	fmt.Fprintf(out, "  State: %s\n", cfg.History.StateFile)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "0s"
	}
	return s
}
