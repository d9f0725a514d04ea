package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/statforge/internal/cli"
	"github.com/aretw0/statforge/internal/config"
	"github.com/aretw0/statforge/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "statforge",
	Short: "Statforge turns free-text descriptions into tabletop RPG stat blocks",
	Long: `Statforge classifies a description, retrieves similar stat blocks from its corpus,
drafts a new one with a language model and refines it through critique and revision.
Sessions are checkpointed after every stage and can be resumed. 'statforge effect'
first decides which magical effect a scene produces.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Configuration file (yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override: debug, info, warn, error")
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// buildApp loads the configuration and wires the converter.
func buildApp(cmd *cobra.Command, opts cli.Options) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd, cfg, opts)
}

// newApp wires the converter for cfg. Logs go to stderr so stdout only carries results.
func newApp(cmd *cobra.Command, cfg config.Config, opts cli.Options) (*cli.App, error) {
	if opts.Logger == nil {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		opts.Logger = logging.New(level)
	}
	opts.Config = cfg
	return cli.Build(cmd.Context(), opts)
}
