package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/entrhq/forge-conductor/pkg/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "forge-conductor",
	Short:         "Requirement-graph scheduler with worktree-isolated agent execution",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default conductor.yaml)")
	rootCmd.PersistentFlags().String("graph-dir", "", "directory holding project graphs")
	rootCmd.PersistentFlags().String("slug", "", "project slug")
	rootCmd.PersistentFlags().String("repo", "", "repository root the agents work on")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// loadConfig resolves the run configuration: defaults, then the config
// file, then FORGE_CONDUCTOR_* environment variables, then flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FORGE_CONDUCTOR")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("conductor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; flags and env
			// can carry a full configuration.
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("failed to read conductor.yaml: %w", err)
			}
		}
	}

	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if flag := cmd.Flags().Lookup("graph-dir"); flag != nil && flag.Changed {
		cfg.GraphDir = flag.Value.String()
	}
	if flag := cmd.Flags().Lookup("slug"); flag != nil && flag.Changed {
		cfg.Slug = flag.Value.String()
	}
	if flag := cmd.Flags().Lookup("repo"); flag != nil && flag.Changed {
		cfg.RepoRoot = flag.Value.String()
	}

	return cfg, nil
}
