package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/aoide"
	"github.com/aretw0/aoide/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "aoide",
	Short: "aoide talks to AO processes on a HyperBEAM node",
	Long: `aoide spawns AO processes, sends them Lua and messages, reads their state,
runs notebooks of Lua cells and serves the IDE backend over HTTP and MCP.`,
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
	rootCmd.PersistentFlags().String("config", "", "Config file (default: first of aoide.yaml, aoide.toml, aoide.json)")
	rootCmd.PersistentFlags().String("endpoint", "", "HyperBEAM node URL (overrides endpoint_url)")
	rootCmd.PersistentFlags().String("wallet", "", "Wallet JWK file used to sign messages")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		cfg.EndpointURL = v
	}
	if v, _ := cmd.Flags().GetString("wallet"); v != "" {
		cfg.Wallet = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, cfg.Validate()
}

// newClient builds a Client from the command's config. Callers close it.
func newClient(cmd *cobra.Command, opts ...aoide.Option) (*aoide.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return aoide.New(cfg, opts...)
}
