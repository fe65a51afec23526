/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/othaime-en/validapi/internal/config"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string

	// Populated before any subcommand runs
	appConfig config.Config
	logger    *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "validapi",
	Short: "Validate live REST APIs against their OpenAPI contract",
	Long: `validapi checks that a running API behaves the way its OpenAPI 3.x
document says it does.

Every declared operation is called against a live server and its response is
checked for an expected status code, the expected headers and a body that
matches the declared JSON schema. Results are printed and can be exported as
JSON or CSV reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		l, err := config.NewLogger(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}

		appConfig = cfg
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./validapi.{yaml,toml,json})")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}
