package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFiles   []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dtusim",
	Short: "dtusim simulates data transfer units.",
	Long: `dtusim simulates the data transfer units of a multi-node system. ` +
		`Parameters come from a YAML file, DTUSIM_* environment variables, ` +
		`.env files, and flags, in increasing priority.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"configuration file (default: dtusim.yaml in the working directory)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file",
		[]string{".env"}, ".env files to load into the environment")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console",
		"log format (console or json)")

	rootCmd.AddCommand(runCmd)
}
