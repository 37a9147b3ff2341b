package main

import (
	"fmt"
	"os"

	"github.com/datasociety/hub/pkg/hub/config"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd starts the server when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "hub-server",
	Short: "Resource hub API server",
	Long: `Serves the resource library API.

Available subcommands:
  serve   - Run the HTTP server (default)
  migrate - Apply database migrations and create the bootstrap admin
  import  - Load a resource bundle file into the catalog`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
