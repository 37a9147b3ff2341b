package main

import (
	"github.com/spf13/cobra"
)

// migrateCmd prepares the store without serving traffic
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and create the bootstrap admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.closer()

		e.logger.Info("store is ready")
		return nil
	},
}
