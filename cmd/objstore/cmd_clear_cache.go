package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:     "clear-cache",
	Short:   "Drop cached objects of the selected storage",
	Example: `  objstore clear-cache --storage dev`,
	RunE:    runClearCache,
}

func runClearCache(cmd *cobra.Command, args []string) error {
	svc, _, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.ClearCache(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), `{"status":"cleared"}`)
	return nil
}
