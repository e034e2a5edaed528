package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch an object and print its JSON content",
	Example: `  objstore get --bucket reports --key 2024/q1.json
  objstore get --storage dev -k settings.json`,
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	svc, params, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	value, err := svc.GetObject(ctx, params)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("format object: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
