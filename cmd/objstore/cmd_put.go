package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	putFile        string
	putContentType string
)

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Upload a file (or stdin) as an object",
	Example: `  objstore put --bucket reports --key 2024/q1.json --file q1.json
  echo '{"a":1}' | objstore put -k a.json`,
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "File to upload, stdin if empty")
	putCmd.Flags().StringVar(&putContentType, "content-type", "application/json", "Content type stored with the object")
}

func runPut(cmd *cobra.Command, args []string) error {
	body, err := readInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	svc, params, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close()

	params.Body = body
	params.ContentType = putContentType

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	result, err := svc.UploadObject(ctx, params)
	if err != nil {
		return err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func readInput(stdin io.Reader) ([]byte, error) {
	if putFile == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(putFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", putFile, err)
	}
	return data, nil
}
