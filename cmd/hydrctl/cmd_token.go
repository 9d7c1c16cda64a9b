package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"statehydrate/pkg/blob"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [payload-file]",
	Short: "Encode a JSON or YAML payload into a hydration token",
	Long: `Encode reads a payload from a file (or stdin when the argument is "-"
or omitted) and prints the URL-safe token. YAML input is accepted; JSON is
valid YAML so both formats work without a flag.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Decode a hydration token back into pretty-printed JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := readPayload(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	token, err := blob.Encode(payload)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	payload, err := blob.Decode(args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render payload: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func readPayload(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	return data, nil
}
