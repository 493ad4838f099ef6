package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// writeResult prints v as JSON or text as a one-line summary.
func writeResult(cmd *cobra.Command, opts *RootOptions, v any, text string) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(out).Encode(v)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
