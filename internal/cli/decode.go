package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickgao/cgm-ingest/internal/decode"
	"github.com/rickgao/cgm-ingest/internal/model"
	"github.com/rickgao/cgm-ingest/internal/router"
)

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	var sensorName string

	cmd := &cobra.Command{
		Use:   "decode <file|->",
		Short: "Decode a payload into a glucose record",
		Long: `Decode a JSON payload the way the ingester does and print the
resulting glucose record, or the reason it would be rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sensor, ok := model.ParseSourceSensor(sensorName)
			if !ok {
				return fmt.Errorf("unknown sensor %q", sensorName)
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return runDecode(rootOpts, cmd, decode.New(sensor, decode.GlimpFields()), data)
		},
	}

	cmd.Flags().StringVar(&sensorName, "sensor", "Glimp", "source sensor the payload came from")

	return cmd
}

func runDecode(opts *RootOptions, cmd *cobra.Command, decoder *decode.Decoder, data []byte) error {
	payload, err := router.ParsePayload(data)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	rec, err := decoder.Decode(payload)
	if err != nil {
		return fmt.Errorf("rejected: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fields := []string{
		"sensor=" + string(rec.SourceSensor),
		fmt.Sprintf("timestamp=%d", rec.Timestamp),
		fmt.Sprintf("value=%g", rec.Value),
		"trend=" + rec.TrendArrow.String(),
	}
	if rec.Raw != nil {
		fields = append(fields, fmt.Sprintf("raw=%g", *rec.Raw))
	}
	_, err = fmt.Fprintln(out, strings.Join(fields, " "))
	return err
}
