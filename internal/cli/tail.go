package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/rickgao/cgm-ingest/internal/model"
	"github.com/rickgao/cgm-ingest/internal/version"
)

// NewTailCommand creates the tail command.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		url   string
		count int
	)

	cmd := &cobra.Command{
		Use:           "tail",
		Short:         "Print records relayed by a running ingester",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(rootOpts, cmd, url, count)
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:9090/ws/relay", "relay websocket endpoint")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many records (0 = run until interrupted)")

	return cmd
}

func runTail(opts *RootOptions, cmd *cobra.Command, url string, count int) error {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), url, header)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on interrupt.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-cmd.Context().Done():
			conn.Close()
		case <-done:
		}
	}()

	for seen := 0; count == 0 || seen < count; seen++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return fmt.Errorf("read relay: %w", err)
		}

		if opts.Format == "json" {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(data))); err != nil {
				return err
			}
			continue
		}

		var rec model.GlucoseRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode relay message: %w", err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %d %g %s\n",
			rec.SourceSensor, rec.Timestamp, rec.Value, rec.TrendArrow); err != nil {
			return err
		}
	}
	return nil
}
