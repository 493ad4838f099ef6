package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/cgm-ingest/internal/version"
)

// SendResult is the JSON form of a send response.
type SendResult struct {
	Status int    `json:"status"`
	Body   string `json:"body,omitempty"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <file|->",
		Short: "Post a payload to the ingester intake endpoint",
		Long: `Post a JSON payload to a running ingester, the same way a companion
app would. Exits non-zero unless the ingester queued or gated the payload.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runSend(ctx, rootOpts, cmd, url, data)
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:9090/api/v1/glimp", "intake endpoint")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	return cmd
}

func runSend(ctx context.Context, opts *RootOptions, cmd *cobra.Command, url string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	result := SendResult{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}

	if err := writeResult(cmd, opts, result, fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))); err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusNoContent:
		return nil
	default:
		return fmt.Errorf("ingester responded %d: %s", resp.StatusCode, result.Body)
	}
}
