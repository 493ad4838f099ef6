package nightscout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rickgao/cgm-ingest/internal/model"
)

const (
	entriesPath = "/api/v1/entries"
	statusPath  = "/api/v1/status.json"
)

// Entry is a Nightscout sgv entry.
type Entry struct {
	Type       string   `json:"type"`
	SGV        int      `json:"sgv"`
	Date       int64    `json:"date"`
	DateString string   `json:"dateString"`
	Direction  string   `json:"direction"`
	Device     string   `json:"device"`
	Noise      *float64 `json:"noise,omitempty"`
	Unfiltered *float64 `json:"unfiltered,omitempty"`
}

// EntryFromRecord converts a stored record into an upload entry.
// device is the source label shown in Nightscout, e.g. "AndroidAPS-Glimp".
func EntryFromRecord(rec model.GlucoseRecord, device string) Entry {
	return Entry{
		Type:       "sgv",
		SGV:        int(rec.Value + 0.5),
		Date:       rec.Timestamp,
		DateString: time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC3339Nano),
		Direction:  rec.TrendArrow.NightscoutDirection(),
		Device:     device,
		Noise:      rec.Noise,
		Unfiltered: rec.Raw,
	}
}

// PostEntries uploads entries. Nightscout deduplicates on date and type,
// so resending an entry is harmless.
func (c *Client) PostEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	if _, err := c.doWithRetry(ctx, http.MethodPost, entriesPath, payload); err != nil {
		return fmt.Errorf("post entries: %w", err)
	}

	c.logger.Debug("uploaded entries", "count", len(entries))
	return nil
}

// Status is the subset of /api/v1/status.json used for reachability checks.
type Status struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	ServerTime string `json:"serverTime"`
}

// GetStatus fetches the server status.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, statusPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &status, nil
}
