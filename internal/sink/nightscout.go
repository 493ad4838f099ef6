package sink

import (
	"context"

	"github.com/rickgao/cgm-ingest/internal/model"
	"github.com/rickgao/cgm-ingest/internal/nightscout"
)

// NightscoutUploader uploads each record as a Nightscout sgv entry.
type NightscoutUploader struct {
	client *nightscout.Client
}

// NewNightscoutUploader wraps client.
func NewNightscoutUploader(client *nightscout.Client) *NightscoutUploader {
	return &NightscoutUploader{client: client}
}

// Upload posts rec with sourceLabel as the entry device.
func (u *NightscoutUploader) Upload(ctx context.Context, rec model.GlucoseRecord, sourceLabel string) error {
	return u.client.PostEntries(ctx, []nightscout.Entry{nightscout.EntryFromRecord(rec, sourceLabel)})
}
