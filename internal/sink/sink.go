package sink

import (
	"context"
	"errors"

	"github.com/rickgao/cgm-ingest/internal/model"
)

var (
	// ErrRelay wraps every relay sink failure reported by Fanout.
	ErrRelay = errors.New("relay sink")

	// ErrUpload wraps every upload sink failure reported by Fanout.
	ErrUpload = errors.New("upload sink")
)

// RelaySink broadcasts a record to local consumers.
type RelaySink interface {
	Relay(ctx context.Context, rec model.GlucoseRecord) error
}

// UploadSink sends a record to a remote service. sourceLabel names the
// originating integration, e.g. "AndroidAPS-Glimp".
type UploadSink interface {
	Upload(ctx context.Context, rec model.GlucoseRecord, sourceLabel string) error
}

// NopRelay discards records.
type NopRelay struct{}

func (NopRelay) Relay(context.Context, model.GlucoseRecord) error { return nil }

// NopUploader discards records.
type NopUploader struct{}

func (NopUploader) Upload(context.Context, model.GlucoseRecord, string) error { return nil }
