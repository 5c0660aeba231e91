package domain

import (
	"context"
	"io"
	"time"
)

// TickRange bounds a historical query. Zero From/To mean unbounded on that
// side. Results are always newest first.
type TickRange struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// TickStore persists indicator records. Writes from the pipeline are
// best-effort: a failed Insert is logged and never retried, and never gates
// broadcast to live subscribers.
type TickStore interface {
	Insert(ctx context.Context, rec IndicatorRecord) error
	ReadRange(ctx context.Context, symbol string, q TickRange) ([]IndicatorRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]IndicatorRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TickCache holds the most recent indicator record per symbol for cheap
// read-through access by other processes.
type TickCache interface {
	SetLatest(ctx context.Context, rec IndicatorRecord) error
	GetLatest(ctx context.Context, symbol string) (IndicatorRecord, error)
}

// SignalBus is a lightweight pub/sub fabric (Redis-backed in production) used
// to fan ticks and anomalies out to other processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads archive objects to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
