package pulse

import (
	"context"
	"time"
)

// Store persists flushed profiles. Child inserts are best effort: a failed
// child is reported in the BatchResult and never fails the parent.
type Store interface {
	// InsertProfile writes the parent row and returns its id.
	InsertProfile(ctx context.Context, p *Profile) (string, error)
	InsertSlowQueries(ctx context.Context, profileID string, queries []SlowQuery) BatchResult
	InsertAssets(ctx context.Context, profileID string, assets []Asset) BatchResult
}

// FallbackCache keeps short-lived data that did not reach the store.
// Entries in it are never aggregated.
type FallbackCache interface {
	PutLatest(ctx context.Context, p *Profile, ttl time.Duration) error
	PutCheckpoint(ctx context.Context, cp Checkpoint, ttl time.Duration) error
}
