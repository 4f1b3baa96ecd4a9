// Package fallback keeps short-lived profiling data in an embedded badger
// store: the latest profile that could not reach the reporting store, and
// the most recent lifecycle checkpoints. Entries expire through badger TTLs
// and are never aggregated.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/pkg/pulse"
)

var (
	latestKey        = []byte("latest_profile")
	checkpointPrefix = []byte("checkpoint/")
)

var _ pulse.FallbackCache = (*Cache)(nil)

// Options select where the cache lives.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM; the cache is lost on Close.
	InMemory bool
}

// Cache is a TTL key-value cache backed by badger.
type Cache struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens or creates the cache.
func Open(opts Options, logger zerolog.Logger) (*Cache, error) {
	logger = logger.With().Str("component", "fallback_cache").Logger()

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else if opts.Path == "" {
		return nil, errors.New("cache path is required unless in-memory")
	}
	bopts = bopts.WithLogger(badgerLogger{logger}).WithNumVersionsToKeep(1)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open fallback cache: %w", err)
	}
	logger.Debug().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Msg("Fallback cache opened")
	return &Cache{db: db, logger: logger}, nil
}

// Close flushes and closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// PutLatest replaces the latest profile. A non-positive ttl never expires.
func (c *Cache) PutLatest(ctx context.Context, p *pulse.Profile, ttl time.Duration) error {
	if p == nil {
		return errors.New("nil profile")
	}
	return c.put(ctx, latestKey, p, ttl)
}

// Latest returns the cached profile, or nil when it is missing or expired.
func (c *Cache) Latest(ctx context.Context) (*pulse.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p *pulse.Profile
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			p = new(pulse.Profile)
			return json.Unmarshal(val, p)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read latest profile: %w", err)
	}
	return p, nil
}

// PutCheckpoint stores cp under its phase, replacing an earlier one.
func (c *Cache) PutCheckpoint(ctx context.Context, cp pulse.Checkpoint, ttl time.Duration) error {
	if cp.Phase == "" {
		return errors.New("checkpoint phase is required")
	}
	key := append(append([]byte{}, checkpointPrefix...), cp.Phase...)
	return c.put(ctx, key, cp, ttl)
}

// Checkpoints returns the unexpired checkpoints ordered by time.
func (c *Cache) Checkpoints(ctx context.Context) ([]pulse.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]pulse.Checkpoint, 0)
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: checkpointPrefix})
		defer it.Close()
		for it.Seek(checkpointPrefix); it.ValidForPrefix(checkpointPrefix); it.Next() {
			var cp pulse.Checkpoint
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &cp)
			}); err != nil {
				return err
			}
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read checkpoints: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("clear fallback cache: %w", err)
	}
	return nil
}

func (c *Cache) put(ctx context.Context, key []byte, v any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// badgerLogger routes badger's internal logging to zerolog, one level down.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}
