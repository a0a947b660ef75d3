package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/slidecraft/slides-cli/internal/storage"
)

// FetchFunc loads the value for a cache line from the server.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Recorder receives cache and fetch events.
type Recorder interface {
	CacheLookup(line string, hit bool)
	FetchDone(line string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(string, bool)               {}
func (nopRecorder) FetchDone(string, time.Duration, error) {}

// entry is the durable form of a cache line. Expire is unix milliseconds.
type entry struct {
	Expire int64           `json:"expire"`
	Data   json.RawMessage `json:"data"`
}

// Line is one independently expiring, independently deduplicated cache slot.
//
// The durable store is the source of truth for freshness and is read on
// every Check. The only per-process state is the in-flight table.
type Line struct {
	name  string
	key   string
	ttl   time.Duration
	fetch FetchFunc
	store storage.Store

	now          func() time.Time
	fetchTimeout time.Duration
	recorder     Recorder
	logger       *slog.Logger

	// credential returns the token the fetch authenticates with; nil when
	// the line does not depend on one.
	credential func(ctx context.Context) string

	flight singleflight.Group
}

func newLine(name, key string, ttl time.Duration, fetch FetchFunc, store storage.Store, o *options) *Line {
	return &Line{
		name:         name,
		key:          key,
		ttl:          ttl,
		fetch:        fetch,
		store:        store,
		now:          o.now,
		fetchTimeout: o.fetchTimeout,
		recorder:     o.recorder,
		logger:       o.logger,
	}
}

// Name returns the line's name.
func (l *Line) Name() string { return l.name }

// Key returns the durable storage key.
func (l *Line) Key() string { return l.key }

// TTL returns how long a fetched value stays fresh.
func (l *Line) TTL() time.Duration { return l.ttl }

// Check returns the cached value if it has not expired. Otherwise it joins
// the outstanding fetch for this line, or starts one. Every caller joining
// the same fetch gets the same value or error.
//
// The fetch is detached from ctx. If ctx ends first, this caller stops
// waiting and gets ctx.Err() while the fetch continues for the others.
func (l *Line) Check(ctx context.Context) (json.RawMessage, error) {
	if data, ok := l.fresh(ctx); ok {
		l.recorder.CacheLookup(l.name, true)
		return data, nil
	}
	l.recorder.CacheLookup(l.name, false)

	fetchCtx := context.WithoutCancel(ctx)
	ch := l.flight.DoChan(l.key, func() (any, error) {
		return l.refill(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate removes the durable entry so the next Check fetches.
func (l *Line) Invalidate(ctx context.Context) error {
	if err := l.store.Remove(ctx, l.key); err != nil {
		return fmt.Errorf("invalidating %s session: %w", l.name, err)
	}
	return nil
}

// Expiry reports when the cached value expires. ok is false when nothing
// fresh is cached. It never fetches.
func (l *Line) Expiry(ctx context.Context) (expires time.Time, ok bool, err error) {
	raw, found, err := l.store.Get(ctx, l.key)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	var e entry
	if json.Unmarshal(raw, &e) != nil || e.Expire <= l.now().UnixMilli() {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(e.Expire), true, nil
}

// fresh reads the durable entry and reports whether it is still valid.
// Unreadable entries count as misses.
func (l *Line) fresh(ctx context.Context) (json.RawMessage, bool) {
	raw, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.logger.Debug("session entry read failed", "line", l.name, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		l.logger.Debug("session entry corrupt", "line", l.name, "error", err)
		return nil, false
	}
	if e.Expire <= l.now().UnixMilli() {
		return nil, false
	}
	return e.Data, true
}

// refill runs inside the flight. Freshness is checked again first: a caller
// can miss just as a previous flight settles.
func (l *Line) refill(ctx context.Context) (json.RawMessage, error) {
	if data, ok := l.fresh(ctx); ok {
		return data, nil
	}

	fetchCtx := ctx
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	var cred string
	if l.credential != nil {
		cred = l.credential(ctx)
	}

	start := l.now()
	data, err := l.fetch(fetchCtx)
	l.recorder.FetchDone(l.name, l.now().Sub(start), err)

	if err != nil {
		if rmErr := l.store.Remove(ctx, l.key); rmErr != nil {
			l.logger.Warn("session entry removal failed", "line", l.name, "error", rmErr)
		}
		l.logger.Debug("session fetch failed", "line", l.name, "error", err)
		return nil, err
	}

	// A token removed or replaced mid-fetch, possibly by another process,
	// makes the result belong to the old login.
	if l.credential != nil && l.credential(ctx) != cred {
		l.logger.Debug("credentials changed during fetch, not caching", "line", l.name)
		return data, nil
	}

	e := entry{Expire: l.now().Add(l.ttl).UnixMilli(), Data: data}
	raw, err := json.Marshal(e)
	if err == nil {
		err = l.store.Set(ctx, l.key, raw)
	}
	if err != nil {
		// The value is still good for the joiners; it just won't be reused.
		l.logger.Warn("session entry write failed", "line", l.name, "error", err)
	}
	return data, nil
}
