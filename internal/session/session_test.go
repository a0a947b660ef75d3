package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type endpoint struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (json.RawMessage, error)
}

func (e *endpoint) call(ctx context.Context) (json.RawMessage, error) {
	e.calls.Add(1)
	if e.fn == nil {
		return nil, errors.New("no handler")
	}
	return e.fn(ctx)
}

func (e *endpoint) returns(body string) {
	e.fn = func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	}
}

func (e *endpoint) fails(err error) {
	e.fn = func(context.Context) (json.RawMessage, error) {
		return nil, err
	}
}

// blockUntil makes the endpoint wait on gate before answering with body.
func (e *endpoint) blockUntil(gate <-chan struct{}, body string) {
	e.fn = func(ctx context.Context) (json.RawMessage, error) {
		select {
		case <-gate:
			return json.RawMessage(body), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type fakeFetcher struct {
	user, admin, system endpoint
}

func (f *fakeFetcher) AuthMe(ctx context.Context) (json.RawMessage, error) {
	return f.user.call(ctx)
}

func (f *fakeFetcher) AdminMe(ctx context.Context) (json.RawMessage, error) {
	return f.admin.call(ctx)
}

func (f *fakeFetcher) SystemConfig(ctx context.Context) (json.RawMessage, error) {
	return f.system.call(ctx)
}

type fixture struct {
	cache   *Cache
	fetcher *fakeFetcher
	clock   *fakeClock
	store   *storage.FileStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		fetcher: &fakeFetcher{},
		clock:   newFakeClock(),
		store:   storage.NewFileStore(t.TempDir(), storage.SessionsFile),
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.cache = New(f.fetcher, f.store, opts...)
	return f
}

func (f *fixture) entryExists(t *testing.T, key string) bool {
	t.Helper()
	_, found, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return found
}

func TestCheckSessionSingleFlight(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.fetcher.user.blockUntil(gate, `{"id":"1","username":"a"}`)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := f.cache.CheckSession(context.Background())
			assert.NoError(t, err)
			if assert.NotNil(t, u) {
				results[i] = u.Username
			}
		}()
	}

	require.Eventually(t, func() bool { return f.fetcher.user.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.fetcher.user.calls.Load(), "expected exactly one fetch")
	for _, name := range results {
		assert.Equal(t, "a", name)
	}
	assert.True(t, f.cache.LoggedIn())
}

func TestCheckSessionTTL(t *testing.T) {
	f := newFixture(t)
	f.fetcher.user.returns(`{"id":"1","username":"a"}`)
	ctx := context.Background()

	u, err := f.cache.CheckSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "1", u.ID)
	assert.Equal(t, int32(1), f.fetcher.user.calls.Load())

	f.clock.Advance(1 * time.Second)
	u, err = f.cache.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", u.Username)
	assert.Equal(t, int32(1), f.fetcher.user.calls.Load(), "served from cache inside the TTL")

	f.clock.Advance(2 * time.Second) // exactly T+ttl
	_, err = f.cache.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.fetcher.user.calls.Load(), "T+ttl is expired")

	f.clock.Advance(4 * time.Second)
	_, err = f.cache.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.fetcher.user.calls.Load())
}

func TestCheckSessionFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fetcher.user.returns(`{"id":"1","username":"a"}`)
	_, err := f.cache.CheckSession(ctx)
	require.NoError(t, err)
	require.True(t, f.cache.LoggedIn())
	require.True(t, f.entryExists(t, auth.UserSessionKey))

	f.clock.Advance(UserTTL)
	f.fetcher.user.fails(output.ErrAuth("Please log in first"))

	u, err := f.cache.CheckSession(ctx)
	assert.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, f.cache.LoggedIn())
	assert.False(t, f.entryExists(t, auth.UserSessionKey), "failed refill must purge the entry")
}

func TestCheckAdminSessionConcurrentFailure(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.fetcher.admin.fn = func(ctx context.Context) (json.RawMessage, error) {
		<-gate
		return nil, output.ErrAPI(500, "Internal Server Error")
	}

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := f.cache.CheckAdminSession(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return f.fetcher.admin.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)

	for range 2 {
		err := <-errs
		require.Error(t, err)
		assert.Equal(t, 500, output.AsError(err).HTTPStatus)
	}
	assert.False(t, f.entryExists(t, auth.AdminSessionKey))
}

func TestCheckAdminSessionSuccess(t *testing.T) {
	f := newFixture(t)
	f.fetcher.admin.returns(`{"id":"adm","username":"root"}`)

	a, err := f.cache.CheckAdminSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "root", a.Username)
	assert.True(t, f.entryExists(t, auth.AdminSessionKey))
}

func TestSystemInfo(t *testing.T) {
	f := newFixture(t)
	f.fetcher.system.returns(`{"title":"Slides","register_enabled":true}`)
	ctx := context.Background()

	cfg, err := f.cache.SystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Slides", cfg["title"])

	f.clock.Advance(29 * time.Second)
	_, err = f.cache.SystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.fetcher.system.calls.Load())

	f.clock.Advance(time.Second)
	f.fetcher.system.fails(errors.New("boom"))
	_, err = f.cache.SystemInfo(ctx)
	assert.EqualError(t, err, "boom")
	assert.False(t, f.entryExists(t, auth.SystemSessionKey))
	assert.Equal(t, int32(2), f.fetcher.system.calls.Load())
}

func TestLinesAreIndependent(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	defer close(gate)
	f.fetcher.user.blockUntil(gate, `{"id":"1"}`)
	f.fetcher.admin.returns(`{"id":"adm","username":"root"}`)

	go func() { _, _ = f.cache.CheckSession(context.Background()) }()
	require.Eventually(t, func() bool { return f.fetcher.user.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a, err := f.cache.CheckAdminSession(ctx)
	require.NoError(t, err, "admin line must not wait on the user line")
	assert.Equal(t, "root", a.Username)
	assert.Equal(t, int32(1), f.fetcher.admin.calls.Load())
}

func TestTokenRemovalCascades(t *testing.T) {
	t.Setenv("SLIDES_TOKEN", "")
	f := newFixture(t)
	f.fetcher.user.returns(`{"id":"1","username":"a"}`)
	ctx := context.Background()
	tokens := auth.NewTokenStore(storage.NewFileStore(t.TempDir(), storage.CredentialsFile), f.store)
	require.NoError(t, tokens.Set(ctx, auth.User, "tok"))

	_, err := f.cache.CheckSession(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.fetcher.user.calls.Load())

	require.NoError(t, tokens.Remove(ctx, auth.User))

	_, err = f.cache.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.fetcher.user.calls.Load(), "removal must force a refetch inside the TTL")
}

func TestLogoutDuringFetchIsNotCached(t *testing.T) {
	t.Setenv("SLIDES_TOKEN", "")
	f := newFixture(t)
	ctx := context.Background()
	tokens := auth.NewTokenStore(storage.NewFileStore(t.TempDir(), storage.CredentialsFile), f.store)
	require.NoError(t, tokens.Set(ctx, auth.User, "tok"))
	f.cache = New(f.fetcher, f.store, WithClock(f.clock.Now), WithTokens(tokens))

	gate := make(chan struct{})
	f.fetcher.user.blockUntil(gate, `{"id":"1","username":"a"}`)

	done := make(chan *models.User)
	go func() {
		u, _ := f.cache.CheckSession(ctx)
		done <- u
	}()
	require.Eventually(t, func() bool { return f.fetcher.user.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, tokens.Remove(ctx, auth.User))
	close(gate)

	// The caller that started before logout still gets its answer.
	assert.NotNil(t, <-done)
	assert.False(t, f.entryExists(t, auth.UserSessionKey), "identity fetched with the old token must not be stored")

	_, err := f.cache.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.fetcher.user.calls.Load(), "next check must refetch")
}

func TestLoginDuringAdminFetchIsNotCached(t *testing.T) {
	t.Setenv("SLIDES_TOKEN", "")
	t.Setenv("SLIDES_ADMIN_TOKEN", "")
	f := newFixture(t)
	ctx := context.Background()
	tokens := auth.NewTokenStore(storage.NewFileStore(t.TempDir(), storage.CredentialsFile), f.store)
	require.NoError(t, tokens.Set(ctx, auth.User, "tok"))
	f.cache = New(f.fetcher, f.store, WithClock(f.clock.Now), WithTokens(tokens))

	gate := make(chan struct{})
	f.fetcher.admin.blockUntil(gate, `{"id":"1","username":"root"}`)

	done := make(chan error)
	go func() {
		_, err := f.cache.CheckAdminSession(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.fetcher.admin.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, tokens.Set(ctx, auth.Admin, "Bearer adm"))
	close(gate)
	require.NoError(t, <-done)
	assert.False(t, f.entryExists(t, auth.AdminSessionKey))
}

func TestFetchWithUnchangedTokenIsCached(t *testing.T) {
	t.Setenv("SLIDES_TOKEN", "")
	f := newFixture(t)
	ctx := context.Background()
	tokens := auth.NewTokenStore(storage.NewFileStore(t.TempDir(), storage.CredentialsFile), f.store)
	require.NoError(t, tokens.Set(ctx, auth.User, "tok"))
	f.cache = New(f.fetcher, f.store, WithClock(f.clock.Now), WithTokens(tokens))
	f.fetcher.user.returns(`{"id":"1","username":"a"}`)

	_, err := f.cache.CheckSession(ctx)
	require.NoError(t, err)
	assert.True(t, f.entryExists(t, auth.UserSessionKey))
}

func TestCallerCancellationLeavesFlightRunning(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.fetcher.admin.blockUntil(gate, `{"id":"adm","username":"root"}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.cache.CheckAdminSession(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.fetcher.admin.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(gate)
	require.Eventually(t, func() bool {
		_, found, err := f.store.Get(context.Background(), auth.AdminSessionKey)
		return err == nil && found
	}, time.Second, 5*time.Millisecond, "the detached fetch should still persist")

	a, err := f.cache.CheckAdminSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "root", a.Username)
	assert.Equal(t, int32(1), f.fetcher.admin.calls.Load())
}

func TestCheckSessionReturnsCallerContextError(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	defer close(gate)
	f.fetcher.user.blockUntil(gate, `{"id":"1"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	u, err := f.cache.CheckSession(ctx)
	assert.Nil(t, u)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchTimeout(t *testing.T) {
	f := newFixture(t, WithFetchTimeout(20*time.Millisecond))
	never := make(chan struct{})
	f.fetcher.admin.blockUntil(never, `{}`)

	_, err := f.cache.CheckAdminSession(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.entryExists(t, auth.AdminSessionKey))
}

func TestEntrySurvivesNewCache(t *testing.T) {
	f := newFixture(t)
	f.fetcher.user.returns(`{"id":"1","username":"a"}`)
	ctx := context.Background()

	_, err := f.cache.CheckSession(ctx)
	require.NoError(t, err)

	other := &fakeFetcher{}
	fresh := New(other, f.store, WithClock(f.clock.Now))
	u, err := fresh.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", u.Username)
	assert.Equal(t, int32(0), other.user.calls.Load(), "a new process reads the durable entry")
}

func TestDurableEntryFormat(t *testing.T) {
	f := newFixture(t)
	f.fetcher.user.returns(`{"id":"1"}`)

	_, err := f.cache.CheckSession(context.Background())
	require.NoError(t, err)

	raw, found, err := f.store.Get(context.Background(), auth.UserSessionKey)
	require.NoError(t, err)
	require.True(t, found)

	var e struct {
		Expire int64           `json:"expire"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, f.clock.Now().Add(UserTTL).UnixMilli(), e.Expire)
	assert.JSONEq(t, `{"id":"1"}`, string(e.Data))
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	f.fetcher.system.returns(`{"a":1}`)
	ctx := context.Background()

	_, err := f.cache.SystemInfo(ctx)
	require.NoError(t, err)
	require.NoError(t, f.cache.Invalidate(ctx, SystemLine))
	assert.False(t, f.entryExists(t, auth.SystemSessionKey))

	assert.Error(t, f.cache.Invalidate(ctx, "nope"))
}

func TestExpiry(t *testing.T) {
	f := newFixture(t)
	f.fetcher.system.returns(`{"a":1}`)
	ctx := context.Background()
	line := f.cache.Line(SystemLine)

	_, ok, err := line.Expiry(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	start := f.clock.Now()
	_, err = f.cache.SystemInfo(ctx)
	require.NoError(t, err)

	expires, ok, err := line.Expiry(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start.Add(SystemTTL).UnixMilli(), expires.UnixMilli())

	f.clock.Advance(SystemTTL)
	_, ok, err = line.Expiry(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), f.fetcher.system.calls.Load(), "Expiry never fetches")
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t)
	f.fetcher.admin.fails(output.ErrAuth("Please log in first"))

	_, err := f.cache.RequireAdmin(context.Background())
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeAuth, e.Code)
	assert.Equal(t, "Run: slides admin login", e.Hint)
}

func TestRequireAdminMapsEveryFetchFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", output.ErrNetwork(errors.New("connection refused"))},
		{"rate limit", output.ErrRateLimit()},
		{"deadline", context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fetcher.admin.fails(tt.err)

			_, err := f.cache.RequireAdmin(context.Background())
			require.Error(t, err)
			e := output.AsError(err)
			assert.Equal(t, output.CodeAuth, e.Code)
			assert.Equal(t, "Run: slides admin login", e.Hint)
			assert.Contains(t, e.Message, "Admin login required: ")
			if tt.name == "network" {
				assert.Contains(t, e.Message, "connection refused")
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRequireAdminPassesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.fetcher.admin.fails(output.ErrNetwork(errors.New("connection refused")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.cache.RequireAdmin(ctx)
	require.Error(t, err)
	assert.NotEqual(t, "Run: slides admin login", output.AsError(err).Hint)
}

type countingRecorder struct {
	mu      sync.Mutex
	hits    int
	misses  int
	fetches int
	failed  int
}

func (r *countingRecorder) CacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) FetchDone(_ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if err != nil {
		r.failed++
	}
}

func TestRecorder(t *testing.T) {
	rec := &countingRecorder{}
	f := newFixture(t, WithRecorder(rec))
	f.fetcher.user.returns(`{"id":"1"}`)
	ctx := context.Background()

	_, _ = f.cache.CheckSession(ctx)
	_, _ = f.cache.CheckSession(ctx)

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.fetches)
	assert.Equal(t, 0, rec.failed)
}
