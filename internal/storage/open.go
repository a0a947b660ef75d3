package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Session backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// File names used under the cache directory.
const (
	CredentialsFile = "credentials.json"
	SessionsFile    = "sessions.json"
)

// Options selects and configures the backends.
type Options struct {
	Dir            string
	SessionBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	// NoKeyring forces the plaintext token file even when a keyring exists.
	NoKeyring bool
	// Warn receives the plaintext fallback warning. Defaults to stderr.
	Warn io.Writer
}

// Stores holds the token and session stores.
type Stores struct {
	Tokens   Store
	Sessions Store

	usingKeyring bool
	closers      []io.Closer
}

// Open builds the stores. Tokens prefer the system keyring and fall back to
// a 0600 file. Sessions use a file or redis per SessionBackend.
func Open(ctx context.Context, opts Options) (*Stores, error) {
	if opts.Warn == nil {
		opts.Warn = os.Stderr
	}
	s := &Stores{}

	noKeyring := opts.NoKeyring || os.Getenv("SLIDES_NO_KEYRING") != ""
	if !noKeyring && KeyringAvailable() {
		s.Tokens = NewKeyringStore()
		s.usingKeyring = true
	} else {
		if !noKeyring {
			fmt.Fprintf(opts.Warn, "warning: system keyring unavailable, tokens stored in plaintext at %s\n",
				filepath.Join(opts.Dir, CredentialsFile))
		}
		s.Tokens = NewFileStore(opts.Dir, CredentialsFile)
	}

	switch opts.SessionBackend {
	case "", BackendFile:
		s.Sessions = NewFileStore(opts.Dir, SessionsFile)
	case BackendRedis:
		rs := NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", opts.RedisAddr, err)
		}
		s.Sessions = rs
		s.closers = append(s.closers, rs)
	default:
		return nil, fmt.Errorf("unknown session backend %q", opts.SessionBackend)
	}

	return s, nil
}

// UsingKeyring reports whether tokens live in the system keyring.
func (s *Stores) UsingKeyring() bool {
	return s.usingKeyring
}

// Close releases backend connections.
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
