package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// LockTimeout is the maximum time to wait for the file lock.
// Past it, operations proceed without the lock so the CLI never hangs
// behind a crashed process.
const LockTimeout = 100 * time.Millisecond

// FileStore keeps all keys in one JSON object file, guarded by an advisory
// lock shared across processes.
type FileStore struct {
	dir  string
	name string
}

// NewFileStore creates a store backed by dir/name.
func NewFileStore(dir, name string) *FileStore {
	return &FileStore{dir: dir, name: name}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, s.name)
}

func (s *FileStore) lockPath() string {
	return filepath.Join(s.dir, "."+s.name+".lock")
}

// Get returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	all, err := s.loadUnsafe()
	if err != nil {
		return nil, false, err
	}
	v, ok := all[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// Set stores value under key, replacing any previous value.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	return s.update(ctx, func(all map[string]string) bool {
		all[key] = string(value)
		return true
	})
}

// Remove deletes key.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	return s.update(ctx, func(all map[string]string) bool {
		if _, ok := all[key]; !ok {
			return false
		}
		delete(all, key)
		return true
	})
}

// update runs a read-modify-write cycle under the lock. fn reports whether
// it changed anything.
func (s *FileStore) update(ctx context.Context, fn func(map[string]string) bool) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	all, err := s.loadUnsafe()
	if err != nil {
		return err
	}
	if !fn(all) {
		return nil
	}
	return s.saveUnsafe(all)
}

// pathLocks serializes goroutines working on the same file. The advisory
// lock only fails open between processes.
var pathLocks sync.Map // path -> *sync.Mutex

func pathMutex(path string) *sync.Mutex {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// lock takes the in-process mutex for the file, then the advisory lock.
// When the advisory lock times out it proceeds with the mutex alone
// (fail-open).
func (s *FileStore) lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	mu := pathMutex(s.Path())
	mu.Lock()

	fl := flock.New(s.lockPath())

	lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		if lockCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return mu.Unlock, nil
		}
		mu.Unlock()
		return nil, err
	}
	if !locked {
		return mu.Unlock, nil
	}
	return func() {
		_ = fl.Unlock()
		mu.Unlock()
	}, nil
}

func (s *FileStore) loadUnsafe() (map[string]string, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	all := make(map[string]string)
	if err := json.Unmarshal(data, &all); err != nil {
		// A corrupt file reads as empty and is replaced on the next write.
		return make(map[string]string), nil
	}
	return all, nil
}

func (s *FileStore) saveUnsafe(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp name: writers may run without the lock after a timeout.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
