// Package guard serializes start and submit per issue. A second operation
// on a key that is already held fails immediately instead of queueing;
// operations on different keys never contend.
package guard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/flock"
)

// entry is the per-key token. refs counts goroutines holding or trying to
// take it, so the map entry can be dropped once nobody references it.
// held mirrors mu and is read and written under Guard.mu.
type entry struct {
	mu   sync.Mutex
	refs int
	held bool
}

// Guard hands out per-key tokens.
type Guard struct {
	mu      sync.Mutex
	entries map[string]*entry

	lockDir string
	logger  zerolog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLockDir additionally takes a file lock at "<dir>/<KEY>.lock" so
// separate processes are serialized as well.
func WithLockDir(dir string) Option {
	return func(g *Guard) {
		g.lockDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// New creates a Guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		entries: make(map[string]*entry),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire takes the token for key. It never blocks: if the token is held,
// ErrSessionInFlight is returned. The returned release func is idempotent.
func (g *Guard) Acquire(key string) (func(), error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("guard key: %w", berrors.ErrEmptyValue)
	}

	e := g.ref(key)
	if !e.mu.TryLock() {
		g.unref(key, e)
		return nil, fmt.Errorf("%s: %w", key, berrors.ErrSessionInFlight)
	}
	g.setHeld(e, true)

	var lockFile *os.File
	if g.lockDir != "" {
		f, err := flock.TryLockFile(g.lockPath(key))
		if err != nil {
			g.setHeld(e, false)
			e.mu.Unlock()
			g.unref(key, e)
			if errors.Is(err, flock.ErrLocked) {
				return nil, fmt.Errorf("%s is held by another process: %w", key, berrors.ErrSessionInFlight)
			}
			return nil, err
		}
		lockFile = f
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if lockFile != nil {
				if err := flock.ReleaseFile(lockFile); err != nil {
					g.logger.Warn().Err(err).Str("issue_key", key).Msg("failed to release issue lock file")
				}
			}
			g.setHeld(e, false)
			e.mu.Unlock()
			g.unref(key, e)
		})
	}
	return release, nil
}

// held reports whether key is currently held in this process. It never
// touches the entry mutex, so it cannot make a concurrent Acquire fail.
func (g *Guard) held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	return ok && e.held
}

func (g *Guard) setHeld(e *entry, held bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.held = held
}

// size returns the number of live entries.
func (g *Guard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *Guard) ref(key string) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok {
		e = &entry{}
		g.entries[key] = e
	}
	e.refs++
	return e
}

func (g *Guard) unref(key string, e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(g.entries, key)
	}
}

// lockPath keeps the key to a single path element.
func (g *Guard) lockPath(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(g.lockDir, name+".lock")
}
