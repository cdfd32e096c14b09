package guard

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/mrz1836/berth/internal/errors"
)

func TestGuard_AcquireRelease(t *testing.T) {
	g := New()

	release, err := g.Acquire("DEMO-1")
	require.NoError(t, err)
	assert.True(t, g.held("DEMO-1"))

	_, err = g.Acquire("DEMO-1")
	require.ErrorIs(t, err, berrors.ErrSessionInFlight)

	release()
	assert.False(t, g.held("DEMO-1"))
	assert.Equal(t, 0, g.size())

	release2, err := g.Acquire("DEMO-1")
	require.NoError(t, err)
	release2()
}

func TestGuard_ReleaseIdempotent(t *testing.T) {
	g := New()
	release, err := g.Acquire("DEMO-1")
	require.NoError(t, err)

	release()
	release()

	other, err := g.Acquire("DEMO-1")
	require.NoError(t, err)
	release()
	assert.True(t, g.held("DEMO-1"), "stale release must not free a newer holder")
	other()
}

func TestGuard_DistinctKeysIndependent(t *testing.T) {
	g := New()
	r1, err := g.Acquire("DEMO-1")
	require.NoError(t, err)
	r2, err := g.Acquire("DEMO-2")
	require.NoError(t, err)
	r1()
	r2()
}

func TestGuard_EmptyKey(t *testing.T) {
	_, err := New().Acquire("  ")
	require.ErrorIs(t, err, berrors.ErrEmptyValue)
}

func TestGuard_ConcurrentSameKey(t *testing.T) {
	g := New()
	const workers = 32

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		acquired atomic.Int32
		inFlight atomic.Int32
		releases = make(chan func(), workers)
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			release, err := g.Acquire("DEMO-1")
			if err != nil {
				assert.ErrorIs(t, err, berrors.ErrSessionInFlight)
				inFlight.Add(1)
				return
			}
			acquired.Add(1)
			releases <- release
		}()
	}
	close(start)
	wg.Wait()
	close(releases)

	assert.Equal(t, int32(1), acquired.Load())
	assert.Equal(t, int32(workers-1), inFlight.Load())

	for release := range releases {
		release()
	}
	assert.Equal(t, 0, g.size())
}

func TestGuard_LockDir(t *testing.T) {
	dir := t.TempDir()

	g1 := New(WithLockDir(dir))
	g2 := New(WithLockDir(dir))

	release, err := g1.Acquire("DEMO-1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "DEMO-1.lock"))

	// A separate guard stands in for another process.
	_, err = g2.Acquire("DEMO-1")
	require.ErrorIs(t, err, berrors.ErrSessionInFlight)
	assert.Equal(t, 0, g2.size())

	release()

	release2, err := g2.Acquire("DEMO-1")
	require.NoError(t, err)
	release2()
}

func TestGuard_LockPathSanitized(t *testing.T) {
	g := New(WithLockDir("/locks"))
	assert.Equal(t, "/locks/DEMO-1.lock", g.lockPath("DEMO-1"))
	assert.Equal(t, "/locks/__etc_passwd.lock", g.lockPath("../etc/passwd"))
}

func TestGuard_HeldDoesNotBlockAcquire(t *testing.T) {
	g := New()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				_ = g.held("DEMO-1")
			}
		}
	}()

	for i := range 2000 {
		release, err := g.Acquire("DEMO-1")
		require.NoError(t, err, "acquire %d", i)
		release()
	}
	close(stop)
	<-done
	assert.False(t, g.held("DEMO-1"))
}
