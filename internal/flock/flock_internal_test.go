//go:build unix

package flock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContended(t *testing.T) {
	t.Parallel()

	assert.True(t, contended(syscall.EWOULDBLOCK))
	assert.True(t, contended(syscall.EAGAIN))
	assert.True(t, contended(fmt.Errorf("flock: %w", syscall.EWOULDBLOCK)))

	assert.False(t, contended(syscall.EBADF))
	assert.False(t, contended(syscall.ENOLCK))
	assert.False(t, contended(nil))
}

// Not parallel: the closed descriptor number must not be reused mid-test.
func TestExclusive_BadDescriptorIsNotContention(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "closed.lock"))
	require.NoError(t, err)
	fd := f.Fd()
	require.NoError(t, f.Close())

	err = Exclusive(fd)
	require.Error(t, err)
	assert.False(t, contended(err))
}
