package app

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchedFile(t *testing.T, mod time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fundus-viewer")
	require.NoError(t, os.WriteFile(path, []byte("bin"), 0o755))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestHotReloaderMissingBinary(t *testing.T) {
	assert.Nil(t, newHotReloader(filepath.Join(t.TempDir(), "gone"), time.Second, zerolog.Nop()))
}

func TestHotReloaderDetectsNewerBinary(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	path := touchedFile(t, start)

	h := newHotReloader(path, time.Second, zerolog.Nop())
	require.NotNil(t, h)
	assert.Equal(t, path, h.ExecPath())
	assert.False(t, h.Changed())

	later := start.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.True(t, h.Changed())

	h.ResetBaseline()
	assert.False(t, h.Changed())
}

func TestHotReloaderStartFiresOnce(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	path := touchedFile(t, start)

	h := newHotReloader(path, 5*time.Millisecond, zerolog.Nop())
	require.NotNil(t, h)

	var calls atomic.Int32
	h.OnNewBinary(func() { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	later := start.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
