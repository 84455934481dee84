package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// HotReloader watches the running binary and reports when a newer build
// replaces it, so a development session can offer a restart.
type HotReloader struct {
	execPath string
	interval time.Duration
	log      zerolog.Logger

	mu          sync.Mutex
	baseline    time.Time
	onNewBinary func()
}

// NewHotReloader watches the current executable. It returns nil if the
// executable cannot be located.
func NewHotReloader(interval time.Duration, logger zerolog.Logger) *HotReloader {
	execPath, err := os.Executable()
	if err != nil {
		return nil
	}
	// go build replaces the file, so follow symlinks to the real target.
	if real, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = real
	}
	return newHotReloader(execPath, interval, logger)
}

func newHotReloader(path string, interval time.Duration, logger zerolog.Logger) *HotReloader {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &HotReloader{
		execPath: path,
		interval: interval,
		log:      logger.With().Str("component", "hotreload").Logger(),
		baseline: info.ModTime(),
	}
}

// OnNewBinary sets the callback run, from the watch goroutine, when a newer
// binary is detected.
func (h *HotReloader) OnNewBinary(callback func()) {
	h.mu.Lock()
	h.onNewBinary = callback
	h.mu.Unlock()
}

// ExecPath returns the watched executable.
func (h *HotReloader) ExecPath() string {
	return h.execPath
}

// Start watches until ctx is done or a newer binary is seen. The callback
// fires at most once per Start.
func (h *HotReloader) Start(ctx context.Context) {
	h.log.Debug().Str("path", h.execPath).Dur("interval", h.interval).Msg("watching binary")
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !h.Changed() {
					continue
				}
				h.log.Info().Str("path", h.execPath).Msg("newer binary detected")
				h.mu.Lock()
				cb := h.onNewBinary
				h.mu.Unlock()
				if cb != nil {
					cb()
				}
				return
			}
		}
	}()
}

// Changed reports whether the binary was modified after the baseline.
func (h *HotReloader) Changed() bool {
	info, err := os.Stat(h.execPath)
	if err != nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return info.ModTime().After(h.baseline)
}

// ResetBaseline accepts the current binary as seen, so a declined restart
// is not offered again for the same build.
func (h *HotReloader) ResetBaseline() {
	if info, err := os.Stat(h.execPath); err == nil {
		h.mu.Lock()
		h.baseline = info.ModTime()
		h.mu.Unlock()
	}
}

// Restart replaces the current process with the watched binary, keeping
// arguments and environment. It does not return on success.
func (h *HotReloader) Restart() error {
	return syscall.Exec(h.execPath, os.Args, os.Environ())
}
