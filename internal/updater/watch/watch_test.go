package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestWatcherFlashesAfterSettle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bin")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	fc := testingclock.NewFakeClock(time.Now())
	var runs atomic.Int32
	results := make(chan error, 4)

	w := New(path, func(context.Context) error {
		runs.Add(1)
		return nil
	}, time.Second, fc)
	w.OnResult = func(err error) { results <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("v2"), 0o644)
		return fc.HasWaiters()
	}, 5*time.Second, 20*time.Millisecond)

	// Let events still queued from the writes above reach the watcher.
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, runs.Load(), "nothing is flashed before the file settles")
	fc.Step(time.Second)

	select {
	case err := <-results:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("update did not run")
	}
	assert.EqualValues(t, 1, runs.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "app.bin"), func(context.Context) error { return nil }, 0, nil)
	assert.Error(t, w.Run(context.Background()))
}
