package meshcache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBehindPersistsJobs(t *testing.T) {
	dir := t.TempDir()
	s := NewWriteBehindService(WriteBehindConfig{})
	defer s.Shutdown()

	paths := make([]string, 5)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("mesh_%d.nmesh", i))
		s.Enqueue(paths[i], []byte{byte(i + 1)})
	}

	for _, p := range paths {
		p := p
		require.Eventually(t, func() bool {
			_, err := os.Stat(p)
			return err == nil
		}, 2*time.Second, 5*time.Millisecond, "expected %s to be written", p)
	}
}

func TestWriteBehindIgnoresEmptyArguments(t *testing.T) {
	s := NewWriteBehindService(WriteBehindConfig{})
	defer s.Shutdown()

	s.Enqueue("", []byte{1})
	s.Enqueue(filepath.Join(t.TempDir(), "x.nmesh"), nil)

	assert.Zero(t, s.DroppedJobs())
	assert.Zero(t, s.PendingJobs())
}

func TestWriteBehindDropsWhenQueueIsFull(t *testing.T) {
	dir := t.TempDir()
	s := NewWriteBehindService(WriteBehindConfig{})

	// Stall the worker on its first job so the queue can fill up.
	release := make(chan struct{})
	inFlight := make(chan struct{}, 1)
	s.writeFile = func(path string, data []byte) error {
		select {
		case inFlight <- struct{}{}:
		default:
		}
		<-release
		return WriteBinaryFileAtomic(path, data)
	}

	s.Enqueue(filepath.Join(dir, "stall.nmesh"), []byte{0xff})
	<-inFlight

	for i := 0; i < 40; i++ {
		s.Enqueue(filepath.Join(dir, fmt.Sprintf("mesh_%d.nmesh", i)), []byte{byte(i)})
	}

	assert.Equal(t, DefaultWriteQueueCapacity, s.PendingJobs())
	assert.Equal(t, uint64(8), s.DroppedJobs())

	close(release)
	require.NoError(t, s.Shutdown())
}

func TestWriteBehindShutdownDrainsQueue(t *testing.T) {
	dir := t.TempDir()
	s := NewWriteBehindService(WriteBehindConfig{})

	paths := make([]string, 10)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("mesh_%d.nmesh", i))
		s.Enqueue(paths[i], []byte{byte(i + 1)})
	}
	require.NoError(t, s.Shutdown())

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, "expected %s to be flushed during shutdown", p)
	}
}

func TestWriteBehindShutdownIsBoundedBySlowWrite(t *testing.T) {
	dir := t.TempDir()
	s := NewWriteBehindService(WriteBehindConfig{DrainTimeout: 100 * time.Millisecond})

	const writeDelay = 600 * time.Millisecond
	inFlight := make(chan struct{}, 1)
	s.writeFile = func(path string, data []byte) error {
		select {
		case inFlight <- struct{}{}:
		default:
		}
		time.Sleep(writeDelay)
		return WriteBinaryFileAtomic(path, data)
	}

	// One job goes in flight, the rest sit in the queue past the deadline.
	for i := 0; i < 5; i++ {
		s.Enqueue(filepath.Join(dir, fmt.Sprintf("mesh_%d.nmesh", i)), []byte{byte(i + 1)})
	}
	<-inFlight

	start := time.Now()
	require.NoError(t, s.Shutdown())
	elapsed := time.Since(start)

	// Bounded: the drain deadline plus the one in-flight write, never the
	// whole queue.
	assert.Less(t, elapsed, writeDelay+400*time.Millisecond)
	assert.GreaterOrEqual(t, s.DroppedJobs(), uint64(1), "queued jobs past the deadline must be abandoned")

	// The worker is gone; further enqueues are dropped, not queued.
	s.Enqueue(filepath.Join(dir, "late.nmesh"), []byte{1})
	assert.Zero(t, s.PendingJobs())
}

func TestWriteBehindShutdownTwice(t *testing.T) {
	s := NewWriteBehindService(WriteBehindConfig{})
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())
}

func TestWriteBehindWriteFailureDoesNotStopWorker(t *testing.T) {
	dir := t.TempDir()
	s := NewWriteBehindService(WriteBehindConfig{})
	defer s.Shutdown()

	fails := make(chan string, 1)
	s.writeFile = func(path string, data []byte) error {
		if filepath.Base(path) == "bad.nmesh" {
			fails <- path
			return fmt.Errorf("disk on fire")
		}
		return WriteBinaryFileAtomic(path, data)
	}

	s.Enqueue(filepath.Join(dir, "bad.nmesh"), []byte{1})
	s.Enqueue(filepath.Join(dir, "good.nmesh"), []byte{2})

	select {
	case <-fails:
	case <-time.After(2 * time.Second):
		t.Fatal("failing write never executed")
	}
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "good.nmesh"))
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
}
