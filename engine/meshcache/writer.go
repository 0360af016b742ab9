package meshcache

import (
	"sync"
	"time"

	"github.com/Panbok/nuri/engine/containers"
	"github.com/Panbok/nuri/engine/core"
)

const (
	/** @brief Default bound on pending write jobs. Enqueues beyond it are dropped. */
	DefaultWriteQueueCapacity = 32
	/** @brief Default bound on how long Shutdown waits for the queue to drain. */
	DefaultDrainTimeout = 500 * time.Millisecond
)

/** @brief A pending cache write. Owned by the queue until the worker consumes it. */
type WriteJob struct {
	DestinationPath string
	FileBytes       []byte
}

/** @brief The configuration for a write-behind service. */
type WriteBehindConfig struct {
	/** @brief Maximum queued jobs before enqueues are dropped. Defaults to DefaultWriteQueueCapacity. */
	QueueCapacity int
	/** @brief How long Shutdown waits for pending writes before abandoning them. Defaults to DefaultDrainTimeout. */
	DrainTimeout time.Duration
}

/**
 * @brief Persists serialized cache payloads off the caller's goroutine.
 * One worker, a bounded queue, and a bounded-time drain at shutdown.
 * Construct with NewWriteBehindService and pass by reference; the service
 * owns its worker for its whole lifetime.
 */
type WriteBehindService struct {
	mu            sync.Mutex
	workAvailable *sync.Cond
	drained       *sync.Cond
	jobs          *containers.RingQueue[WriteJob]
	stopping      bool
	writeInFlight bool
	droppedJobs   uint64

	queueCapacity int
	drainTimeout  time.Duration
	done          chan struct{}

	// Swapped in tests to stall or fail the worker deterministically.
	writeFile func(path string, data []byte) error
}

// NewWriteBehindService starts the worker goroutine immediately. Call
// Shutdown exactly once when the service is no longer needed.
func NewWriteBehindService(config WriteBehindConfig) *WriteBehindService {
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultWriteQueueCapacity
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}

	s := &WriteBehindService{
		jobs:          containers.NewRingQueue[WriteJob](config.QueueCapacity),
		queueCapacity: config.QueueCapacity,
		drainTimeout:  config.DrainTimeout,
		done:          make(chan struct{}),
		writeFile:     WriteBinaryFileAtomic,
	}
	s.workAvailable = sync.NewCond(&s.mu)
	s.drained = sync.NewCond(&s.mu)

	go s.worker()

	return s
}

// Enqueue hands a serialized payload to the worker and returns immediately.
// Empty arguments are ignored. If the service is stopping or the queue is
// full the job is dropped with a warning; callers must tolerate cache-write
// loss under overload.
func (s *WriteBehindService) Enqueue(destinationPath string, fileBytes []byte) {
	if destinationPath == "" || len(fileBytes) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		s.droppedJobs++
		core.LogWarn("mesh cache write-behind is shutting down, dropping write of '%s'", destinationPath)
		return
	}
	if s.jobs.IsFull() {
		s.droppedJobs++
		core.LogWarn("mesh cache write-behind queue is full (%d pending), dropping write of '%s'", s.jobs.Len(), destinationPath)
		return
	}

	s.jobs.Enqueue(WriteJob{DestinationPath: destinationPath, FileBytes: fileBytes})
	s.workAvailable.Signal()
}

// DroppedJobs reports how many enqueues have been dropped due to overload
// or shutdown.
func (s *WriteBehindService) DroppedJobs() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedJobs
}

// QueueCapacity reports the bound on pending jobs.
func (s *WriteBehindService) QueueCapacity() int {
	return s.queueCapacity
}

// PendingJobs reports the current queue depth.
func (s *WriteBehindService) PendingJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs.Len()
}

// Shutdown stops the worker, waiting up to the drain timeout for queued
// writes to finish. Jobs still queued at the deadline are discarded; an
// in-flight write is always allowed to complete so the worker can be
// joined. Safe to call more than once.
func (s *WriteBehindService) Shutdown() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.stopping = true
	s.workAvailable.Signal()

	deadlineHit := false
	timer := time.AfterFunc(s.drainTimeout, func() {
		s.mu.Lock()
		deadlineHit = true
		s.drained.Broadcast()
		s.mu.Unlock()
	})

	for (!s.jobs.IsEmpty() || s.writeInFlight) && !deadlineHit {
		s.drained.Wait()
	}
	timer.Stop()

	if !s.jobs.IsEmpty() {
		abandoned := s.jobs.Len()
		s.jobs.Clear()
		s.droppedJobs += uint64(abandoned)
		core.LogWarn("mesh cache write-behind drain timed out, abandoning %d queued write(s)", abandoned)
		s.workAvailable.Signal()
	}
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *WriteBehindService) worker() {
	s.mu.Lock()
	for {
		for !s.stopping && s.jobs.IsEmpty() {
			s.workAvailable.Wait()
		}
		if s.jobs.IsEmpty() {
			// Only reachable while stopping.
			s.drained.Broadcast()
			break
		}

		job, _ := s.jobs.Dequeue()
		s.writeInFlight = true
		s.mu.Unlock()

		// The write runs with no lock held so producers are never stalled
		// by disk latency.
		err := s.writeFile(job.DestinationPath, job.FileBytes)

		s.mu.Lock()
		s.writeInFlight = false
		if err != nil && !s.stopping {
			core.LogWarn("mesh cache write to '%s' failed: %v", job.DestinationPath, err)
		}
		if s.jobs.IsEmpty() {
			s.drained.Broadcast()
		}
	}
	s.mu.Unlock()
	close(s.done)
}
