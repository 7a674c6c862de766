package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/ports"
	"github.com/rs/zerolog"
)

// ArchiveRecorder buffers cost records and writes them in batches to the archive.
type ArchiveRecorder struct {
	archive       ports.CostArchive
	buffer        []cost.Record
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	logger        zerolog.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewArchiveRecorder creates a new archive recorder.
func NewArchiveRecorder(archive ports.CostArchive, batchSize int, flushInterval time.Duration, logger zerolog.Logger) *ArchiveRecorder {
	if batchSize == 0 {
		batchSize = 100
	}
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}

	r := &ArchiveRecorder{
		archive:       archive,
		buffer:        make([]cost.Record, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Record queues a cost record for archival.
func (r *ArchiveRecorder) Record(rec cost.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, rec)

	if len(r.buffer) >= r.batchSize {
		r.flushLocked()
	}
}

// Flush forces immediate archival of queued records.
func (r *ArchiveRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	return nil
}

func (r *ArchiveRecorder) flushLocked() {
	if len(r.buffer) == 0 {
		return
	}

	records := make([]cost.Record, len(r.buffer))
	copy(records, r.buffer)
	r.buffer = r.buffer[:0]

	// Write in background to not block the recording path. The goroutine
	// joins the WaitGroup so Close waits for it before the DB goes away.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.archive.RecordBatch(ctx, records); err != nil {
			r.logger.Error().Err(err).
				Int("records", len(records)).
				Msg("cost archive batch write failed")
		}
	}()
}

func (r *ArchiveRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder, waits for in-flight batch writes, and flushes
// remaining records.
func (r *ArchiveRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		// Final flush with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r.mu.Lock()
		defer r.mu.Unlock()

		if len(r.buffer) > 0 {
			err = r.archive.RecordBatch(ctx, r.buffer)
		}
	})
	return err
}

// Ensure interface compliance.
var _ ports.CostRecorder = (*ArchiveRecorder)(nil)
