package wal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/log"
	"github.com/strata-db/strata/pkg/metrics"
)

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("wal: create dir %s: %w", dir, err)
	}
	return nil
}

var walLog = log.WithComponent("wal")

// WAL is the segmented durability layer. A single writer serializes every
// append through appendMu; readers only ever run during recovery, which
// happens before the WAL accepts any writer.
type WAL struct {
	dir       string
	mode      config.DurabilityMode
	threshold int64

	appendMu sync.Mutex
	cur      *segment
	nextSeg  uint64

	bufferedInterval time.Duration
	bufferedBytes    int
	pendingBytes     int
	stopCh           chan struct{}
	wg               sync.WaitGroup
}

// Open opens (or creates) the WAL directory and positions it for appends at
// the end of the newest existing segment, or at a fresh segment 0 in an
// empty directory. Recovery must run before Open is
// called in a fresh process — Open itself does not replay.
func Open(dir string, cfg config.Config) (*WAL, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	nums, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	w := &WAL{
		dir:              dir,
		mode:             cfg.Durability,
		threshold:        DefaultSegmentThreshold,
		bufferedInterval: cfg.BufferedInterval,
		bufferedBytes:    cfg.BufferedBytes,
		stopCh:           make(chan struct{}),
	}

	if len(nums) == 0 {
		seg, err := createSegment(dir, 0)
		if err != nil {
			return nil, err
		}
		w.cur = seg
		w.nextSeg = 1
	} else {
		last := nums[len(nums)-1]
		seg, err := openSegmentForAppend(dir, last)
		if err != nil {
			return nil, err
		}
		w.cur = seg
		w.nextSeg = last + 1
	}

	if w.mode == config.Buffered && w.bufferedInterval > 0 {
		w.wg.Add(1)
		go w.bufferedFlushLoop()
	}

	return w, nil
}

// Append appends a single entry and applies the durability mode's fsync
// policy. Used for Begin/Abort/BranchMeta/Checkpoint, which never need
// group-commit batching.
func (w *WAL) Append(e Entry) error {
	return w.AppendBatch([]Entry{e})
}

// AppendBatch appends every entry in order under one lock acquisition and,
// in Strict mode, one fsync. The controller passes one transaction's
// Begin..Commit run per call while holding its commit mutex, so each
// committing transaction gets its own flush; concurrent commits are not
// merged into a shared one.
func (w *WAL) AppendBatch(entries []Entry) error {
	w.appendMu.Lock()
	defer w.appendMu.Unlock()

	for _, e := range entries {
		framed := Frame(e)
		if w.cur.size+int64(len(framed)) > w.threshold {
			if err := w.rollLocked(); err != nil {
				return err
			}
		}
		if err := w.cur.append(framed); err != nil {
			return err
		}
		metrics.WALAppendsTotal.Inc()
		w.pendingBytes += len(framed)
	}

	switch w.mode {
	case config.Strict:
		return w.syncLocked()
	case config.Buffered:
		if w.pendingBytes >= w.bufferedBytes {
			return w.syncLocked()
		}
		return nil
	case config.None:
		return nil
	default:
		return w.syncLocked()
	}
}

func (w *WAL) syncLocked() error {
	timer := metrics.NewTimer()
	if err := w.cur.sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	timer.ObserveDuration(metrics.WALFsyncDuration)
	metrics.WALFsyncsTotal.Inc()
	w.pendingBytes = 0
	return nil
}

func (w *WAL) rollLocked() error {
	if err := w.cur.sync(); err != nil {
		return fmt.Errorf("wal: fsync before roll: %w", err)
	}
	if err := w.cur.close(); err != nil {
		return fmt.Errorf("wal: close segment before roll: %w", err)
	}
	seg, err := createSegment(w.dir, w.nextSeg)
	if err != nil {
		return err
	}
	w.cur = seg
	w.nextSeg++
	metrics.WALSegmentsTotal.Inc()
	return nil
}

func (w *WAL) bufferedFlushLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.bufferedInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.appendMu.Lock()
			if w.pendingBytes > 0 {
				if err := w.syncLocked(); err != nil {
					walLog.Error().Err(err).Msg("buffered wal flush failed")
				}
			}
			w.appendMu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

// Close flushes and closes the current segment, stopping any buffered
// flush goroutine.
func (w *WAL) Close() error {
	close(w.stopCh)
	w.wg.Wait()

	w.appendMu.Lock()
	defer w.appendMu.Unlock()
	if err := w.cur.sync(); err != nil {
		return fmt.Errorf("wal: final fsync: %w", err)
	}
	return w.cur.close()
}

// SegmentDir returns the directory backing this WAL, for snapshot/recovery
// callers that need to enumerate segments directly.
func (w *WAL) SegmentDir() string { return w.dir }

// Sync forces an fsync of the current segment regardless of durability
// mode, for the session's explicit Flush command.
func (w *WAL) Sync() error {
	w.appendMu.Lock()
	defer w.appendMu.Unlock()
	return w.syncLocked()
}
