// Package index discovers row boundaries in a source on a background
// goroutine and publishes them as an append-only, read-mostly index.
package index

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"

	apperr "tabsense/internal/errors"
	"tabsense/internal/model"
	"tabsense/internal/source"
	"tabsense/internal/split"
	"tabsense/internal/util/logx"
)

const (
	DefaultChunkSize   = 256 * 1024
	DefaultMaxRowBytes = 1 << 20
)

type Options struct {
	Dialect split.Dialect
	// Header marks the first logical row as column names rather than data.
	Header bool
	// ChunkSize bounds the bytes scanned between two published snapshots.
	ChunkSize int
	// MaxRowBytes caps a logical row; longer rows are flagged and resynced at
	// the next newline. 0 disables the cap.
	MaxRowBytes int
}

// Indexer scans a source once. A single goroutine writes; any number of
// goroutines may read snapshots and extents concurrently.
type Indexer struct {
	src source.Source
	opt Options

	mu        sync.RWMutex
	starts    []int64
	ends      []int64
	flawed    *roaring.Bitmap
	header    model.Extent
	hasHeader bool
	scanned   int64
	complete  bool
	err       error
	changed   chan struct{}

	started  atomic.Bool
	done     chan struct{}
	progress rate.Sometimes
}

func New(src source.Source, opt Options) *Indexer {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = DefaultChunkSize
	}
	if opt.MaxRowBytes < 0 {
		opt.MaxRowBytes = 0
	}
	if opt.Dialect.Delimiter == 0 {
		opt.Dialect = split.DefaultDialect
	}
	return &Indexer{
		src:      src,
		opt:      opt,
		flawed:   roaring.New(),
		changed:  make(chan struct{}),
		done:     make(chan struct{}),
		progress: rate.Sometimes{Interval: time.Second},
	}
}

// Start launches the scan. Calling it more than once has no effect. The scan
// stops when the source is exhausted or ctx is cancelled.
func (ix *Indexer) Start(ctx context.Context) {
	if !ix.started.CompareAndSwap(false, true) {
		return
	}
	go ix.run(ctx)
}

// Done is closed when the scan goroutine has exited.
func (ix *Indexer) Done() <-chan struct{} { return ix.done }

func (ix *Indexer) Source() source.Source { return ix.src }

func (ix *Indexer) Dialect() split.Dialect { return ix.opt.Dialect }

func (ix *Indexer) run(ctx context.Context) {
	defer close(ix.done)
	sc := newScanner(byte(ix.opt.Dialect.Delimiter), byte(ix.opt.Dialect.Quote), ix.opt.Header, int64(ix.opt.MaxRowBytes))
	buf := make([]byte, ix.opt.ChunkSize)
	var pos int64
	started := time.Now()
	for {
		if ctx.Err() != nil {
			logx.Debugf("index: %s cancelled at %d bytes", ix.src.Name(), pos)
			return
		}
		avail, final := ix.src.Available()
		waitFrom := pos
		if pos < avail {
			want := avail - pos
			if want > int64(len(buf)) {
				want = int64(len(buf))
			}
			n, err := ix.src.ReadAt(buf[:want], pos)
			if n > 0 {
				b := sc.feed(buf[:n], pos)
				pos += int64(n)
				ix.publish(b, pos, false, nil)
				ix.progress.Do(func() {
					s := ix.Snapshot()
					logx.Debugf("index: %s rows=%d bytes=%d", ix.src.Name(), s.Rows, s.ScannedBytes)
				})
			}
			if err != nil && !errors.Is(err, io.EOF) {
				b, _ := sc.finish(pos)
				ix.publish(b, pos, true, apperr.NewSourceReadError(ix.src.Name(), err))
				return
			}
			if n > 0 {
				continue
			}
			// the source reported bytes it could not deliver; wait for more
			waitFrom = avail
		}
		if final {
			b, resume := sc.finish(pos)
			if resume >= 0 {
				logx.Debugf("index: %s unterminated quote, rescanning from %d", ix.src.Name(), resume)
				ix.publish(b, pos, false, nil)
				pos = resume
				continue
			}
			ix.publish(b, pos, true, ix.src.Err())
			s := ix.Snapshot()
			logx.Infof("index: %s complete rows=%d flawed=%d bytes=%d in %s", ix.src.Name(), s.Rows, s.FlawedRows, s.ScannedBytes, time.Since(started).Round(time.Millisecond))
			return
		}
		if err := ix.src.Wait(ctx, waitFrom); err != nil {
			return
		}
	}
}

// publish makes a batch visible together with the scan position, so a reader
// never sees a row count without the matching extents.
func (ix *Indexer) publish(b batch, scanned int64, complete bool, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if b.header != nil {
		ix.header = *b.header
		ix.hasHeader = true
	}
	base := len(ix.starts)
	ix.starts = append(ix.starts, b.starts...)
	ix.ends = append(ix.ends, b.ends...)
	for _, i := range b.flawed {
		ix.flawed.Add(uint32(base + i))
	}
	// a rescan after an unterminated quote revisits bytes already counted
	ix.scanned = max(ix.scanned, scanned)
	if err != nil && ix.err == nil {
		ix.err = err
		logx.Errorf("index: %v", err)
	}
	if complete && !ix.complete {
		ix.complete = true
	}
	close(ix.changed)
	ix.changed = make(chan struct{})
}

// Snapshot returns the current progress without waiting for the scan.
func (ix *Indexer) Snapshot() model.Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snapshotLocked()
}

func (ix *Indexer) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		Rows:         len(ix.starts),
		ScannedBytes: ix.scanned,
		Complete:     ix.complete,
		FlawedRows:   int(ix.flawed.GetCardinality()),
	}
}

// Extent returns the byte range of data row i; ok is false when the row has
// not been indexed yet.
func (ix *Indexer) Extent(i int) (model.Extent, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if i < 0 || i >= len(ix.starts) {
		return model.Extent{}, false
	}
	return model.Extent{Start: ix.starts[i], End: ix.ends[i]}, true
}

// OffsetOf returns where data row i begins.
func (ix *Indexer) OffsetOf(i int) (int64, bool) {
	e, ok := ix.Extent(i)
	return e.Start, ok
}

// Flawed reports whether row i failed structural parsing.
func (ix *Indexer) Flawed(i int) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return i >= 0 && ix.flawed.Contains(uint32(i))
}

// Header returns the header row extent once it has been scanned.
func (ix *Indexer) Header() (model.Extent, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.header, ix.hasHeader
}

// HasHeader reports whether the source was configured with a header row.
func (ix *Indexer) HasHeader() bool { return ix.opt.Header }

// Err returns the fatal read error that ended the scan, if any.
func (ix *Indexer) Err() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.err
}

// WaitRows blocks until at least n rows are indexed, the scan is complete, or
// ctx is done, and returns the snapshot it observed.
func (ix *Indexer) WaitRows(ctx context.Context, n int) (model.Snapshot, error) {
	for {
		ix.mu.RLock()
		s := ix.snapshotLocked()
		ch := ix.changed
		ix.mu.RUnlock()
		if s.Rows >= n || s.Complete {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ch:
		}
	}
}

// WaitChange blocks until the index publishes anything newer than s or ctx
// is done. It returns immediately for a complete snapshot.
func (ix *Indexer) WaitChange(ctx context.Context, s model.Snapshot) (model.Snapshot, error) {
	for {
		ix.mu.RLock()
		cur := ix.snapshotLocked()
		ch := ix.changed
		ix.mu.RUnlock()
		if cur != s || cur.Complete {
			return cur, nil
		}
		select {
		case <-ctx.Done():
			return cur, ctx.Err()
		case <-ch:
		}
	}
}
