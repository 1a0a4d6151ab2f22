package source

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"tabsense/internal/util/logx"
)

// fileSource reads a regular file. Without follow its size is fixed at open.
type fileSource struct {
	f      *os.File
	path   string
	follow bool
	poll   time.Duration
	size   atomic.Int64

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
}

func newFileSource(f *os.File, path string, size int64, follow bool, poll time.Duration) *fileSource {
	s := &fileSource{f: f, path: path, follow: follow, poll: poll}
	s.size.Store(size)
	return s
}

func (s *fileSource) Name() string { return s.path }

func (s *fileSource) Err() error { return nil }

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }

func (s *fileSource) Available() (int64, bool) {
	if !s.follow {
		return s.size.Load(), true
	}
	return s.refresh(), false
}

// refresh re-stats a followed file. Truncation is not followed; the size
// seen so far is kept.
func (s *fileSource) refresh() int64 {
	st, err := s.f.Stat()
	if err != nil {
		return s.size.Load()
	}
	cur := s.size.Load()
	if st.Size() > cur {
		s.size.Store(st.Size())
		return st.Size()
	}
	if st.Size() < cur {
		logx.Warnf("source: %s shrank from %d to %d bytes; keeping indexed rows", s.path, cur, st.Size())
	}
	return cur
}

func (s *fileSource) Wait(ctx context.Context, have int64) error {
	if !s.follow {
		return nil
	}
	s.watchOnce.Do(func() {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			logx.Warnf("source: fsnotify unavailable, polling %s: %v", s.path, err)
			return
		}
		if err := w.Add(s.path); err != nil {
			logx.Warnf("source: cannot watch %s, polling: %v", s.path, err)
			w.Close()
			return
		}
		s.watcher = w
	})

	var events <-chan fsnotify.Event
	var errs <-chan error
	if s.watcher != nil {
		events, errs = s.watcher.Events, s.watcher.Errors
	}
	timer := time.NewTimer(s.poll)
	defer timer.Stop()
	for {
		if s.refresh() > have {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logx.Warnf("source: watch %s: %v", s.path, err)
		case <-timer.C:
			timer.Reset(s.poll)
		}
	}
}

func (s *fileSource) Close() error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	return s.f.Close()
}
