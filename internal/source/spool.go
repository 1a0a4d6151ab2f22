package source

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	apperr "tabsense/internal/errors"
	"tabsense/internal/util/logx"
)

const spoolBufSize = 256 * 1024

// spool copies a non-seekable stream into a temp file so rows can later be
// re-read by offset. Readers see the file grow while the copy runs.
type spool struct {
	name   string
	f      *os.File
	closer io.Closer
	cancel context.CancelFunc

	// wmu orders file writes against Close.
	wmu    sync.Mutex
	closed bool

	mu      sync.Mutex
	written int64
	done    bool
	err     error
	changed chan struct{}
}

func newSpool(ctx context.Context, name string, r io.Reader, closer io.Closer, dir string) (*spool, error) {
	f, err := os.CreateTemp(dir, "tabsense-spool-*")
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, apperr.NewSourceOpenError(name, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &spool{name: name, f: f, closer: closer, cancel: cancel, changed: make(chan struct{})}
	go s.copy(ctx, r)
	return s, nil
}

func (s *spool) copy(ctx context.Context, r io.Reader) {
	buf := make([]byte, spoolBufSize)
	for {
		if ctx.Err() != nil {
			s.stop()
			return
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if werr := s.write(buf[:n]); werr != nil {
				if ctx.Err() != nil {
					s.stop()
				} else {
					s.finish(werr)
				}
				return
			}
		}
		if rerr != nil {
			switch {
			case ctx.Err() != nil:
				// Close tore the reader down underneath us
				s.stop()
			case errors.Is(rerr, io.EOF):
				s.finish(nil)
			default:
				s.finish(rerr)
			}
			return
		}
	}
}

func (s *spool) write(p []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	if _, err := s.f.WriteAt(p, s.size()); err != nil {
		return err
	}
	s.grow(int64(len(p)))
	return nil
}

func (s *spool) size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *spool) grow(n int64) {
	s.mu.Lock()
	s.written += n
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

func (s *spool) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	if err != nil {
		s.err = apperr.NewSourceReadError(s.name, err)
		logx.Errorf("source: spool %s stopped after %d bytes: %v", s.name, s.written, err)
	} else {
		logx.Infof("source: spool %s complete, %d bytes", s.name, s.written)
	}
	close(s.changed)
}

// stop ends a copy cut short by Close.
func (s *spool) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	logx.Debugf("source: spool %s closed after %d bytes", s.name, s.written)
	close(s.changed)
}

func (s *spool) Name() string { return s.name }

func (s *spool) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *spool) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }

func (s *spool) Available() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, s.done
}

func (s *spool) Wait(ctx context.Context, have int64) error {
	for {
		s.mu.Lock()
		if s.written > have || s.done {
			s.mu.Unlock()
			return nil
		}
		ch := s.changed
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (s *spool) Close() error {
	s.cancel()
	if s.closer != nil {
		s.closer.Close()
	}
	// stdin has no closer and its copier may stay blocked in Read; once
	// closed is set it neither writes nor reports an error
	s.wmu.Lock()
	s.closed = true
	err := s.f.Close()
	s.wmu.Unlock()
	if rerr := os.Remove(s.f.Name()); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
