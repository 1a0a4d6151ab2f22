// Package source opens the byte stream behind a table as a ReaderAt that may
// still be growing: a plain file, a followed file, or a spooled stream.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/transform"

	apperr "tabsense/internal/errors"
	"tabsense/internal/util/logx"
)

// Source is random-access input whose readable size may grow over time.
type Source interface {
	io.ReaderAt
	// Available reports how many bytes can be read now and whether that number
	// is final.
	Available() (n int64, final bool)
	// Wait blocks until more than have bytes are available, the source becomes
	// final, or ctx is done.
	Wait(ctx context.Context, have int64) error
	Name() string
	// Err reports a failure that stopped the source from growing.
	Err() error
	Close() error
}

type Options struct {
	// Path of the file; "" or "-" reads Stdin.
	Path   string
	Stdin  io.Reader
	Follow bool
	// PollInterval bounds how long a followed file waits between size checks
	// when no change event arrives.
	PollInterval time.Duration
	// SpoolDir holds temp files for streams; "" uses os.TempDir.
	SpoolDir string
	// Transcode, when set, converts the stream to UTF-8 before it is spooled.
	// It is needed for encodings whose newline is not a single byte.
	Transcode transform.Transformer
}

func IsStdin(path string) bool { return path == "" || path == "-" }

// Open returns a Source for opt. Failures are SourceOpen errors.
func Open(ctx context.Context, opt Options) (Source, error) {
	if opt.PollInterval <= 0 {
		opt.PollInterval = time.Second
	}
	if IsStdin(opt.Path) {
		in := opt.Stdin
		if in == nil {
			in = os.Stdin
		}
		return newSpool(ctx, "stdin", transcode(in, opt.Transcode), nil, opt.SpoolDir)
	}

	f, err := os.Open(opt.Path)
	if err != nil {
		return nil, apperr.NewSourceOpenError(opt.Path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperr.NewSourceOpenError(opt.Path, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, apperr.NewSourceOpenError(opt.Path, apperr.New("is a directory"))
	}

	if codec := compressionOf(opt.Path); codec != "" {
		if opt.Follow {
			logx.Warnf("source: --follow ignored for compressed %s", opt.Path)
		}
		rc, err := decompress(codec, f)
		if err != nil {
			f.Close()
			return nil, apperr.NewSourceOpenError(opt.Path, err)
		}
		logx.Infof("source: spooling %s stream from %s", codec, opt.Path)
		return newSpool(ctx, opt.Path, transcode(rc, opt.Transcode), multiCloser{rc, f}, opt.SpoolDir)
	}
	if opt.Transcode != nil {
		if opt.Follow {
			logx.Warnf("source: --follow ignored for transcoded %s", opt.Path)
		}
		return newSpool(ctx, opt.Path, transcode(f, opt.Transcode), f, opt.SpoolDir)
	}

	return newFileSource(f, opt.Path, st.Size(), opt.Follow, opt.PollInterval), nil
}

func compressionOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return "gzip"
	case ".zst", ".zstd":
		return "zstd"
	case ".lz4":
		return "lz4"
	}
	return ""
}

func decompress(codec string, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case "gzip":
		return gzip.NewReader(r)
	case "zstd":
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case "lz4":
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return io.NopCloser(r), nil
}

func transcode(r io.Reader, t transform.Transformer) io.Reader {
	if t == nil {
		return r
	}
	return transform.NewReader(r, t)
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
