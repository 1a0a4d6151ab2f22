package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	apperr "tabsense/internal/errors"
	"tabsense/internal/util/logx"
)

const sample = "id,name,score\n1,alice,10\n2,bob,4\n3,carol,9\n"

func readAll(t *testing.T, s Source) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		n, final := s.Available()
		if final {
			buf := make([]byte, n)
			_, err := s.ReadAt(buf, 0)
			if err != nil && err != io.EOF {
				require.NoError(t, err)
			}
			return string(buf)
		}
		require.NoError(t, s.Wait(ctx, n))
	}
}

func TestOpenPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := Open(context.Background(), Options{Path: path})
	require.NoError(t, err)
	defer s.Close()

	n, final := s.Available()
	assert.True(t, final)
	assert.Equal(t, int64(len(sample)), n)
	assert.Equal(t, sample, readAll(t, s))
	assert.Equal(t, path, s.Name())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "nope.csv")})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrSourceOpen))
	assert.Equal(t, apperr.ExitSourceOpen, apperr.ExitCode(err))
}

func TestOpenDirectoryFails(t *testing.T) {
	_, err := Open(context.Background(), Options{Path: t.TempDir()})
	assert.True(t, apperr.Is(err, apperr.ErrSourceOpen))
}

func TestStdinIsSpooled(t *testing.T) {
	s, err := Open(context.Background(), Options{Path: "-", Stdin: bytes.NewBufferString(sample), SpoolDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, sample, readAll(t, s))
	assert.NoError(t, s.Err())
}

func TestCloseWithBlockedStdin(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	s, err := Open(context.Background(), Options{Path: "-", Stdin: pr, SpoolDir: t.TempDir()})
	require.NoError(t, err)

	_, err = pw.Write([]byte("a,b\n"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// the copier is still parked in Read; wake it after the file is gone
	go pw.Write([]byte("1,2\n"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx, 1<<40))
	_, final := s.Available()
	assert.True(t, final)
	assert.NoError(t, s.Err())
	assert.NotContains(t, logx.Dump(), "spool stdin stopped")
}

func TestCompressedSources(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, wrap func(io.Writer) io.WriteCloser) string {
		var buf bytes.Buffer
		w := wrap(&buf)
		_, err := w.Write([]byte(sample))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
		return p
	}
	paths := []string{
		write("a.csv.gz", func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }),
		write("a.csv.zst", func(w io.Writer) io.WriteCloser {
			zw, err := zstd.NewWriter(w)
			require.NoError(t, err)
			return zw
		}),
		write("a.csv.lz4", func(w io.Writer) io.WriteCloser { return lz4.NewWriter(w) }),
	}
	for _, p := range paths {
		t.Run(filepath.Ext(p), func(t *testing.T) {
			s, err := Open(context.Background(), Options{Path: p, SpoolDir: dir})
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, sample, readAll(t, s))
		})
	}
}

func TestCorruptGzipFailsToOpen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.csv.gz")
	require.NoError(t, os.WriteFile(p, []byte("not gzip at all"), 0o644))
	_, err := Open(context.Background(), Options{Path: p})
	assert.True(t, apperr.Is(err, apperr.ErrSourceOpen))
}

func TestFollowSeesGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))

	s, err := Open(context.Background(), Options{Path: path, Follow: true, PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	n, final := s.Available()
	assert.False(t, final)
	assert.Equal(t, int64(4), n)

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		f.WriteString("1,2\n")
		f.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx, n))
	n2, _ := s.Available()
	assert.Equal(t, int64(8), n2)
}

func TestFollowWaitHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))
	s, err := Open(context.Background(), Options{Path: path, Follow: true, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx, 2), context.DeadlineExceeded)
}

func TestTranscodedFileIsSpooled(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	wide, err := enc.NewEncoder().Bytes([]byte(sample))
	require.NoError(t, err)
	dir := t.TempDir()
	p := filepath.Join(dir, "wide.csv")
	require.NoError(t, os.WriteFile(p, wide, 0o644))

	s, err := Open(context.Background(), Options{Path: p, SpoolDir: dir, Transcode: enc.NewDecoder()})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, sample, readAll(t, s))
}
