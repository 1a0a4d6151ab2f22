package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Level = logrus.Level

const (
	Debug = logrus.DebugLevel
	Info  = logrus.InfoLevel
	Warn  = logrus.WarnLevel
	Error = logrus.ErrorLevel
)

var (
	logger = newLogger()
	ring   = &ringHook{max: 500}
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	// default to no stderr output to avoid breaking TUIs; enable via TABSENSE_LOG_STDERR=1
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return l
}

func init() { logger.AddHook(ring) }

// ringHook keeps the last max formatted lines so they can be dumped after a failure.
type ringHook struct {
	mu  sync.Mutex
	buf []string
	max int
}

func (h *ringHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *ringHook) Fire(e *logrus.Entry) error {
	line := fmt.Sprintf("%s %-5s %s", e.Time.Format("2006-01-02T15:04:05.000Z07:00"), strings.ToUpper(e.Level.String()), e.Message)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) >= h.max {
		// drop oldest
		copy(h.buf[0:], h.buf[1:])
		h.buf = h.buf[:len(h.buf)-1]
	}
	h.buf = append(h.buf, line)
	return nil
}

func SetLevel(l Level) { logger.SetLevel(l) }

func Enabled(l Level) bool { return logger.IsLevelEnabled(l) }

func SetOutput(w io.Writer) { logger.SetOutput(w) }

func SetLevelFromEnv() {
	lv := strings.ToLower(strings.TrimSpace(os.Getenv("TABSENSE_LOG_LEVEL")))
	switch lv {
	case "debug":
		SetLevel(Debug)
	case "info":
		SetLevel(Info)
	case "warn", "warning":
		SetLevel(Warn)
	case "error":
		SetLevel(Error)
	}
	var outs []io.Writer
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("TABSENSE_LOG_STDERR"))); v != "" && v != "0" && v != "false" && v != "no" {
		outs = append(outs, os.Stderr)
	}
	if p := strings.TrimSpace(os.Getenv("TABSENSE_LOG_FILE")); p != "" {
		if f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			outs = append(outs, f)
		}
	}
	switch len(outs) {
	case 0:
	case 1:
		SetOutput(outs[0])
	default:
		SetOutput(io.MultiWriter(outs...))
	}
}

func Debugf(format string, a ...any) { logger.Debugf(format, a...) }
func Infof(format string, a ...any)  { logger.Infof(format, a...) }
func Warnf(format string, a ...any)  { logger.Warnf(format, a...) }
func Errorf(format string, a ...any) { logger.Errorf(format, a...) }

func Dump() string {
	return strings.Join(Lines(), "\n")
}

func Lines() []string {
	ring.mu.Lock()
	defer ring.mu.Unlock()
	out := make([]string, len(ring.buf))
	copy(out, ring.buf)
	return out
}
