// Command tablegen writes synthetic delimited tables, either all at once or
// row by row at a fixed rate so a viewer can follow the file as it grows.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	rows       int
	rate       float64
	delimiter  string
	out        string
	duration   time.Duration
	flawedEach int
	noHeader   bool
	seed       int64
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tablegen:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "tablegen",
		Short:         "Generate synthetic delimited tables",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.IntVarP(&o.rows, "rows", "n", 1000, "rows to write (0 = until interrupted or --duration)")
	fs.Float64Var(&o.rate, "rate", 0, "rows per second; 0 writes as fast as possible")
	fs.StringVarP(&o.delimiter, "delimiter", "d", ",", "field delimiter (tab for \\t)")
	fs.StringVarP(&o.out, "out", "o", "", "append to this file instead of stdout")
	fs.DurationVar(&o.duration, "duration", 0, "stop after this long (e.g. 30s)")
	fs.IntVar(&o.flawedEach, "flawed-every", 0, "write an unterminated quoted field every N rows")
	fs.BoolVar(&o.noHeader, "no-header", false, "omit the header row")
	fs.Int64Var(&o.seed, "seed", 0, "random seed (0 = time based)")
	return cmd
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	delim, err := parseDelimiter(o.delimiter)
	if err != nil {
		return err
	}
	w := stdout
	if o.out != "" {
		f, err := os.OpenFile(o.out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}
	seed := o.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	bw := bufio.NewWriter(w)
	defer bw.Flush()
	g := newGenerator(rand.New(rand.NewSource(seed)), delim, bw)
	if !o.noHeader {
		if err := g.header(); err != nil {
			return err
		}
	}

	var tick <-chan time.Time
	if o.rate > 0 {
		interval := max(time.Duration(float64(time.Second)/o.rate), time.Millisecond)
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for i := 1; o.rows == 0 || i <= o.rows; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		flawed := o.flawedEach > 0 && i%o.flawedEach == 0
		if err := g.row(i, flawed); err != nil {
			return err
		}
		// rows must reach a followed file as they are produced
		if tick != nil {
			if err := bw.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	}
	if len(s) != 1 || s[0] == '"' || s[0] == '\n' || s[0] == '\r' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return rune(s[0]), nil
}

var (
	columns  = []string{"id", "ts", "user", "city", "status", "latency_ms", "score", "note"}
	users    = []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi"}
	cities   = []string{"Lisbon", "São Paulo", "Zürich", "New York", "東京", "Amsterdam", "Nairobi"}
	statuses = []string{"ok", "ok", "ok", "retry", "failed"}
	notes    = []string{"", "first visit", "paid, with coupon", `said "hi"`, "multi\nline note", "refund requested"}
)

type generator struct {
	rnd   *rand.Rand
	w     *bufio.Writer
	cw    *csv.Writer
	start time.Time
}

func newGenerator(rnd *rand.Rand, delim rune, w *bufio.Writer) *generator {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	return &generator{rnd: rnd, w: w, cw: cw, start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (g *generator) header() error {
	return g.write(columns)
}

func (g *generator) row(i int, flawed bool) error {
	fields := []string{
		strconv.Itoa(i),
		g.start.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
		pick(g.rnd, users),
		pick(g.rnd, cities),
		pick(g.rnd, statuses),
		strconv.Itoa(5 + g.rnd.Intn(995)),
		strconv.FormatFloat(g.rnd.Float64()*100, 'f', 2, 64),
		pick(g.rnd, notes),
	}
	if !flawed {
		return g.write(fields)
	}
	// a quote that is never closed swallows the rest of the line
	g.cw.Flush()
	line := strings.Join(fields[:len(fields)-1], string(g.cw.Comma)) + string(g.cw.Comma) + `"unterminated` + "\n"
	_, err := g.w.WriteString(line)
	return err
}

func (g *generator) write(fields []string) error {
	if err := g.cw.Write(fields); err != nil {
		return err
	}
	g.cw.Flush()
	return g.cw.Error()
}

func pick(rnd *rand.Rand, xs []string) string { return xs[rnd.Intn(len(xs))] }
