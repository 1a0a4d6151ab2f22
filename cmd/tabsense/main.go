package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tabsense/internal/config"
	apperr "tabsense/internal/errors"
	"tabsense/internal/export"
	"tabsense/internal/rows"
	"tabsense/internal/session"
	"tabsense/internal/source"
	"tabsense/internal/ui"
	"tabsense/internal/util/logx"
	"tabsense/internal/version"
)

func main() {
	logx.SetLevelFromEnv()

	// Setup cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		logx.Errorf("tabsense exited with error: %v", err)
		fmt.Fprintln(os.Stderr, "tabsense:", err)
		if logx.Enabled(logx.Debug) {
			fmt.Fprintln(os.Stderr, logx.Dump())
		}
		os.Exit(apperr.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	flags := config.Default()
	cmd := &cobra.Command{
		Use:   "tabsense [flags] [file]\n  tabsense [flags] <pattern> <file>",
		Short: "Browse, search and filter large delimited text files",
		Long: `tabsense opens CSV, TSV and other delimited files of any size at once and
indexes them in the background. Rows can be filtered with --where terms such as
'score>4' or 'name~al*', joined by &&, and a positional pattern matches anywhere
in the row. When stdout is not a terminal the filtered rows are printed.`,
		Version:       version.String(),
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := positional(flags, cmd.Flags().Changed("file"), args); err != nil {
				return err
			}
			cfg, err := config.Resolve(flags, cmd.Flags())
			if err != nil {
				return err
			}
			logx.Infof("starting tabsense %s: %s", version.String(), cfg.String())
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.SetVersionTemplate("tabsense {{.Version}}\n")
	flags.RegisterFlags(cmd.Flags())
	return cmd
}

// positional accepts `[file]` or `<pattern> <file>`. With --file a single
// argument is the pattern.
func positional(c *config.Config, fileFlag bool, args []string) error {
	switch len(args) {
	case 1:
		if fileFlag {
			c.Pattern = args[0]
		} else {
			c.File = args[0]
		}
	case 2:
		if fileFlag {
			return apperr.NewConfigError("both --file and a file argument given", nil)
		}
		c.Pattern, c.File = args[0], args[1]
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	enc, err := rows.LookupEncoding(cfg.Encoding)
	if err != nil {
		return apperr.NewConfigError("invalid --encoding", err)
	}
	sess, err := session.Open(ctx, session.Options{
		Source: source.Options{
			Path:      cfg.File,
			Stdin:     stdin,
			Follow:    cfg.Follow,
			Transcode: enc.Transcoder(),
		},
		Dialect:        cfg.Dialect(),
		Header:         !cfg.NoHeader,
		Encoding:       enc,
		ChunkSize:      cfg.ChunkKB * 1024,
		MaxRowBytes:    cfg.MaxRowKB * 1024,
		CacheRows:      cfg.CacheRows,
		MaxColumnWidth: cfg.MaxColumnWidth,
		Select:         cfg.Select,
		Where:          cfg.Where,
		Pattern:        cfg.Pattern,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	if interactive(cfg, stdout) {
		if err := ui.Run(ctx, cfg, sess); err != nil {
			return err
		}
		if cfg.PrintCommand {
			fmt.Fprintln(stdout, sess.CommandLine())
		}
		return nil
	}

	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return apperr.NewConfigError("invalid --format", err)
	}
	err = export.Print(ctx, stdout, sess, export.Options{
		Format:    format,
		Delimiter: sess.Dialect().Delimiter,
		NoHeader:  cfg.NoHeader,
	})
	// interrupted while following
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func interactive(cfg *config.Config, stdout io.Writer) bool {
	switch {
	case cfg.Print:
		return false
	case cfg.Interactive:
		return true
	}
	f, ok := stdout.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
