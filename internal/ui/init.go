package ui

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"tabsense/internal/config"
	"tabsense/internal/session"
)

const tickInterval = 150 * time.Millisecond

func initialModel(ctx context.Context, cfg *config.Config, sess *session.Session) *Model {
	m := &Model{
		ctx:    ctx,
		cfg:    cfg,
		sess:   sess,
		help:   help.New(),
		styles: NewStyles(cfg.Theme != config.ThemeLight),
		keymap: DefaultKeyMap(),
		input:  textinput.New(),
		spin:   spinner.New(),
	}
	m.spin.Spinner = spinner.Dot
	m.input.CharLimit = 1024
	return m
}

// Run shows the session until the user quits or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, sess *session.Session) error {
	m := initialModel(ctx, cfg, sess)
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	// keys come from the terminal when the table arrives on stdin
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		opts = append(opts, tea.WithInputTTY())
	}
	p := tea.NewProgram(m, opts...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	m.spinning = true
	return tea.Batch(tick(), m.spin.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
