package ui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Base       lipgloss.Style
	Status     lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Help       lipgloss.Style
	Marker     lipgloss.Style
	Pending    lipgloss.Style
	PopupBox   lipgloss.Style
	PopupTitle lipgloss.Style
	Table      TableStyles
}

type TableStyles struct {
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Selected lipgloss.Style
	Flawed   lipgloss.Style
}

func NewStyles(dark bool) Styles {
	s := Styles{}
	if dark {
		s.Base = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		s.Status = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
		s.Help = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		s.PopupBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2)
		s.PopupTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
		s.Table.Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
		s.Table.Selected = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220"))
	} else {
		s.Base = lipgloss.NewStyle()
		s.Status = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.Help = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.PopupBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(1, 2)
		s.PopupTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("27"))
		s.Table.Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("27"))
		s.Table.Selected = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("27"))
	}
	s.Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	s.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Marker = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	s.Pending = lipgloss.NewStyle().Faint(true)
	s.Table.Cell = lipgloss.NewStyle()
	s.Table.Flawed = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	return s
}
