package ui

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func overlay(base, overlay string) string {
	// Draw overlay on top of base by replacing lines where overlay has content.
	bLines := strings.Split(base, "\n")
	oLines := strings.Split(overlay, "\n")
	n := max(len(bLines), len(oLines))
	for len(bLines) < n {
		bLines = append(bLines, "")
	}
	for len(oLines) < n {
		oLines = append(oLines, "")
	}
	out := make([]string, n)
	for i := range n {
		// whitespace-only overlay lines are transparent
		if strings.TrimSpace(oLines[i]) != "" {
			out[i] = oLines[i]
		} else {
			out[i] = bLines[i]
		}
	}
	return strings.Join(out, "\n")
}

// copyToClipboard copies text with OSC52, which works over SSH in many
// terminals.
func copyToClipboard(s string) {
	payload := fmt.Sprintf("\x1b]52;c;%s\x07", base64.StdEncoding.EncodeToString([]byte(s)))
	// write to /dev/tty to avoid clobbering the app's stdout buffer
	if f, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0); err == nil {
		defer f.Close()
		_, _ = f.WriteString(payload)
		return
	}
	fmt.Fprint(os.Stdout, payload)
}

// placeTwo puts left at the start and right at the end of a width-wide line.
// left is cut when both do not fit.
func placeTwo(left, right string, width int) string {
	lw, rw := lipgloss.Width(left), lipgloss.Width(right)
	if lw+rw+1 > width {
		room := max(width-rw-1, 0)
		left = truncateStyled(left, room)
		lw = lipgloss.Width(left)
	}
	gap := max(width-lw-rw, 1)
	return left + strings.Repeat(" ", gap) + right
}

func truncateStyled(s string, w int) string {
	return lipgloss.NewStyle().MaxWidth(w).Render(s)
}
