package display

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// DefaultColumns is the width of the reference grid.
const DefaultColumns = 4

// LogActuator writes every painted frame to a logger. It stands in for the
// LED grid on hosts without hardware.
type LogActuator struct {
	Logger *slog.Logger
	Level  slog.Level
}

// Paint implements Actuator.
func (a *LogActuator) Paint(ctx context.Context, f Frame) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, a.Level, "paint",
		"seq", f.Seq,
		"session_id", f.SessionID,
		"pixels", f.Pixels.String())
	return nil
}

// DiscardActuator accepts and drops every frame.
type DiscardActuator struct{}

// Paint implements Actuator.
func (DiscardActuator) Paint(context.Context, Frame) error { return nil }

// TerminalActuator renders frames as a coloured grid of cells.
type TerminalActuator struct {
	mu      sync.Mutex
	w       io.Writer
	columns int
	cell    lipgloss.Style
	frame   lipgloss.Style
	caption lipgloss.Style
}

// NewTerminalActuator creates an actuator drawing onto w with the given
// number of columns (DefaultColumns if < 1).
func NewTerminalActuator(w io.Writer, columns int) *TerminalActuator {
	if columns < 1 {
		columns = DefaultColumns
	}
	r := lipgloss.NewRenderer(w)
	return &TerminalActuator{
		w:       w,
		columns: columns,
		cell:    r.NewStyle().Width(4),
		frame:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5f5f87")),
		caption: r.NewStyle().Faint(true),
	}
}

// Paint implements Actuator.
func (a *TerminalActuator) Paint(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := a.Render(f)

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := io.WriteString(a.w, out+"\n")
	return err
}

// Render returns the drawing of f without writing it.
func (a *TerminalActuator) Render(f Frame) string {
	var rows []string
	for start := 0; start < len(f.Pixels); start += a.columns {
		end := start + a.columns
		if end > len(f.Pixels) {
			end = len(f.Pixels)
		}

		var row strings.Builder
		for _, p := range f.Pixels[start:end] {
			row.WriteString(a.cell.Background(lipgloss.Color(p.String())).Render(""))
		}
		rows = append(rows, row.String())
	}

	grid := a.frame.Render(strings.Join(rows, "\n"))
	caption := a.caption.Render(fmt.Sprintf("frame %d", f.Seq))
	return lipgloss.JoinVertical(lipgloss.Left, caption, grid)
}
