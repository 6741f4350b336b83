package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/manualdesk/internal/admin"
	"github.com/raphaelgruber/manualdesk/internal/appstate"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	User       lipgloss.Color
	Bot        lipgloss.Color
	ProgressBg lipgloss.Color
}

var darkTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Warning:    lipgloss.Color("#FFAF00"), // amber
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	User:       lipgloss.Color("#AF87FF"), // lavender
	Bot:        lipgloss.Color("#D0D0D0"), // light gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

var lightTheme = Theme{
	Status:     lipgloss.Color("#005F87"),
	Success:    lipgloss.Color("#008700"),
	Warning:    lipgloss.Color("#AF5F00"),
	Error:      lipgloss.Color("#D70000"),
	Hint:       lipgloss.Color("#808080"),
	User:       lipgloss.Color("#5F00AF"),
	Bot:        lipgloss.Color("#262626"),
	ProgressBg: lipgloss.Color("#D0D0D0"),
}

func themeFor(t appstate.Theme) Theme {
	if t == appstate.ThemeLight {
		return lightTheme
	}
	return darkTheme
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) botStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Bot)
}

// console writes styled output and doubles as the notice sink of the admin
// controller. Printed notices cannot be taken back, so Dismiss is a no-op.
type console struct {
	mu      sync.Mutex
	w       io.Writer
	theme   Theme
	holding bool
	held    []admin.Notice
}

func newConsole(w io.Writer, theme Theme) *console {
	return &console{w: w, theme: theme}
}

func (c *console) setTheme(t Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = t
}

func (c *console) currentTheme() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// hold queues notices instead of printing them, while a full-screen view
// owns the terminal.
func (c *console) hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holding = true
}

// release prints the queued notices and resumes direct printing.
func (c *console) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holding = false
	for _, n := range c.held {
		c.printNoticeLocked(n)
	}
	c.held = nil
}

// Notify implements admin.Notifier.
func (c *console) Notify(n admin.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding {
		c.held = append(c.held, n)
		return
	}
	c.printNoticeLocked(n)
}

func (c *console) printNoticeLocked(n admin.Notice) {
	var prefix string
	var style lipgloss.Style
	switch n.Severity {
	case admin.SeveritySuccess:
		prefix, style = "✓", c.theme.completedStyle()
	case admin.SeverityWarning:
		prefix, style = "!", c.theme.warningStyle()
	case admin.SeverityError:
		prefix, style = "✗", c.theme.errorStyle()
	default:
		prefix, style = "•", c.theme.statusStyle()
	}
	fmt.Fprintln(c.w, style.Render(prefix+" "+n.Message))
}

// Dismiss implements admin.Notifier.
func (c *console) Dismiss(string) {}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, s)
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

func (c *console) hint(s string) {
	c.println(c.currentTheme().hintStyle().Render(s))
}

// indent prefixes every line of s with pad.
func indent(s, pad string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
