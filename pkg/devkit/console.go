package devkit

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	eventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	exceptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	tagStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	logStyles = map[LogType]lipgloss.Style{
		LogDefault: lipgloss.NewStyle().Background(lipgloss.Color("4")),
		LogError:   lipgloss.NewStyle().Background(lipgloss.Color("1")),
		LogWarn:    lipgloss.NewStyle().Background(lipgloss.Color("3")).Foreground(lipgloss.Color("0")),
	}
)

// TimeLayout is the clock format of console log lines.
const TimeLayout = "15:04:05.000"

// Console prints devkit traffic for a developer watching the terminal.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	now   func() time.Time
}

// NewConsole returns a Console writing to w. Colors are enabled when w is a
// terminal and NO_COLOR is unset.
func NewConsole(w io.Writer) *Console {
	return &Console{
		w:     w,
		color: isTerminal(w) && os.Getenv("NO_COLOR") == "",
		now:   time.Now,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetColor forces styling on or off.
func (c *Console) SetColor(on bool) {
	c.mu.Lock()
	c.color = on
	c.mu.Unlock()
}

func (c *Console) render(s lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return s.Render(text)
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// Event prints a lifecycle line such as a device attaching.
func (c *Console) Event(format string, args ...any) {
	c.println(c.render(eventStyle, fmt.Sprintf(format, args...)))
}

// Exception prints the source and exception text of a report in red.
func (c *Console) Exception(device int, data ExceptionData) {
	c.println(c.render(exceptionStyle, data.Source))
	c.println(c.render(exceptionStyle, data.Exception))
}

// Log prints one LOG line as "HH:MM:SS.mmm Device N [I] message".
func (c *Console) Log(device int, data LogData) {
	c.LogAt(c.now(), device, data)
}

// LogAt is Log with an explicit timestamp, used when replaying stored logs.
func (c *Console) LogAt(t time.Time, device int, data LogData) {
	c.println(c.formatLog(t, device, data))
}

func (c *Console) formatLog(t time.Time, device int, data LogData) string {
	tag := data.Type.Tag()
	line := fmt.Sprintf("%s Device %d %s %s", t.Format(TimeLayout), device, c.render(tagStyle, tag), data.Message)
	style, ok := logStyles[data.Type]
	if !ok {
		style = logStyles[LogDefault]
	}
	return c.render(style, line)
}
