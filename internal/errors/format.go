package errors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	codeStyle   = lipgloss.NewStyle().Bold(true)
	pathStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	gutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	arrowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	linkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Underline(true)
)

// colorEnabled controls whether styles are applied.
var colorEnabled = true

// DisableColors disables styled output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables styled output.
func EnableColors() {
	colorEnabled = true
}

func render(s lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return s.Render(text)
}

// Format returns a formatted error message for terminal display.
func (e *VNativeError) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(render(headerStyle, "ERROR "))
		b.WriteString(render(codeStyle, e.Code+": "))
	} else {
		b.WriteString(render(headerStyle, "ERROR: "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Location != nil {
		b.WriteString("  ")
		b.WriteString(render(pathStyle, e.Location.String()))
		b.WriteString("\n\n")
		writeContext(&b, e.Location, e.Context)
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(render(gutterStyle, "cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(render(hintStyle, "Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	if e.DocURL != "" {
		b.WriteString("  ")
		b.WriteString(render(gutterStyle, "Learn more: "))
		b.WriteString(render(linkStyle, e.DocURL))
		b.WriteString("\n")
	}

	return b.String()
}

// writeContext prints the source lines around loc with the offending line marked.
func writeContext(b *strings.Builder, loc *Location, lines []string) {
	if len(lines) == 0 {
		return
	}
	startLine := loc.Line - len(lines)/2
	if startLine < 1 {
		startLine = 1
	}
	for i, line := range lines {
		lineNum := startLine + i
		if lineNum == loc.Line {
			b.WriteString("  ")
			b.WriteString(render(arrowStyle, "→ "))
		} else {
			b.WriteString("    ")
		}
		fmt.Fprintf(b, "%4d", lineNum)
		b.WriteString(render(gutterStyle, " │ "))
		b.WriteString(line)
		b.WriteString("\n")
		if lineNum == loc.Line && loc.Column > 0 {
			b.WriteString("       ")
			b.WriteString(render(gutterStyle, "│ "))
			b.WriteString(strings.Repeat(" ", loc.Column-1))
			b.WriteString(render(arrowStyle, "^"))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

// FormatCompact returns a compact single-line error format.
func (e *VNativeError) FormatCompact() string {
	var b strings.Builder

	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	return b.String()
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

// Fprint writes a formatted error to w.
func Fprint(w io.Writer, err error) {
	if ve, ok := err.(*VNativeError); ok {
		fmt.Fprint(w, ve.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", render(headerStyle, "ERROR:"), err.Error())
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}
