package errors

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// Category represents the type of error.
type Category string

const (
	CategoryRegistry Category = "registry"
	CategoryBridge   Category = "bridge"
	CategoryProtocol Category = "protocol"
	CategoryConfig   Category = "config"
	CategoryDevkit   Category = "devkit"
	CategoryCLI      Category = "cli"
)

// Location represents a source location, usually inside vnative.yaml.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// VNativeError is a structured error with location, suggestion and documentation.
type VNativeError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the source location where the error occurred.
	Location *Location

	// Context contains surrounding source lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *VNativeError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *VNativeError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a source location and reads the surrounding lines.
func (e *VNativeError) WithLocation(file string, line, column int) *VNativeError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// WithLocationFromError extracts a line number from a yaml.v3 error message
// ("yaml: line 7: ...") and attaches it as the location in file.
func (e *VNativeError) WithLocationFromError(file string, err error) *VNativeError {
	if err == nil {
		return e
	}
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if len(m) == 2 {
		if line, convErr := strconv.Atoi(m[1]); convErr == nil && line > 0 {
			e.WithLocation(file, line, 0)
		}
	}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *VNativeError) WithSuggestion(s string) *VNativeError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *VNativeError) WithDetail(d string) *VNativeError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *VNativeError) Wrap(err error) *VNativeError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a VNativeError from a registered error code.
func New(code string) *VNativeError {
	template, ok := registry[code]
	if !ok {
		return &VNativeError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &VNativeError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new VNativeError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *VNativeError {
	return &VNativeError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a VNativeError.
func FromError(err error, code string) *VNativeError {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*VNativeError); ok {
		return ve
	}
	return New(code).Wrap(err)
}
