package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"podrunner/pkg/activation"
)

type ConsoleStyle int

const (
	StyleNormal ConsoleStyle = iota
	StyleError
	StyleWarning
	StyleSuccess
	StyleInfo
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorBold   = "\033[1m"
)

// Console prints operator-facing output. Errors and warnings go to errOut.
type Console struct {
	useColors bool
	out       io.Writer
	errOut    io.Writer
}

func NewConsole() *Console {
	return &Console{
		useColors: isTerminal(),
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

// NewPlainConsole writes uncolored output to the given writers.
func NewPlainConsole(out, errOut io.Writer) *Console {
	return &Console{out: out, errOut: errOut}
}

func isTerminal() bool {
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (c *Console) formatMessage(style ConsoleStyle, message string) string {
	if !c.useColors {
		return message
	}

	var color string
	switch style {
	case StyleError:
		color = colorRed + colorBold
	case StyleWarning:
		color = colorYellow
	case StyleSuccess:
		color = colorGreen
	case StyleInfo:
		color = colorBlue
	default:
		return message
	}

	return color + message + colorReset
}

func (c *Console) PrintError(message string) {
	fmt.Fprintf(c.errOut, "%s\n", c.formatMessage(StyleError, "Error: "+message))
}

func (c *Console) PrintWarning(message string) {
	fmt.Fprintf(c.errOut, "%s\n", c.formatMessage(StyleWarning, "Warning: "+message))
}

func (c *Console) PrintSuccess(message string) {
	fmt.Fprintf(c.out, "%s\n", c.formatMessage(StyleSuccess, message))
}

func (c *Console) PrintInfo(message string) {
	fmt.Fprintf(c.out, "%s\n", c.formatMessage(StyleInfo, message))
}

// PrintLine writes a line without styling, e.g. a forwarded container log line.
func (c *Console) PrintLine(line string) {
	fmt.Fprintln(c.out, line)
}

// PrintStatus renders an activation status, colored by severity.
func (c *Console) PrintStatus(status activation.ContainerStatus) {
	line := fmt.Sprintf("%-9s %s", strings.ToUpper(string(status.Status)), status.Message)
	fmt.Fprintf(c.out, "%s\n", c.formatMessage(statusStyle(status.Status), line))
}

func statusStyle(status activation.ActivationStatus) ConsoleStyle {
	switch status {
	case activation.StatusRunning:
		return StyleInfo
	case activation.StatusCompleted:
		return StyleSuccess
	case activation.StatusFailed:
		return StyleWarning
	default:
		return StyleError
	}
}

func (c *Console) FormatErrorMessage(context, cause, suggestion string) string {
	var parts []string

	if context != "" {
		parts = append(parts, context)
	}

	if cause != "" && cause != context {
		parts = append(parts, fmt.Sprintf("Cause: %s", cause))
	}

	if suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", suggestion))
	}

	return strings.Join(parts, "\n")
}
