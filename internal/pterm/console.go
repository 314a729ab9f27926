// Package pterm is the user facing console of the CLI: prefixed status lines
// and tables, plain in CI.
package pterm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentdeck/agentctl/internal/output"
	"github.com/pterm/pterm"
)

// Console prints messages for people. Diagnostics go through zap instead.
type Console struct {
	out   io.Writer
	plain bool
	debug bool
}

// NewConsole creates a Console writing to out. Styling is dropped in CI mode
// or when AGENTCTL_PTERM_ENABLED=false.
func NewConsole(out io.Writer, mode output.OutputMode, debug bool) *Console {
	if out == nil {
		out = os.Stderr
	}
	c := &Console{out: out, debug: debug}
	if mode == output.OutputModeCI || os.Getenv("AGENTCTL_PTERM_ENABLED") == "false" {
		c.plain = true
	}
	if debug {
		pterm.EnableDebugMessages()
	}
	return c
}

// Plain reports whether styling is off.
func (c *Console) Plain() bool {
	return c.plain
}

func (c *Console) print(printer pterm.PrefixPrinter, marker, message string, args []interface{}) {
	text := formatMessage(message, args...)
	if c.plain {
		fmt.Fprintf(c.out, "%s %s\n", marker, text)
		return
	}
	printer.WithWriter(c.out).Println(text)
}

// Info prints message followed by key/value pairs from args.
func (c *Console) Info(message string, args ...interface{}) {
	c.print(pterm.Info, "ℹ", message, args)
}

func (c *Console) Success(message string, args ...interface{}) {
	c.print(pterm.Success, "✓", message, args)
}

func (c *Console) Warning(message string, args ...interface{}) {
	c.print(pterm.Warning, "⚠", message, args)
}

func (c *Console) Error(message string, args ...interface{}) {
	c.print(pterm.Error, "✗", message, args)
}

// Debug prints only when debug output is on.
func (c *Console) Debug(message string, args ...interface{}) {
	if c.debug {
		c.print(pterm.Debug, "[DEBUG]", message, args)
	}
}

// Table prints rows under header.
func (c *Console) Table(header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)

	if c.plain {
		for _, row := range data {
			fmt.Fprintln(c.out, strings.Join(row, "\t"))
		}
		return nil
	}
	return pterm.DefaultTable.
		WithHasHeader(true).
		WithHeaderStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold)).
		WithWriter(c.out).
		WithData(data).
		Render()
}

// formatMessage appends args as key=value pairs.
func formatMessage(message string, args ...interface{}) string {
	var pairs []string
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%v=%v", args[i], args[i+1]))
	}
	if len(pairs) == 0 {
		return message
	}
	return fmt.Sprintf("%s (%s)", message, strings.Join(pairs, ", "))
}
