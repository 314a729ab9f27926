package output

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows that something is in progress. In CI mode it prints the
// message once instead of animating.
type Spinner struct {
	spinner *spinner.Spinner
	mode    OutputMode
	message string
	writer  io.Writer
}

// NewSpinner creates a spinner that writes to w.
func NewSpinner(w io.Writer, message string, mode OutputMode) *Spinner {
	s := &Spinner{mode: mode, message: message, writer: w}
	if mode == OutputModeInteractive {
		s.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
		s.spinner.Suffix = " " + message
		_ = s.spinner.Color("cyan", "bold")
	}
	return s
}

func (s *Spinner) Start() {
	if s.spinner != nil {
		s.spinner.Start()
		return
	}
	fmt.Fprintf(s.writer, "%s...\n", s.message)
}

func (s *Spinner) Stop() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}

// Success stops the spinner and prints message.
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "✓ %s\n", message)
}

// Fail stops the spinner and prints message.
func (s *Spinner) Fail(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "✗ %s\n", message)
}

func (s *Spinner) UpdateMessage(message string) {
	s.message = message
	if s.spinner != nil {
		s.spinner.Lock()
		s.spinner.Suffix = " " + message
		s.spinner.Unlock()
	}
}
