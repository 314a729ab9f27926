// Package sse is a server-sent-events client that reconnects on its own, in
// the manner of a browser EventSource.
package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Event is one dispatched server-sent event.
type Event struct {
	ID    string
	Type  string
	Data  string
	Retry time.Duration
}

// parser accumulates field lines until a blank line dispatches an event.
type parser struct {
	lastEventID string
	eventType   string
	data        strings.Builder
	hasData     bool
	retry       time.Duration
}

// feed processes one line without its terminator. It returns the event to
// dispatch, if the line completed one.
func (p *parser) feed(line string) (Event, bool) {
	if line == "" {
		return p.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value := line, ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		field = line[:i]
		value = strings.TrimPrefix(line[i+1:], " ")
	}

	switch field {
	case "event":
		p.eventType = value
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.lastEventID = value
		}
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			p.retry = time.Duration(ms) * time.Millisecond
		}
	}
	return Event{}, false
}

func (p *parser) dispatch() (Event, bool) {
	defer func() {
		p.eventType = ""
		p.data.Reset()
		p.hasData = false
	}()

	if !p.hasData {
		return Event{}, false
	}
	eventType := p.eventType
	if eventType == "" {
		eventType = "message"
	}
	return Event{
		ID:    p.lastEventID,
		Type:  eventType,
		Data:  p.data.String(),
		Retry: p.retry,
	}, true
}

// readEvents reads r until EOF or error, calling emit for each event. The
// returned error is io.EOF when the server ended the stream.
func readEvents(r io.Reader, p *parser, emit func(Event) bool) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" && (err == nil || strings.HasSuffix(line, "\n")) {
			line = strings.TrimRight(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if ev, ok := p.feed(line); ok {
				if !emit(ev) {
					return nil
				}
			}
		}
		if err != nil {
			return err
		}
	}
}
