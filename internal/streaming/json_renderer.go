package streaming

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONRenderer writes one JSON document per line.
type JSONRenderer struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

func NewJSONRenderer(out io.Writer, verbose bool) *JSONRenderer {
	return &JSONRenderer{out: out, verbose: verbose}
}

// RenderEvent writes event as a single NDJSON line.
func (r *JSONRenderer) RenderEvent(event StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.verbose {
		event = stripToolDetails(event)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = r.out.Write(append(data, '\n'))
	return err
}

// Flush flushes the writer if it buffers.
func (r *JSONRenderer) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if flusher, ok := r.out.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

func (r *JSONRenderer) Close() error {
	return r.Flush()
}

// stripToolDetails drops tool arguments and output.
func stripToolDetails(event StreamEvent) StreamEvent {
	if event.Tool == nil {
		return event
	}
	tool := *event.Tool
	tool.Arguments = nil
	tool.Output = ""
	event.Tool = &tool
	return event
}

// NewRenderer picks a renderer for opts. Auto means text on a terminal and
// NDJSON otherwise.
func NewRenderer(opts StreamOptions, interactive bool) StreamRenderer {
	format := opts.Format
	if format == StreamFormatAuto || format == "" {
		format = StreamFormatJSON
		if interactive {
			format = StreamFormatText
		}
	}
	if format == StreamFormatJSON {
		return NewJSONRenderer(opts.Out, opts.Verbose)
	}
	return NewTextRenderer(opts.Out, opts.Verbose).EnableMarkdown(opts.Markdown)
}
