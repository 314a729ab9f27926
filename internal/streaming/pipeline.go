package streaming

import "sync"

// EventFilter may modify an event or drop it by returning false.
type EventFilter interface {
	Filter(event StreamEvent) (StreamEvent, bool)
}

// FilterFunc adapts a function to EventFilter.
type FilterFunc func(StreamEvent) (StreamEvent, bool)

func (f FilterFunc) Filter(event StreamEvent) (StreamEvent, bool) {
	return f(event)
}

// EventPipeline runs events through filters before rendering. It is safe for
// concurrent use, so several runs can share one output.
type EventPipeline struct {
	renderer StreamRenderer
	mu       sync.Mutex
	filters  []EventFilter
}

func NewEventPipeline(renderer StreamRenderer) *EventPipeline {
	return &EventPipeline{renderer: renderer}
}

// AddFilter appends a filter.
func (p *EventPipeline) AddFilter(filter EventFilter) *EventPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, filter)
	return p
}

// Process filters and renders one event.
func (p *EventPipeline) Process(event StreamEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.filters {
		var keep bool
		if event, keep = f.Filter(event); !keep {
			return nil
		}
	}
	return p.renderer.RenderEvent(event)
}

// ProcessPayload maps a raw run payload and processes it.
func (p *EventPipeline) ProcessPayload(runID, payload string) error {
	event, ok := MapRunPayload(runID, payload)
	if !ok {
		return nil
	}
	return p.Process(event)
}

func (p *EventPipeline) Flush() error {
	return p.renderer.Flush()
}

func (p *EventPipeline) Close() error {
	return p.renderer.Close()
}

// VerbosityFilter drops tool arguments and output unless verbose.
type VerbosityFilter struct {
	verbose bool
}

func NewVerbosityFilter(verbose bool) *VerbosityFilter {
	return &VerbosityFilter{verbose: verbose}
}

func (f *VerbosityFilter) Filter(event StreamEvent) (StreamEvent, bool) {
	if f.verbose {
		return event, true
	}
	return stripToolDetails(event), true
}

// DeduplicationFilter drops an event identical to the previous one of the
// same run. Backends resend the last status after a reconnect.
type DeduplicationFilter struct {
	mu   sync.Mutex
	last map[string]string
}

func NewDeduplicationFilter() *DeduplicationFilter {
	return &DeduplicationFilter{last: make(map[string]string)}
}

func (f *DeduplicationFilter) Filter(event StreamEvent) (StreamEvent, bool) {
	key := dedupKey(event)
	if key == "" {
		return event, true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last[event.RunID] == key {
		return event, false
	}
	f.last[event.RunID] = key
	return event, true
}

// dedupKey is empty for events that are never considered duplicates.
func dedupKey(event StreamEvent) string {
	if event.MessageID != "" && event.Type != EventTypeMessageChunk {
		return "id:" + event.MessageID
	}
	switch event.Type {
	case EventTypeStatus:
		if event.Status != nil {
			return "status:" + event.Status.State + ":" + event.Status.Message
		}
	case EventTypeToolStarted, EventTypeToolCompleted:
		if event.Tool != nil {
			return string(event.Type) + ":" + event.Tool.Name
		}
	case EventTypeDone, EventTypeConnected:
		return string(event.Type)
	}
	return ""
}

// EventTypeFilter passes only the listed types; with none listed it passes all.
type EventTypeFilter struct {
	allowed map[StreamEventType]bool
}

func NewEventTypeFilter(types ...StreamEventType) *EventTypeFilter {
	allowed := make(map[StreamEventType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return &EventTypeFilter{allowed: allowed}
}

func (f *EventTypeFilter) Filter(event StreamEvent) (StreamEvent, bool) {
	if len(f.allowed) == 0 {
		return event, true
	}
	return event, f.allowed[event.Type]
}

// RunLabelFilter prefixes message content with a short run id. Used when
// several runs share one output.
func RunLabelFilter() EventFilter {
	return FilterFunc(func(event StreamEvent) (StreamEvent, bool) {
		if event.Message == nil || event.RunID == "" || event.Message.Chunk {
			return event, true
		}
		msg := *event.Message
		msg.Content = "[" + shortID(event.RunID) + "] " + msg.Content
		event.Message = &msg
		return event, true
	})
}
