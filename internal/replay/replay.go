// Package replay plays back the messages of a finished thread as if they were
// streamed live.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/agentdeck/agentctl/internal/backend/entities"
	"github.com/agentdeck/agentctl/internal/streaming"
	"github.com/agentdeck/agentctl/internal/util"
	"go.uber.org/zap"
)

const (
	DefaultCharsPerSecond = 200
	DefaultMinChunk       = 2
	DefaultMessagePause   = 300 * time.Millisecond

	// tick is the interval between two chunks of one message.
	tick = 40 * time.Millisecond
)

// Options controls playback speed. A CharsPerSecond of zero or less plays
// everything at once.
type Options struct {
	CharsPerSecond int
	MinChunk       int
	MessagePause   time.Duration
}

// DefaultOptions is a comfortable reading speed.
func DefaultOptions() Options {
	return Options{
		CharsPerSecond: DefaultCharsPerSecond,
		MinChunk:       DefaultMinChunk,
		MessagePause:   DefaultMessagePause,
	}
}

// MessageSource lists the persisted messages of a thread.
type MessageSource interface {
	ListThreadMessages(ctx context.Context, threadID string) ([]*entities.ThreadMessage, error)
}

// Player replays threads.
type Player struct {
	opts   Options
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Player.
func New(opts Options, logger *zap.Logger) *Player {
	if opts.MinChunk <= 0 {
		opts.MinChunk = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{opts: opts, logger: logger, sleep: util.Sleep}
}

// Replay fetches the messages of threadID and plays them into emit.
func (p *Player) Replay(ctx context.Context, src MessageSource, threadID string, emit func(streaming.StreamEvent) error) error {
	messages, err := src.ListThreadMessages(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to load messages of thread %s: %w", threadID, err)
	}
	p.logger.Debug("replaying thread", zap.String("thread_id", threadID), zap.Int("messages", len(messages)))
	return p.Play(ctx, messages, emit)
}

// Play emits messages in order. Assistant text is split into chunks paced at
// the configured speed; everything else is emitted whole. It stops with
// ctx.Err() when ctx is cancelled.
func (p *Player) Play(ctx context.Context, messages []*entities.ThreadMessage, emit func(streaming.StreamEvent) error) error {
	shown := 0
	for _, m := range messages {
		event, ok := streaming.MapThreadMessage(m)
		if !ok {
			continue
		}
		if shown > 0 {
			if err := p.pause(ctx, p.opts.MessagePause); err != nil {
				return err
			}
		}
		shown++

		if event.Type == streaming.EventTypeMessage && event.Message.Role == string(entities.MessageTypeAssistant) {
			if err := p.typeOut(ctx, event, emit); err != nil {
				return err
			}
			continue
		}
		if err := emit(event); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (p *Player) typeOut(ctx context.Context, event streaming.StreamEvent, emit func(streaming.StreamEvent) error) error {
	for i, part := range Chunks(event.Message.Content, p.chunkSize()) {
		if i > 0 {
			if err := p.pause(ctx, tick); err != nil {
				return err
			}
		}
		chunk := streaming.NewMessageChunkEvent(event.Message.Role, part)
		chunk.MessageID = event.MessageID
		chunk.Timestamp = event.Timestamp
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

// chunkSize is the number of characters emitted per tick.
func (p *Player) chunkSize() int {
	if p.opts.CharsPerSecond <= 0 {
		return 0
	}
	n := p.opts.CharsPerSecond * int(tick/time.Millisecond) / 1000
	if n < p.opts.MinChunk {
		n = p.opts.MinChunk
	}
	return n
}

func (p *Player) pause(ctx context.Context, d time.Duration) error {
	if p.opts.CharsPerSecond <= 0 || d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

// Chunks splits s into pieces of at most size characters. A size of zero or
// less returns s whole.
func Chunks(s string, size int) []string {
	runes := []rune(s)
	if size <= 0 || len(runes) <= size {
		return []string{s}
	}
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
