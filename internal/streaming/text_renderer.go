package streaming

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// maxPlainMessage is how much of a non-assistant message is shown unless verbose.
const maxPlainMessage = 300

type palette struct {
	bold, dim, red, green, yellow, blue, cyan func(a ...interface{}) string
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		bold:   mk(color.Bold),
		dim:    mk(color.Faint),
		red:    mk(color.FgRed),
		green:  mk(color.FgGreen),
		yellow: mk(color.FgYellow),
		blue:   mk(color.FgBlue),
		cyan:   mk(color.FgCyan),
	}
}

// TextRenderer writes events as human readable text.
type TextRenderer struct {
	out       io.Writer
	verbose   bool
	markdown  bool
	isTTY     bool
	startTime time.Time
	colors    palette
	boxes     *lipgloss.Renderer

	mu sync.Mutex
	// chunkRole is the role of the message being streamed, empty when the
	// last output was not a chunk.
	chunkRole string
}

// NewTextRenderer creates a TextRenderer. Colours are used only on a terminal.
func NewTextRenderer(out io.Writer, verbose bool) *TextRenderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &TextRenderer{
		out:       out,
		verbose:   verbose,
		isTTY:     isTTY,
		startTime: timeNow(),
		colors:    newPalette(isTTY),
		boxes:     lipgloss.NewRenderer(out),
	}
}

// EnableMarkdown renders complete assistant messages as markdown on a terminal.
func (r *TextRenderer) EnableMarkdown(enabled bool) *TextRenderer {
	r.markdown = enabled
	return r
}

// RenderEvent writes one event.
func (r *TextRenderer) RenderEvent(event StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Type != EventTypeMessageChunk {
		r.endChunk()
	}

	switch event.Type {
	case EventTypeConnected:
		return r.println(r.box("CONNECTED", "Agent run "+shortID(event.RunID), "6"))
	case EventTypeMessageChunk:
		return r.renderChunk(event)
	case EventTypeMessage:
		return r.renderMessage(event)
	case EventTypeToolStarted:
		return r.renderToolStarted(event)
	case EventTypeToolCompleted:
		return r.renderToolCompleted(event)
	case EventTypeStatus:
		return r.renderStatus(event)
	case EventTypeError:
		if event.Error == nil {
			return nil
		}
		return r.println("\n" + r.box("ERROR", event.Error.Message, "1"))
	case EventTypeDone:
		elapsed := timeNow().Sub(r.startTime)
		return r.println(r.box("DONE", fmt.Sprintf("Completed in %.1fs", elapsed.Seconds()), "2"))
	}
	return nil
}

// Flush terminates a partially streamed message.
func (r *TextRenderer) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endChunk()
	return nil
}

// Close flushes.
func (r *TextRenderer) Close() error {
	return r.Flush()
}

func (r *TextRenderer) endChunk() {
	if r.chunkRole != "" {
		fmt.Fprintln(r.out)
		r.chunkRole = ""
	}
}

func (r *TextRenderer) println(s string) error {
	_, err := fmt.Fprintln(r.out, s)
	return err
}

func (r *TextRenderer) header(role string) string {
	switch role {
	case "user":
		return "\n" + r.colors.bold("User:")
	case "assistant":
		return "\n" + r.colors.bold("Assistant:")
	case "":
		return "\n" + r.colors.bold("Message:")
	default:
		return "\n" + r.colors.bold(strings.ToUpper(role[:1])+role[1:]+":")
	}
}

func (r *TextRenderer) renderChunk(event StreamEvent) error {
	if event.Message == nil || event.Message.Content == "" {
		return nil
	}
	role := event.Message.Role
	if role == "" {
		role = "assistant"
	}
	if r.chunkRole != role {
		r.endChunk()
		if err := r.println(r.header(role)); err != nil {
			return err
		}
		r.chunkRole = role
	}
	_, err := fmt.Fprint(r.out, event.Message.Content)
	return err
}

func (r *TextRenderer) renderMessage(event StreamEvent) error {
	if event.Message == nil {
		return nil
	}
	content := event.Message.Content

	switch event.Message.Role {
	case "assistant":
		if err := r.println(r.header("assistant")); err != nil {
			return err
		}
		return r.println(r.renderMarkdown(content))
	case "user":
		if err := r.println(r.header("user")); err != nil {
			return err
		}
		return r.println(r.colors.dim(r.truncate(content)))
	case "system":
		return r.println(r.colors.blue("i") + " " + r.colors.dim(r.truncate(content)))
	default:
		return r.println(fmt.Sprintf("[%s] %s", strings.ToUpper(event.Message.Role), r.truncate(content)))
	}
}

func (r *TextRenderer) renderMarkdown(content string) string {
	if !r.markdown || !r.isTTY {
		return content
	}
	out, err := glamour.Render(content, "auto")
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

func (r *TextRenderer) renderToolStarted(event StreamEvent) error {
	if event.Tool == nil {
		return nil
	}
	line := fmt.Sprintf("%s %s %s", r.colors.yellow("▸"), r.colors.cyan(toolLabel(event.Tool.Name)), r.colors.dim("running..."))
	if err := r.println(line); err != nil {
		return err
	}
	if r.verbose && len(event.Tool.Arguments) > 0 {
		r.renderFields("Arguments", event.Tool.Arguments)
	}
	return nil
}

func (r *TextRenderer) renderToolCompleted(event StreamEvent) error {
	if event.Tool == nil {
		return nil
	}
	mark := r.colors.green("✓")
	if !event.Tool.Success {
		mark = r.colors.red("✗")
	}
	if err := r.println(fmt.Sprintf("%s %s", mark, r.colors.cyan(toolLabel(event.Tool.Name)))); err != nil {
		return err
	}
	if !event.Tool.Success && event.Tool.Error != "" {
		fmt.Fprintf(r.out, "  %s %s\n", r.colors.red("└─"), r.colors.red(event.Tool.Error))
	}
	if r.verbose && event.Tool.Output != "" {
		fmt.Fprintln(r.out, r.colors.dim("  ┌─ Output:"))
		for _, line := range strings.Split(strings.TrimRight(event.Tool.Output, "\n"), "\n") {
			fmt.Fprintf(r.out, "  │ %s\n", r.colors.dim(line))
		}
		fmt.Fprintln(r.out, r.colors.dim("  └─"))
	}
	return nil
}

func (r *TextRenderer) renderStatus(event StreamEvent) error {
	if event.Status == nil {
		return nil
	}
	state := strings.ToLower(event.Status.State)

	var icon string
	switch state {
	case "running", "thread_run_start", "assistant_response_start":
		// implied by activity
		return nil
	case "completed", "thread_run_end":
		icon = r.colors.green("✓")
	case "failed", "error":
		icon = r.colors.red("✗")
	case "stopped", "cancelled":
		icon = r.colors.yellow("⊘")
	default:
		icon = r.colors.dim("●")
	}

	line := fmt.Sprintf("%s %s", icon, r.colors.dim(strings.ReplaceAll(state, "_", " ")))
	if event.Status.Message != "" {
		line += " - " + r.colors.dim(event.Status.Message)
	}
	return r.println(line)
}

func (r *TextRenderer) renderFields(title string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(r.out, r.colors.dim("  ┌─ "+title+":"))
	for _, k := range keys {
		v := fmt.Sprintf("%v", fields[k])
		if len(v) > 60 {
			v = v[:57] + "..."
		}
		fmt.Fprintf(r.out, "  │ %s: %s\n", r.colors.cyan(k), r.colors.dim(v))
	}
	fmt.Fprintln(r.out, r.colors.dim("  └─"))
}

func (r *TextRenderer) truncate(s string) string {
	if r.verbose || len(s) <= maxPlainMessage {
		return s
	}
	return s[:maxPlainMessage] + "..."
}

// box draws a rounded frame; colour is an ANSI colour number.
func (r *TextRenderer) box(title, content, colour string) string {
	style := r.boxes.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colour)).
		Padding(0, 1)
	titleStyle := r.boxes.NewStyle().Bold(true).Foreground(lipgloss.Color(colour))
	return style.Render(titleStyle.Render(title) + " • " + content)
}

func toolLabel(name string) string {
	if name == "" {
		return "Tool"
	}
	label := strings.ReplaceAll(name, "_", " ")
	label = strings.ReplaceAll(label, "-", " ")
	if len(label) > 30 {
		label = label[:27] + "..."
	}
	return label
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
