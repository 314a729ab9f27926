package cli

import (
	"context"
	"fmt"

	clierrors "github.com/agentdeck/agentctl/internal/errors"
	"github.com/agentdeck/agentctl/internal/output"
	"github.com/agentdeck/agentctl/internal/runstream"
	"github.com/agentdeck/agentctl/internal/streaming"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWatchConcurrency = 8

type streamFlags struct {
	format   string
	verbose  bool
	markdown bool
}

func (f *streamFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "", "output format: auto, text or json (env AGENTCTL_STREAM_FORMAT)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "show tool arguments, outputs and status changes")
	cmd.Flags().BoolVar(&f.markdown, "markdown", true, "render assistant messages as markdown on a terminal")
}

// pipeline builds the renderer chain for f.
func (a *app) pipeline(f streamFlags) (*streaming.EventPipeline, error) {
	name := f.format
	if name == "" {
		name = a.cfg.StreamFormat
	}
	format, ok := streaming.ParseFormat(name)
	if !ok {
		return nil, clierrors.ValidationError(fmt.Errorf("invalid stream format %q", name), "Use auto, text or json.")
	}
	renderer := streaming.NewRenderer(streaming.StreamOptions{
		Format:   format,
		Verbose:  f.verbose,
		Markdown: f.markdown,
		Out:      a.stdout,
	}, a.interactive())

	return streaming.NewEventPipeline(renderer).
		AddFilter(streaming.NewVerbosityFilter(f.verbose)).
		AddFilter(streaming.NewDeduplicationFilter()), nil
}

func (a *app) newRunStreamCommand() *cobra.Command {
	var flags streamFlags
	cmd := &cobra.Command{
		Use:   "stream <run-id>",
		Short: "Follow the live output of an agent run",
		Long: `Follow the live output of an agent run until it completes.

The run status is checked before connecting; runs that are no longer running
are reported without opening a stream. Dropped connections are retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.streamRun(cmd.Context(), args[0], flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) streamRun(ctx context.Context, runID string, f streamFlags) error {
	pipeline, err := a.pipeline(f)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	client := a.streamClient(a.backend())
	defer client.Close()

	return a.follow(ctx, client, pipeline, runID, true)
}

func (a *app) newRunWatchCommand() *cobra.Command {
	var (
		flags streamFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "watch <run-id>...",
		Short: "Follow several agent runs at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return clierrors.ValidationError(fmt.Errorf("--max-concurrent must be at least 1, got %d", limit), "")
			}
			pipeline, err := a.pipeline(flags)
			if err != nil {
				return err
			}
			pipeline.AddFilter(streaming.RunLabelFilter())
			defer pipeline.Close()

			client := a.streamClient(a.backend())
			defer client.Close()

			// Runs are independent: one failing does not stop the others.
			var g errgroup.Group
			g.SetLimit(limit)
			for _, runID := range args {
				runID := runID
				g.Go(func() error {
					if err := a.follow(cmd.Context(), client, pipeline, runID, false); err != nil {
						return fmt.Errorf("agent run %s: %w", runID, err)
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "max-concurrent", defaultWatchConcurrency, "maximum number of runs streamed at once")
	return cmd
}

// follow renders the stream of runID until it closes and returns the last
// error it reported. An interrupted stream is not an error.
func (a *app) follow(ctx context.Context, client *runstream.Client, pipeline *streaming.EventPipeline, runID string, spin bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var spinner *output.Spinner
	if spin {
		spinner = output.NewSpinner(a.stderr, "Connecting to agent run "+runID, a.mode)
		spinner.Start()
	}
	stopSpinner := func() {
		if spinner != nil {
			spinner.Stop()
			spinner = nil
		}
	}
	defer stopSpinner()

	var (
		connected bool
		done      bool
		lastErr   error
	)
	for ev := range client.Subscribe(ctx, runID) {
		stopSpinner()
		switch ev.Kind {
		case runstream.EventMessage:
			if !connected {
				connected = true
				if err := pipeline.Process(streaming.NewConnectedEvent(runID)); err != nil {
					return err
				}
			}
			event, ok := streaming.MapRunPayload(runID, ev.Payload)
			if !ok {
				continue
			}
			if event.Type == streaming.EventTypeDone {
				done = true
			}
			if err := pipeline.Process(event); err != nil {
				return err
			}

		case runstream.EventError:
			lastErr = ev.Err
			a.log.Debug("agent run stream error", zap.String("run_id", runID), zap.Error(ev.Err))
			event := streaming.NewErrorEvent(ev.Err.Error(), false)
			event.RunID = runID
			if err := pipeline.Process(event); err != nil {
				return err
			}

		case runstream.EventClose:
			if lastErr == nil && !done {
				event := streaming.NewDoneEvent()
				event.RunID = runID
				if err := pipeline.Process(event); err != nil {
					return err
				}
			}
		}
	}
	if err := pipeline.Flush(); err != nil {
		return err
	}

	if lastErr == nil && ctx.Err() != nil {
		a.log.Debug("agent run stream interrupted", zap.String("run_id", runID))
	}
	return lastErr
}
