package cli

import (
	"fmt"

	clierrors "github.com/agentdeck/agentctl/internal/errors"
	"github.com/agentdeck/agentctl/internal/replay"
	"github.com/agentdeck/agentctl/internal/streaming"
	"github.com/spf13/cobra"
)

func (a *app) newThreadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "thread",
		Aliases: []string{"threads"},
		Short:   "Work with conversation threads",
	}
	cmd.AddCommand(a.newThreadReplayCommand())
	return cmd
}

func (a *app) newThreadReplayCommand() *cobra.Command {
	var (
		flags   streamFlags
		speed   int
		instant bool
	)
	cmd := &cobra.Command{
		Use:   "replay <thread-id>",
		Short: "Replay the messages of a thread as if they were streamed",
		Example: `  agentctl thread replay 3f2a...
  agentctl thread replay 3f2a... --speed 600
  agentctl thread replay 3f2a... --instant --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if speed <= 0 && !instant {
				return clierrors.ValidationError(fmt.Errorf("--speed must be positive, got %d", speed), "Use --instant to print without delay.")
			}
			opts := replay.DefaultOptions()
			opts.CharsPerSecond = speed
			if instant {
				opts.CharsPerSecond = 0
			}

			pipeline, err := a.pipeline(flags)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			player := replay.New(opts, a.log.Named("replay"))
			err = player.Replay(cmd.Context(), a.backend(), args[0], func(event streaming.StreamEvent) error {
				return pipeline.Process(event)
			})
			if err != nil {
				if cmd.Context().Err() != nil {
					// Interrupted by the user.
					return nil
				}
				return err
			}
			return pipeline.Process(streaming.NewDoneEvent())
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&speed, "speed", replay.DefaultCharsPerSecond, "typing speed in characters per second")
	cmd.Flags().BoolVar(&instant, "instant", false, "print all messages without delay")
	return cmd
}
