package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentdeck/agentctl/internal/backend/entities"
	clierrors "github.com/agentdeck/agentctl/internal/errors"
	"github.com/spf13/cobra"
)

func (a *app) newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"runs"},
		Short:   "Manage agent runs",
	}
	cmd.AddCommand(
		a.newRunStatusCommand(),
		a.newRunStartCommand(),
		a.newRunStopCommand(),
		a.newRunListCommand(),
		a.newRunStreamCommand(),
		a.newRunWatchCommand(),
	)
	return cmd
}

func (a *app) newRunStatusCommand() *cobra.Command {
	var outputFormat string
	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the status of an agent run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := a.backend().GetAgentRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outputFormat == "json" {
				return a.writeJSON(run)
			}
			return a.out.Table([]string{"RUN", "THREAD", "STATUS", "STARTED", "ERROR"}, [][]string{runRow(run)})
		},
	}
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	return cmd
}

func (a *app) newRunStartCommand() *cobra.Command {
	var (
		threadID string
		req      entities.StartAgentRequest
		follow   bool
	)
	cmd := &cobra.Command{
		Use:   "start --thread <thread-id>",
		Short: "Start an agent run on a thread",
		Example: `  agentctl run start --thread 3f2a... --model claude-sonnet
  agentctl run start --thread 3f2a... --stream`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if threadID == "" {
				return clierrors.ValidationError(fmt.Errorf("--thread is required"), "")
			}
			req.Stream = true
			resp, err := a.backend().StartAgent(cmd.Context(), threadID, &req)
			if err != nil {
				return err
			}
			if !follow {
				fmt.Fprintln(a.stdout, resp.AgentRunID)
				return nil
			}
			a.console.Success("Agent run started", "run", resp.AgentRunID)
			return a.streamRun(cmd.Context(), resp.AgentRunID, streamFlags{markdown: true})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&threadID, "thread", "", "thread to run the agent on")
	flags.StringVar(&req.ModelName, "model", "", "model name")
	flags.BoolVar(&req.EnableThinking, "thinking", false, "enable extended thinking")
	flags.StringVar(&req.ReasoningEffort, "reasoning-effort", "", "reasoning effort: low, medium or high")
	flags.StringVar(&req.AgentID, "agent", "", "agent to run instead of the default")
	flags.BoolVar(&follow, "stream", false, "follow the run output after starting it")
	return cmd
}

func (a *app) newRunStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <run-id>",
		Short: "Stop an agent run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.backend().StopAgentRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.console.Success("Agent run stopped", "run", args[0])
			return nil
		},
	}
}

func (a *app) newRunListCommand() *cobra.Command {
	var (
		threadID     string
		outputFormat string
	)
	cmd := &cobra.Command{
		Use:     "list --thread <thread-id>",
		Aliases: []string{"ls"},
		Short:   "List the agent runs of a thread",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if threadID == "" {
				return clierrors.ValidationError(fmt.Errorf("--thread is required"), "")
			}
			runs, err := a.backend().ListThreadRuns(cmd.Context(), threadID)
			if err != nil {
				return err
			}
			if outputFormat == "json" {
				return a.writeJSON(runs)
			}
			if len(runs) == 0 {
				a.console.Info("No agent runs", "thread", threadID)
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, runRow(run))
			}
			return a.out.Table([]string{"RUN", "THREAD", "STATUS", "STARTED", "ERROR"}, rows)
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread whose runs to list")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	return cmd
}

func runRow(run *entities.AgentRun) []string {
	started := "-"
	if run.StartedAt != nil && !run.StartedAt.IsZero() {
		started = run.StartedAt.Local().Format(time.DateTime)
	}
	errText := ""
	if run.Error != nil {
		errText = *run.Error
	}
	return []string{run.ID, run.ThreadID, string(run.Status), started, errText}
}

func (a *app) writeJSON(v interface{}) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
