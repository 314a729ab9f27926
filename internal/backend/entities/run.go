package entities

import (
	"encoding/json"
	"strings"
)

// RunStatus is the backend-reported state of an agent run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusError     RunStatus = "error"
)

// UnmarshalJSON normalises the status to lower case.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(strings.ToLower(strings.TrimSpace(str)))
	return nil
}

// IsRunning reports whether the run is still executing.
func (s RunStatus) IsRunning() bool {
	return s == RunStatusRunning
}

// IsTerminal reports whether the backend will never move the run again.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusStopped, RunStatusError:
		return true
	}
	return false
}

// AgentRun is one execution of an agent against a thread.
type AgentRun struct {
	ID          string     `json:"id"`
	ThreadID    string     `json:"thread_id"`
	Status      RunStatus  `json:"status"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   *Timestamp `json:"started_at,omitempty"`
	CompletedAt *Timestamp `json:"completed_at,omitempty"`
}

// StartAgentRequest is the body of POST /thread/{id}/agent/start.
type StartAgentRequest struct {
	ModelName       string `json:"model_name,omitempty"`
	EnableThinking  bool   `json:"enable_thinking,omitempty"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	Stream          bool   `json:"stream"`
	AgentID         string `json:"agent_id,omitempty"`
}

// StartAgentResponse is returned when a run is created.
type StartAgentResponse struct {
	AgentRunID string    `json:"agent_run_id"`
	Status     RunStatus `json:"status"`
}

// ThreadRuns wraps the list endpoint payload.
type ThreadRuns struct {
	AgentRuns []*AgentRun `json:"agent_runs"`
}
