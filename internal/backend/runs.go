package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/agentdeck/agentctl/internal/backend/entities"
)

// GetAgentRun fetches the current state of a run.
func (c *Client) GetAgentRun(ctx context.Context, runID string) (*entities.AgentRun, error) {
	var run entities.AgentRun
	if err := c.get(ctx, "/agent-run/"+escape(runID), &run); err != nil {
		return nil, err
	}
	if run.ID == "" {
		run.ID = runID
	}
	return &run, nil
}

// GetRunStatus returns only the status of a run.
func (c *Client) GetRunStatus(ctx context.Context, runID string) (entities.RunStatus, error) {
	run, err := c.GetAgentRun(ctx, runID)
	if err != nil {
		return "", err
	}
	return run.Status, nil
}

// StartAgent starts a new run on threadID.
func (c *Client) StartAgent(ctx context.Context, threadID string, req *entities.StartAgentRequest) (*entities.StartAgentResponse, error) {
	if req == nil {
		req = &entities.StartAgentRequest{Stream: true}
	}
	var resp entities.StartAgentResponse
	if err := c.post(ctx, fmt.Sprintf("/thread/%s/agent/start", escape(threadID)), req, &resp); err != nil {
		return nil, err
	}
	if resp.AgentRunID == "" {
		return nil, fmt.Errorf("backend did not return an agent run id for thread %s", threadID)
	}
	return &resp, nil
}

// StopAgentRun asks the backend to stop a run.
func (c *Client) StopAgentRun(ctx context.Context, runID string) error {
	return c.post(ctx, fmt.Sprintf("/agent-run/%s/stop", escape(runID)), map[string]string{}, nil)
}

// ListThreadRuns lists the runs of a thread, newest first as the backend returns them.
func (c *Client) ListThreadRuns(ctx context.Context, threadID string) ([]*entities.AgentRun, error) {
	var runs entities.ThreadRuns
	if err := c.get(ctx, fmt.Sprintf("/thread/%s/agent-runs", escape(threadID)), &runs); err != nil {
		return nil, err
	}
	return runs.AgentRuns, nil
}

// ListThreadMessages returns the persisted messages of a thread in creation order.
func (c *Client) ListThreadMessages(ctx context.Context, threadID string) ([]*entities.ThreadMessage, error) {
	var msgs entities.ThreadMessages
	if err := c.get(ctx, fmt.Sprintf("/threads/%s/messages", escape(threadID)), &msgs); err != nil {
		return nil, err
	}
	return msgs.Messages, nil
}

// StreamURL is the event-stream endpoint of a run. The stream transport cannot
// send headers, so the token travels as a query parameter.
func (c *Client) StreamURL(runID, token string) string {
	q := url.Values{}
	q.Set("token", token)
	return fmt.Sprintf("%s/agent-run/%s/stream?%s", c.baseURL, escape(runID), q.Encode())
}
