package cli

import (
	"testing"

	clierrors "github.com/agentdeck/agentctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadReplayInstant(t *testing.T) {
	_, srv := newFakeAPI(t)
	testEnv(t, srv.URL)

	stdout, _, err := executeCommand("thread", "replay", "th-1", "--instant", "--format", "json")
	require.NoError(t, err)

	events := ndjson(t, stdout)
	assert.Equal(t, []string{"message", "message_chunk", "done"}, eventTypes(events))
	assert.Equal(t, "hi", events[0]["message"].(map[string]interface{})["content"])
	assert.Equal(t, "hello there", events[1]["message"].(map[string]interface{})["content"])
}

func TestThreadReplayText(t *testing.T) {
	_, srv := newFakeAPI(t)
	testEnv(t, srv.URL)

	stdout, _, err := executeCommand("thread", "replay", "th-1", "--instant", "--format", "text", "--markdown=false")
	require.NoError(t, err)
	assert.Contains(t, stdout, "User:")
	assert.Contains(t, stdout, "Assistant:")
	assert.Contains(t, stdout, "hello there")
}

func TestThreadReplayRejectsBadSpeed(t *testing.T) {
	_, srv := newFakeAPI(t)
	testEnv(t, srv.URL)

	_, _, err := executeCommand("thread", "replay", "th-1", "--speed", "0")
	require.Error(t, err)
	assert.Equal(t, clierrors.ExitCodeValidation, clierrors.ExitCodeFromError(err))
}

func TestThreadReplayUnknownThread(t *testing.T) {
	_, srv := newFakeAPI(t)
	testEnv(t, srv.URL)

	_, _, err := executeCommand("thread", "replay", "th-unknown", "--instant")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "th-unknown")
	assert.Equal(t, clierrors.ExitCodeNotFound, clierrors.ExitCodeFromError(err))
}
