package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/agentdeck/agentctl/internal/auth"
	"github.com/agentdeck/agentctl/internal/backend"
	"github.com/agentdeck/agentctl/internal/runstream"
	"github.com/agentdeck/agentctl/internal/sse"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
		code int
	}{
		{"missing credential", fmt.Errorf("open: %w", auth.ErrNoCredential), ErrorTypeAuth, ExitCodeAuth},
		{"unauthorized", &backend.APIError{StatusCode: 401}, ErrorTypeAuth, ExitCodeAuth},
		{"not found", &backend.APIError{StatusCode: 404}, ErrorTypeNotFound, ExitCodeNotFound},
		{"server error", &backend.APIError{StatusCode: 500, Body: "boom"}, ErrorTypeAPI, ExitCodeAPI},
		{"stopped run", &runstream.NotRunningError{RunID: "r", Status: "stopped"}, ErrorTypeRunState, ExitCodeRunState},
		{"not in active runs", runstream.ErrRunNotInActiveRuns, ErrorTypeRunState, ExitCodeRunState},
		{"reconnects exhausted", fmt.Errorf("%w after 10 attempts", sse.ErrReconnectExhausted), ErrorTypeStream, ExitCodeStream},
		{"network", &net.OpError{Op: "dial", Err: stderrors.New("refused")}, ErrorTypeNetwork, ExitCodeNetwork},
		{"other", stderrors.New("disk full"), ErrorTypeRuntime, ExitCodeRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cliErr := Classify(tt.err)
			assert.Equal(t, tt.want, cliErr.Type)
			assert.ErrorIs(t, cliErr, tt.err)
			assert.Equal(t, tt.code, ExitCodeFromError(tt.err))
		})
	}
}

func TestClassifyKeepsCLIError(t *testing.T) {
	orig := ValidationError(stderrors.New("run id required"), "Usage: agentctl run stream <run-id>")
	wrapped := fmt.Errorf("command failed: %w", orig)
	assert.Same(t, orig, Classify(wrapped))
	assert.Equal(t, ExitCodeValidation, ExitCodeFromError(wrapped))
	assert.Nil(t, Classify(nil))
	assert.Equal(t, ExitCodeSuccess, ExitCodeFromError(nil))
}

func TestFormat(t *testing.T) {
	out := Format(auth.ErrNoCredential)
	assert.Contains(t, out, "✗ Authentication Error: ")
	assert.Contains(t, out, "agentctl auth login")

	assert.Equal(t, "✗ Error: boom", Format(stderrors.New("boom")))
	assert.Empty(t, Format(nil))
}
