// Package errors gives CLI failures a category, a user facing hint and an
// exit code.
package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/agentdeck/agentctl/internal/auth"
	"github.com/agentdeck/agentctl/internal/backend"
	"github.com/agentdeck/agentctl/internal/runstream"
	"github.com/agentdeck/agentctl/internal/sse"
)

// ErrorType is the category of a CLI failure.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeAuth
	ErrorTypeAPI
	ErrorTypeNetwork
	ErrorTypeRuntime
	ErrorTypeConfig
	// ErrorTypeNotFound is an unknown run or thread.
	ErrorTypeNotFound
	// ErrorTypeRunState is an operation refused because of the run's status.
	ErrorTypeRunState
	// ErrorTypeStream is a stream that ended abnormally.
	ErrorTypeStream
)

// CLIError carries an error with its category and an optional hint.
type CLIError struct {
	Type    ErrorType
	Err     error
	Context string
}

func (e *CLIError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%v\n%s", e.Err, e.Context)
	}
	return e.Err.Error()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, err error, context string) *CLIError {
	return &CLIError{Type: t, Err: err, Context: context}
}

// ValidationError is a usage problem; the hint usually shows correct usage.
func ValidationError(err error, context string) *CLIError {
	return newError(ErrorTypeValidation, err, context)
}

func AuthError(err error) *CLIError {
	return newError(ErrorTypeAuth, err, "Run 'agentctl auth login' or set AGENTCTL_TOKEN.")
}

func APIError(err error) *CLIError {
	return newError(ErrorTypeAPI, err, "")
}

func NetworkError(err error) *CLIError {
	return newError(ErrorTypeNetwork, err, "Check AGENTCTL_API_URL and your connection.")
}

func RuntimeError(err error) *CLIError {
	return newError(ErrorTypeRuntime, err, "")
}

func ConfigError(err error, context string) *CLIError {
	return newError(ErrorTypeConfig, err, context)
}

func NotFoundError(err error) *CLIError {
	return newError(ErrorTypeNotFound, err, "")
}

func StreamError(err error) *CLIError {
	return newError(ErrorTypeStream, err, "")
}

// Classify maps an error from the client packages to a CLIError. A CLIError
// anywhere in the chain is returned unchanged.
func Classify(err error) *CLIError {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr
	}

	var apiErr *backend.APIError
	var netErr net.Error
	switch {
	case stderrors.Is(err, auth.ErrNoCredential), stderrors.Is(err, auth.ErrTokenExpired):
		return AuthError(err)
	case stderrors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden):
		return AuthError(err)
	case stderrors.Is(err, runstream.ErrRunNotRunning), stderrors.Is(err, runstream.ErrRunNotInActiveRuns):
		return newError(ErrorTypeRunState, err, "")
	case backend.IsNotFound(err):
		return NotFoundError(err)
	case apiErr != nil:
		return APIError(err)
	case stderrors.Is(err, sse.ErrReconnectExhausted), sse.IsPermanent(err):
		return StreamError(err)
	case stderrors.As(err, &netErr):
		return NetworkError(err)
	}
	return RuntimeError(err)
}
