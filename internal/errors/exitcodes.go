package errors

const (
	ExitCodeSuccess    = 0
	ExitCodeRuntime    = 1
	ExitCodeValidation = 2
	ExitCodeAuth       = 3
	ExitCodeAPI        = 4
	ExitCodeNetwork    = 5
	ExitCodeConfig     = 6
	ExitCodeNotFound   = 7
	// ExitCodeRunState is returned when a run is not in the state the
	// command needs, e.g. streaming a stopped run.
	ExitCodeRunState = 8
	ExitCodeStream   = 9
)

// ExitCode returns the exit code for an error type.
func ExitCode(t ErrorType) int {
	switch t {
	case ErrorTypeValidation:
		return ExitCodeValidation
	case ErrorTypeAuth:
		return ExitCodeAuth
	case ErrorTypeAPI:
		return ExitCodeAPI
	case ErrorTypeNetwork:
		return ExitCodeNetwork
	case ErrorTypeConfig:
		return ExitCodeConfig
	case ErrorTypeNotFound:
		return ExitCodeNotFound
	case ErrorTypeRunState:
		return ExitCodeRunState
	case ErrorTypeStream:
		return ExitCodeStream
	default:
		return ExitCodeRuntime
	}
}

// ExitCodeFromError classifies err and returns its exit code.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	return ExitCode(Classify(err).Type)
}
