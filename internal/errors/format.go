package errors

import "strings"

var prefixes = map[ErrorType]string{
	ErrorTypeValidation: "Validation Error",
	ErrorTypeAuth:       "Authentication Error",
	ErrorTypeAPI:        "API Error",
	ErrorTypeNetwork:    "Network Error",
	ErrorTypeConfig:     "Configuration Error",
	ErrorTypeNotFound:   "Not Found",
	ErrorTypeRunState:   "Run Not Running",
	ErrorTypeStream:     "Stream Error",
}

// FormatError renders err for the terminal, hint included.
func FormatError(err *CLIError) string {
	if err == nil {
		return ""
	}

	prefix, ok := prefixes[err.Type]
	if !ok {
		prefix = "Error"
	}

	var sb strings.Builder
	sb.WriteString("✗ ")
	sb.WriteString(prefix)
	sb.WriteString(": ")
	sb.WriteString(err.Err.Error())
	if err.Context != "" {
		sb.WriteString("\n\n")
		sb.WriteString(err.Context)
	}
	return sb.String()
}

// Format classifies and renders any error.
func Format(err error) string {
	if err == nil {
		return ""
	}
	return FormatError(Classify(err))
}
