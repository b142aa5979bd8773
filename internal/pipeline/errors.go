package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDefinitionNotFound is returned by the registry for unknown node types.
	ErrDefinitionNotFound = errors.New("node definition not found")
	// ErrCyclicPipeline is returned when the graph contains a dependency cycle.
	ErrCyclicPipeline = errors.New("pipeline contains a cycle")
	// ErrRunCanceled is recorded when a run stops at a node boundary because
	// cancellation was requested.
	ErrRunCanceled = errors.New("run canceled")
)

// ConfigurationError marks a node whose definition or config makes it
// unexecutable: an unknown execution type, a missing endpoint, a missing
// identifying field. It is fatal to that node only.
type ConfigurationError struct {
	NodeID string
	Field  string
	Msg    string
	Hint   string
}

func (e *ConfigurationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("node %s: %s (%s)", e.NodeID, e.Msg, e.Hint)
	}
	return fmt.Sprintf("node %s: %s", e.NodeID, e.Msg)
}

// ValidationError marks a node whose declared requirements could not be
// satisfied: a required input handle with no upstream data, or a missing
// required schema field. Detectable pre-run via the validation pass, but
// still fatal to that node only when it surfaces during a run.
type ValidationError struct {
	NodeID string
	Handle string
	Field  string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("node %s: input %q: %s", e.NodeID, e.Handle, e.Msg)
	}
	return fmt.Sprintf("node %s: %s", e.NodeID, e.Msg)
}

// HTTPError carries the full request and response envelopes of a failed
// api_call node so the execution log can show exactly what was sent and
// received. A nil Response means the request never completed (network
// failure).
type HTTPError struct {
	Status   int
	Request  *RequestEnvelope
	Response *ResponseEnvelope
	Err      error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http request failed: %v", e.Err)
	}
	return fmt.Sprintf("http request failed with status %d", e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// ScriptError wraps an error raised inside the isolated code_execution
// scope, preserving the original message.
type ScriptError struct {
	NodeID string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script execution failed: %v", e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
