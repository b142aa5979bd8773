package flowgrid

import (
	"github.com/santosrai/flowgrid/internal/events"
	"github.com/santosrai/flowgrid/internal/httpclient"
	"github.com/santosrai/flowgrid/internal/pipeline"
)

// Graph and execution model, re-exported for hosting applications.
type (
	Pipeline          = pipeline.Pipeline
	Node              = pipeline.Node
	Edge              = pipeline.Edge
	Status            = pipeline.Status
	Execution         = pipeline.Execution
	ExecutionLogEntry = pipeline.ExecutionLogEntry
	RequestEnvelope   = pipeline.RequestEnvelope
	ResponseEnvelope  = pipeline.ResponseEnvelope
)

const (
	StatusIdle      = pipeline.StatusIdle
	StatusPending   = pipeline.StatusPending
	StatusRunning   = pipeline.StatusRunning
	StatusCompleted = pipeline.StatusCompleted
	StatusSuccess   = pipeline.StatusSuccess
	StatusError     = pipeline.StatusError
)

var (
	ErrDefinitionNotFound = pipeline.ErrDefinitionNotFound
	ErrCyclicPipeline     = pipeline.ErrCyclicPipeline
	ErrRunCanceled        = pipeline.ErrRunCanceled
)

// Error classification helpers.
var (
	IsConfigurationError = pipeline.IsConfigurationError
	IsValidationError    = pipeline.IsValidationError
)

// Typed node errors, for callers that need the structured fields.
type (
	ConfigurationError = pipeline.ConfigurationError
	ValidationError    = pipeline.ValidationError
	HTTPError          = pipeline.HTTPError
	ScriptError        = pipeline.ScriptError
)

// HTTP client abstraction for relative api_call endpoints.
type (
	HTTPClient        = httpclient.Client
	HTTPRequestConfig = httpclient.RequestConfig
	HTTPResponse      = httpclient.Response
)

// Boundary events.
type (
	RunStartedEvent    = events.RunStartedEvent
	NodeCompletedEvent = events.NodeCompletedEvent
	RunCompletedEvent  = events.RunCompletedEvent
	NodeSummary        = events.NodeSummary
)
