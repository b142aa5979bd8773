package strategy

import (
	"context"
	"time"

	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/sandbox"
	"github.com/santosrai/flowgrid/internal/schema"
	"github.com/santosrai/flowgrid/internal/template"
)

// codeExecutionStrategy runs the node's script in the sandbox.
type codeExecutionStrategy struct {
	resolver *template.Resolver
}

func (s *codeExecutionStrategy) Type() string { return schema.StrategyCodeExecution }

func (s *codeExecutionStrategy) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	tctx := ec.TemplateContext()
	effective := effectiveConfig(ec)
	tctx.Config = effective

	code := ec.Definition.Execution.StringField("code")
	if template.HasTemplate(code) {
		code = template.Stringify(s.resolver.Resolve(code, tctx))
	}
	if code == "" {
		code = template.Stringify(effective["code"])
	}
	if code == "" {
		return nil, &pipeline.ConfigurationError{
			NodeID: ec.Node.ID,
			Field:  "code",
			Msg:    "no script configured",
		}
	}

	timeout := sandbox.DefaultTimeout
	if secs, ok := effective["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	scope := sandbox.Scope{
		Input:  tctx.Input,
		Config: template.StripFlags(effective),
		Node:   tctx.Node,
	}
	value, err := sandbox.Run(ctx, code, scope, timeout)
	if err != nil {
		return nil, &pipeline.ScriptError{NodeID: ec.Node.ID, Err: err}
	}

	if value == nil {
		value = map[string]any{
			"executed":  true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}
	return &Result{Data: value}, nil
}
