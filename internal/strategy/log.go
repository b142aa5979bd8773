package strategy

import (
	"context"
	"time"

	"github.com/santosrai/flowgrid/internal/ctxlog"
	"github.com/santosrai/flowgrid/internal/schema"
	"github.com/santosrai/flowgrid/internal/template"
)

// logStrategy emits a templated message. It doubles as a cheap pass-through
// or test node on the canvas.
type logStrategy struct {
	resolver *template.Resolver
}

func (s *logStrategy) Type() string { return schema.StrategyLog }

func (s *logStrategy) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	tctx := ec.TemplateContext()
	tctx.Config = effectiveConfig(ec)

	message := template.Stringify(resolveDeep(s.resolver, ec.Definition.Execution.Field("message"), tctx))
	if message == "" {
		message = template.Stringify(s.resolver.Resolve(tctx.Config["message"], tctx))
	}

	ctxlog.FromContext(ctx).Info("log node",
		"node_id", ec.Node.ID,
		"node_label", ec.Node.Label,
		"message", message,
	)

	return &Result{Data: map[string]any{
		"message":  message,
		"loggedAt": time.Now().UTC().Format(time.RFC3339),
	}}, nil
}
