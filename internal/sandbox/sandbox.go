// Package sandbox evaluates user-authored node scripts in an isolated
// scope.
//
// Scripts are expr-lang expressions. The evaluation environment exposes only
// a whitelisted surface (the node's resolved input, its config, its
// metadata, a restricted logging function, a clock, and JSON helpers), and
// the interpreter itself has no access to the host filesystem, network or
// environment. A wall-clock timeout bounds every evaluation; scripts cannot
// block the run loop indefinitely.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/goccy/go-json"

	"github.com/santosrai/flowgrid/internal/ctxlog"
)

// DefaultTimeout bounds script evaluation when the node config does not set
// one.
const DefaultTimeout = 10 * time.Second

// ErrTimeout is returned when a script exceeds its wall-clock budget.
var ErrTimeout = errors.New("script evaluation timed out")

// Scope is the whitelisted data surface visible to a script.
type Scope struct {
	Input  any
	Config map[string]any
	Node   map[string]any
}

// Run evaluates code against the scope and returns its value. A leading
// "return" keyword is tolerated so canvas-authored snippets read naturally.
// Errors raised inside the script (including fail(...) calls) come back
// verbatim for the caller to wrap.
func Run(ctx context.Context, code string, scope Scope, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := ctxlog.FromContext(ctx).With("component", "sandbox")

	code = normalize(code)
	if code == "" {
		return nil, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := buildEnv(runCtx, scope, logger)
	program, err := expr.Compile(code,
		expr.AllowUndefinedVariables(),
		expr.WithContext("ctx"),
	)
	if err != nil {
		return nil, fmt.Errorf("script compile: %w", err)
	}

	type evalResult struct {
		value any
		err   error
	}
	done := make(chan evalResult, 1)
	go func() {
		value, err := expr.Run(program, env)
		done <- evalResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, runCtx.Err()
	}
}

// normalize strips the return-statement syntax the canvas code editor
// encourages; the remainder must be a single expression.
func normalize(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimSuffix(code, ";")
	if rest, ok := strings.CutPrefix(code, "return "); ok {
		code = strings.TrimSpace(rest)
	}
	return code
}

func buildEnv(ctx context.Context, scope Scope, logger *slog.Logger) map[string]any {
	input := scope.Input
	if input == nil {
		input = map[string]any{}
	}
	config := scope.Config
	if config == nil {
		config = map[string]any{}
	}

	return map[string]any{
		"ctx":    ctx,
		"input":  input,
		"config": config,
		"node":   scope.Node,

		// Restricted logging facility: messages land in the engine log,
		// tagged with the node, nothing else.
		"log": func(args ...any) any {
			logger.Info("script log", "message", fmt.Sprint(args...))
			return nil
		},

		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},

		"jsonEncode": func(v any) (string, error) {
			out, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
		"jsonDecode": func(s string) (any, error) {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, err
			}
			return out, nil
		},

		// fail aborts the script with the given message; the engine surfaces
		// it as a script execution error.
		"fail": func(msg string) (any, error) {
			return nil, errors.New(msg)
		},
	}
}
