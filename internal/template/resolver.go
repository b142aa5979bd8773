// Package template resolves `{{path}}` expressions embedded in node config
// and strategy descriptors against a per-node context.
//
// The context object has exactly three roots: `input` (the data resolved
// from upstream nodes), `config` (the node's own config map) and `node`
// (id/type/label/status metadata). Resolution is a pure path lookup over a
// defined grammar (identifiers, dot access and integer indexes) and never
// executes code. A missing path resolves to an empty value; resolution never
// returns an error to its caller.
//
// A string that consists of a single `{{path}}` expression resolves to the
// typed value at that path; a string with surrounding text interpolates the
// stringified values. Maps and slices are walked recursively; everything
// else passes through unchanged.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-json"

	"github.com/santosrai/flowgrid/internal/pipeline"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// pathPattern is the accepted `{{path}}` grammar. Anything outside it (calls,
// operators, literals) is rejected and resolves to empty: templates are
// lookups, not programs.
var pathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*|\[[0-9]+\])*$`)

// Resolver interpolates template expressions. It is safe for concurrent use;
// compiled path programs are cached across calls.
type Resolver struct {
	programs sync.Map // path string -> *vm.Program
}

// NewResolver creates a Resolver with an empty program cache.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Context is the typed lookup environment for one node's templates.
type Context struct {
	Input  any
	Config map[string]any
	Node   map[string]any
}

// NodeContext builds the lookup context for a node and its resolved input
// data.
func NodeContext(node *pipeline.Node, input any) Context {
	return Context{
		Input:  input,
		Config: node.Config,
		Node: map[string]any{
			"id":     node.ID,
			"type":   node.Type,
			"label":  node.Label,
			"status": string(node.Status),
		},
	}
}

func (c Context) env() map[string]any {
	input := c.Input
	if input == nil {
		input = map[string]any{}
	}
	config := c.Config
	if config == nil {
		config = map[string]any{}
	}
	return map[string]any{
		"input":  input,
		"config": config,
		"node":   c.Node,
	}
}

// Resolve recursively walks value, replacing every `{{path}}` expression
// with its context lookup. Non-template values pass through unchanged.
func (r *Resolver) Resolve(value any, ctx Context) any {
	switch v := value.(type) {
	case string:
		return r.resolveString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = r.Resolve(item, ctx)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = r.Resolve(item, ctx)
		}
		return out
	default:
		return value
	}
}

// ResolveString resolves a single string template and stringifies the
// result. Convenience for strategy fields that must end up as strings
// (endpoint, method, message).
func (r *Resolver) ResolveString(raw string, ctx Context) string {
	return Stringify(r.resolveString(raw, ctx))
}

func (r *Resolver) resolveString(raw string, ctx Context) any {
	if !strings.Contains(raw, openDelim) {
		return raw
	}

	// A lone "{{path}}" keeps the looked-up value's type.
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, openDelim) && strings.HasSuffix(trimmed, closeDelim) {
		inner := trimmed[len(openDelim) : len(trimmed)-len(closeDelim)]
		if !strings.Contains(inner, openDelim) && !strings.Contains(inner, closeDelim) {
			return r.lookup(strings.TrimSpace(inner), ctx)
		}
	}

	// Mixed text: interpolate each expression as a string.
	var b strings.Builder
	remaining := raw
	for {
		start := strings.Index(remaining, openDelim)
		if start == -1 {
			b.WriteString(remaining)
			break
		}
		end := strings.Index(remaining[start:], closeDelim)
		if end == -1 {
			// Unterminated expression: keep the rest verbatim.
			b.WriteString(remaining)
			break
		}

		b.WriteString(remaining[:start])
		ref := strings.TrimSpace(remaining[start+len(openDelim) : start+end])
		b.WriteString(Stringify(r.lookup(ref, ctx)))
		remaining = remaining[start+end+len(closeDelim):]
	}
	return b.String()
}

// lookup evaluates a single path expression against the context. Any
// failure (malformed path, unknown root, missing key, index out of range)
// yields nil, per the documented missing-path policy.
func (r *Resolver) lookup(path string, ctx Context) any {
	if path == "" || !pathPattern.MatchString(path) {
		return nil
	}

	program, err := r.program(path)
	if err != nil {
		return nil
	}

	out, err := expr.Run(program, ctx.env())
	if err != nil {
		return nil
	}
	return out
}

func (r *Resolver) program(path string) (*vm.Program, error) {
	if cached, ok := r.programs.Load(path); ok {
		return cached.(*vm.Program), nil
	}

	program, err := expr.Compile(path, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	r.programs.Store(path, program)
	return program, nil
}

// Stringify converts a resolved value into its interpolated string form.
// Maps and slices are JSON-encoded; nil becomes the empty string.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		// JSON numbers arrive as float64; render integral values without a
		// decimal point.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case []byte:
		return string(val)
	case map[string]any, []any:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// HasTemplate reports whether a string contains a template expression.
func HasTemplate(raw string) bool {
	return strings.Contains(raw, openDelim) && strings.Contains(raw, closeDelim)
}
