package strategy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/goccy/go-json"

	"github.com/santosrai/flowgrid/internal/httpclient"
	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/schema"
	"github.com/santosrai/flowgrid/internal/template"
)

// nativeClient performs calls to absolute external URLs, bypassing the
// injected collaborator.
var nativeClient = &http.Client{Timeout: 60 * time.Second}

// apiCallStrategy builds and sends one HTTP request from the node's
// templated descriptor fields.
type apiCallStrategy struct {
	resolver *template.Resolver
	client   httpclient.Client
}

func (s *apiCallStrategy) Type() string { return schema.StrategyAPICall }

func (s *apiCallStrategy) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	// Resolve against the effective config: node config with definition
	// defaults filled underneath, so a field that resolves empty falls back
	// to its default value.
	effective := effectiveConfig(ec)
	tctx := ec.TemplateContext()
	tctx.Config = effective

	endpoint := s.stringField(ec, tctx, effective, "endpoint")
	if endpoint == "" {
		return nil, &pipeline.ConfigurationError{
			NodeID: ec.Node.ID,
			Field:  "endpoint",
			Msg:    "missing endpoint",
			Hint:   "configure the URL",
		}
	}

	method := strings.ToUpper(s.stringField(ec, tctx, effective, "method"))
	if method == "" {
		method = http.MethodGet
	}

	headersRaw := s.mapField(ec, tctx, "headers")
	query := stringMap(template.StripFlags(s.mapField(ec, tctx, "query_params")))

	flags := collectFlags(headersRaw, effective)
	headers := stringMap(template.StripFlags(headersRaw))
	applyAuth(headers, flags)

	body, contentType, err := s.resolveBody(ec, tctx, effective, flags, method)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		if _, set := headers["Content-Type"]; !set {
			headers["Content-Type"] = contentType
		}
	}

	request := &pipeline.RequestEnvelope{
		Method:  method,
		URL:     endpoint,
		Headers: headers,
		Query:   query,
		Body:    body,
	}

	response, err := s.send(ctx, request)
	if err != nil {
		return nil, &pipeline.HTTPError{Request: request, Err: err}
	}
	if response.Status < 200 || response.Status >= 300 {
		return nil, &pipeline.HTTPError{
			Status:   response.Status,
			Request:  request,
			Response: response,
		}
	}

	return &Result{Data: response.Data, Request: request, Response: response}, nil
}

// stringField resolves a descriptor template field to a string, falling back
// to the effective config value under the same name when the template
// resolves empty.
func (s *apiCallStrategy) stringField(ec ExecContext, tctx template.Context, effective map[string]any, name string) string {
	if raw := ec.Definition.Execution.Field(name); raw != nil {
		if v := template.Stringify(resolveDeep(s.resolver, raw, tctx)); v != "" {
			return v
		}
	}
	return template.Stringify(resolveDeep(s.resolver, effective[name], tctx))
}

// mapField resolves a descriptor field expected to produce a map. The field
// may be the map itself or a template pointing at one; values inside the map
// are resolved in a second pass.
func (s *apiCallStrategy) mapField(ec ExecContext, tctx template.Context, name string) map[string]any {
	resolved := s.resolver.Resolve(ec.Definition.Execution.Field(name), tctx)
	m, ok := resolved.(map[string]any)
	if !ok {
		return nil
	}
	resolved = s.resolver.Resolve(m, tctx)
	m, _ = resolved.(map[string]any)
	return m
}

// resolveBody produces the request body and its content type from the body
// kind declared by flags, descriptor or config.
func (s *apiCallStrategy) resolveBody(ec ExecContext, tctx template.Context, effective map[string]any, flags map[string]any, method string) (any, string, error) {
	sendBody := method != http.MethodGet && method != http.MethodHead
	if v, ok := flags[template.FlagSendBody]; ok {
		sendBody = isTruthy(v)
	}
	if !sendBody {
		return nil, "", nil
	}

	kind := template.Stringify(flags[template.FlagBodyType])
	if kind == "" {
		kind = s.stringField(ec, tctx, effective, "body_type")
	}

	payloadField := ec.Definition.Execution.Field("payload")
	if payloadField == nil {
		payloadField = effective["payload"]
	}

	// An unset kind falls through to the legacy structured path below, so a
	// POST with a payload and no declared body_type still sends the payload.
	// Only an explicit "none" suppresses the body.
	switch kind {
	case "none":
		return nil, "", nil

	case "json":
		// A JSON literal authored verbatim. The descriptor field is resolved
		// once to fetch the literal; the literal's own content is not
		// templated.
		fetched := s.resolver.Resolve(payloadField, tctx)
		if m, ok := fetched.(map[string]any); ok {
			return template.StripFlags(m), "application/json", nil
		}
		raw, _ := fetched.(string)
		if raw == "" {
			return nil, "", nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, "", &pipeline.ConfigurationError{
				NodeID: ec.Node.ID,
				Field:  "payload",
				Msg:    fmt.Sprintf("invalid JSON body: %v", err),
			}
		}
		return parsed, "application/json", nil

	case "json_templated":
		raw := template.Stringify(resolveDeep(s.resolver, payloadField, tctx))
		if raw == "" {
			return nil, "", nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, "", &pipeline.ConfigurationError{
				NodeID: ec.Node.ID,
				Field:  "payload",
				Msg:    fmt.Sprintf("invalid JSON body after template resolution: %v", err),
			}
		}
		return parsed, "application/json", nil

	case "text", "raw":
		return template.Stringify(resolveDeep(s.resolver, payloadField, tctx)), "text/plain", nil

	case "xml":
		return template.Stringify(resolveDeep(s.resolver, payloadField, tctx)), "application/xml", nil

	default:
		// Legacy structured payload: a map or list resolved field by field,
		// with dispatcher flags stripped from what is forwarded.
		resolved := resolveDeep(s.resolver, payloadField, tctx)
		if m, ok := resolved.(map[string]any); ok {
			return template.StripFlags(m), "application/json", nil
		}
		if resolved == nil {
			return nil, "", nil
		}
		return resolved, "application/json", nil
	}
}

// send executes the request: absolute URLs go through the native client,
// relative ones through the injected collaborator.
func (s *apiCallStrategy) send(ctx context.Context, req *pipeline.RequestEnvelope) (*pipeline.ResponseEnvelope, error) {
	var bodyBytes []byte
	if req.Body != nil {
		switch b := req.Body.(type) {
		case string:
			bodyBytes = []byte(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			bodyBytes = encoded
		}
	}

	if httpclient.IsAbsoluteURL(req.URL) {
		return s.sendNative(ctx, req, bodyBytes)
	}

	if s.client == nil {
		return nil, fmt.Errorf("relative endpoint %q requires an injected HTTP client", req.URL)
	}
	cfg := httpclient.RequestConfig{Headers: req.Headers, Query: req.Query}
	var resp *httpclient.Response
	var err error
	if req.Method == http.MethodGet {
		resp, err = s.client.Get(ctx, req.URL, cfg)
	} else {
		resp, err = s.client.Post(ctx, req.URL, bodyBytes, cfg)
	}
	if err != nil {
		return nil, err
	}
	return toEnvelope(resp), nil
}

func (s *apiCallStrategy) sendNative(ctx context.Context, req *pipeline.RequestEnvelope, bodyBytes []byte) (*pipeline.ResponseEnvelope, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	resp, err := nativeClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	drained, err := httpclient.FromHTTPResponse(resp)
	if err != nil {
		return nil, err
	}
	return toEnvelope(drained), nil
}

// toEnvelope converts a transport response into the logged envelope shape,
// decoding JSON bodies when possible.
func toEnvelope(resp *httpclient.Response) *pipeline.ResponseEnvelope {
	env := &pipeline.ResponseEnvelope{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
	}
	if len(resp.Body) == 0 {
		return env
	}
	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err == nil {
		env.Data = decoded
	} else {
		env.Data = string(resp.Body)
	}
	return env
}

// effectiveConfig returns the node config with definition defaults merged
// underneath; the node's own values always win.
func effectiveConfig(ec ExecContext) map[string]any {
	effective := make(map[string]any, len(ec.Node.Config))
	for k, v := range ec.Node.Config {
		effective[k] = v
	}
	if len(ec.Definition.DefaultConfig) > 0 {
		// Merge fills only the keys the node config leaves unset.
		_ = mergo.Merge(&effective, ec.Definition.DefaultConfig)
	}
	return effective
}

// collectFlags gathers reserved dispatcher flags from the resolved headers
// material and the effective config, headers taking precedence.
func collectFlags(headers map[string]any, effective map[string]any) map[string]any {
	flags := make(map[string]any)
	for k, v := range effective {
		if template.IsReservedFlag(k) {
			flags[k] = v
		}
	}
	for k, v := range headers {
		if template.IsReservedFlag(k) {
			flags[k] = v
		}
	}
	return flags
}

// applyAuth folds authentication flags into headers and drops headers whose
// resolved value is empty.
func applyAuth(headers map[string]string, flags map[string]any) {
	switch template.Stringify(flags[template.FlagAuthType]) {
	case "basic":
		user := template.Stringify(flags[template.FlagAuthUsername])
		pass := template.Stringify(flags[template.FlagAuthPassword])
		if user != "" || pass != "" {
			creds := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			headers["Authorization"] = "Basic " + creds
		}
	case "bearer":
		if token := template.Stringify(flags[template.FlagAuthToken]); token != "" {
			headers["Authorization"] = "Bearer " + token
		}
	case "custom":
		name := template.Stringify(flags[template.FlagAuthHeaderName])
		value := template.Stringify(flags[template.FlagAuthHeaderValue])
		if name != "" && value != "" {
			headers[name] = value
		}
	}

	for k, v := range headers {
		if v == "" {
			delete(headers, k)
		}
	}
}

// stringMap stringifies map values, dropping entries that resolve empty.
func stringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		s := template.Stringify(v)
		if s == "" {
			continue
		}
		out[k] = s
	}
	return out
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "1" || val == "yes"
	case float64:
		return val != 0
	default:
		return v != nil
	}
}
