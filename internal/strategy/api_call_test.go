package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santosrai/flowgrid/internal/httpclient"
	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/schema"
	"github.com/santosrai/flowgrid/internal/template"
)

// apiCallDefinition mirrors the shipped api_call document: every descriptor
// field is a template over config.
func apiCallDefinition() *schema.Definition {
	return &schema.Definition{
		Type: "api_call",
		Execution: schema.StrategySpec{
			Type: schema.StrategyAPICall,
			Fields: map[string]any{
				"endpoint":     "{{config.endpoint}}",
				"method":       "{{config.method}}",
				"headers":      "{{config.headers}}",
				"query_params": "{{config.query_params}}",
				"payload":      "{{config.payload}}",
			},
		},
		DefaultConfig: map[string]any{
			"method": "GET",
		},
	}
}

func apiCallContext(config map[string]any, input map[string]any) ExecContext {
	return ExecContext{
		Node: &pipeline.Node{
			ID:     "api1",
			Type:   "api_call",
			Label:  "Call",
			Config: config,
			Status: pipeline.StatusRunning,
		},
		Definition: apiCallDefinition(),
		Input:      input,
	}
}

func newAPICall(client httpclient.Client) *apiCallStrategy {
	return &apiCallStrategy{resolver: template.NewResolver(), client: client}
}

// TestAPICall_GetAbsoluteURL validates a GET against an absolute URL: JSON
// response decoded into Data, envelopes captured for the execution log.
func TestAPICall_GetAbsoluteURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/x", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("page"))
		assert.Equal(t, "token-1", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status": "ok", "count": 3}`)
	}))
	defer srv.Close()

	ec := apiCallContext(map[string]any{
		"endpoint":     srv.URL + "/x",
		"headers":      map[string]any{"X-Api-Key": "token-1"},
		"query_params": map[string]any{"page": float64(42)},
	}, nil)

	res, err := newAPICall(nil).Execute(context.Background(), ec)
	require.NoError(t, err)

	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
	assert.EqualValues(t, 3, data["count"])

	require.NotNil(t, res.Request)
	assert.Equal(t, http.MethodGet, res.Request.Method)
	assert.Equal(t, srv.URL+"/x", res.Request.URL)

	require.NotNil(t, res.Response)
	assert.Equal(t, http.StatusOK, res.Response.Status)
	assert.Equal(t, "OK", res.Response.StatusText)
}

// TestAPICall_Non2xxFailsWithEnvelopes validates every non-2xx status is an
// HTTPError carrying both envelopes.
func TestAPICall_Non2xxFailsWithEnvelopes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error": "down"}`)
	}))
	defer srv.Close()

	ec := apiCallContext(map[string]any{"endpoint": srv.URL}, nil)
	res, err := newAPICall(nil).Execute(context.Background(), ec)
	assert.Nil(t, res)
	require.Error(t, err)

	var httpErr *pipeline.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	require.NotNil(t, httpErr.Request)
	require.NotNil(t, httpErr.Response)

	body, ok := httpErr.Response.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "down", body["error"])
}

// TestAPICall_NetworkFailure validates a transport error keeps the request
// envelope with a nil response.
func TestAPICall_NetworkFailure(t *testing.T) {
	t.Parallel()

	ec := apiCallContext(map[string]any{"endpoint": "http://127.0.0.1:1"}, nil)
	_, err := newAPICall(nil).Execute(context.Background(), ec)
	require.Error(t, err)

	var httpErr *pipeline.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.NotNil(t, httpErr.Request)
	assert.Nil(t, httpErr.Response)
}

// TestAPICall_MissingEndpoint validates the configuration error.
func TestAPICall_MissingEndpoint(t *testing.T) {
	t.Parallel()

	ec := apiCallContext(map[string]any{}, nil)
	_, err := newAPICall(nil).Execute(context.Background(), ec)
	require.Error(t, err)
	assert.True(t, pipeline.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "endpoint")
}

// TestAPICall_JSONTemplatedBody validates a POST whose body template draws
// on upstream input.
func TestAPICall_JSONTemplatedBody(t *testing.T) {
	t.Parallel()

	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		io.WriteString(w, `{"job": "j-1"}`)
	}))
	defer srv.Close()

	ec := apiCallContext(map[string]any{
		"endpoint":  srv.URL + "/fold",
		"method":    "POST",
		"body_type": "json_templated",
		"payload":   `{"sequence": "{{input.sequence}}"}`,
	}, map[string]any{"sequence": "MKVL"})

	res, err := newAPICall(nil).Execute(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, "MKVL", received["sequence"])

	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "j-1", data["job"])
}

// TestAPICall_PostSendsPayloadWithoutBodyType validates a POST with a
// structured payload sends it as JSON even when body_type is never set.
func TestAPICall_PostSendsPayloadWithoutBodyType(t *testing.T) {
	t.Parallel()

	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	ec := apiCallContext(map[string]any{
		"endpoint": srv.URL,
		"method":   "POST",
		"payload":  map[string]any{"sequence": "MKVL", "model": "esmfold"},
	}, nil)

	_, err := newAPICall(nil).Execute(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, "MKVL", received["sequence"])
	assert.Equal(t, "esmfold", received["model"])
}

// TestAPICall_ExplicitNoneSuppressesBody validates body_type "none" keeps a
// POST bodyless even when a payload is configured.
func TestAPICall_ExplicitNoneSuppressesBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	ec := apiCallContext(map[string]any{
		"endpoint":  srv.URL,
		"method":    "POST",
		"body_type": "none",
		"payload":   map[string]any{"sequence": "MKVL"},
	}, nil)

	_, err := newAPICall(nil).Execute(context.Background(), ec)
	require.NoError(t, err)
}

// TestAPICall_InvalidJSONBody validates malformed JSON bodies fail before
// any request is sent.
func TestAPICall_InvalidJSONBody(t *testing.T) {
	t.Parallel()

	ec := apiCallContext(map[string]any{
		"endpoint":  "http://example.invalid",
		"method":    "POST",
		"body_type": "json",
		"payload":   `{not json`,
	}, nil)

	_, err := newAPICall(nil).Execute(context.Background(), ec)
	require.Error(t, err)
	assert.True(t, pipeline.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "invalid JSON")
}

// TestAPICall_GetSendsNoBody validates the send-body default for GET, and
// that __send_body__ can force one.
func TestAPICall_GetSendsNoBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	ec := apiCallContext(map[string]any{
		"endpoint":  srv.URL,
		"body_type": "json",
		"payload":   `{"ignored": true}`,
	}, nil)

	_, err := newAPICall(nil).Execute(context.Background(), ec)
	require.NoError(t, err)
}

// TestAPICall_AuthFlags validates reserved flags become auth headers and are
// stripped from the forwarded header set.
func TestAPICall_AuthFlags(t *testing.T) {
	t.Parallel()

	t.Run("bearer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok-9", r.Header.Get("Authorization"))
			assert.Empty(t, r.Header.Get(template.FlagAuthToken), "flags must not travel as headers")
			io.WriteString(w, `{}`)
		}))
		defer srv.Close()

		ec := apiCallContext(map[string]any{
			"endpoint":             srv.URL,
			template.FlagAuthType:  "bearer",
			template.FlagAuthToken: "tok-9",
		}, nil)

		_, err := newAPICall(nil).Execute(context.Background(), ec)
		require.NoError(t, err)
	})

	t.Run("basic", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "alice", user)
			assert.Equal(t, "s3cret", pass)
			io.WriteString(w, `{}`)
		}))
		defer srv.Close()

		ec := apiCallContext(map[string]any{
			"endpoint":                 srv.URL,
			template.FlagAuthType:     "basic",
			template.FlagAuthUsername: "alice",
			template.FlagAuthPassword: "s3cret",
		}, nil)

		_, err := newAPICall(nil).Execute(context.Background(), ec)
		require.NoError(t, err)
	})
}

// TestAPICall_RelativeEndpoint validates relative endpoints go through the
// injected client, and fail without one.
func TestAPICall_RelativeEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("routed through injected client", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/jobs", r.URL.Path)
			io.WriteString(w, `{"ok": true}`)
		}))
		defer srv.Close()

		base, err := httpclient.New(srv.URL, "5s")
		require.NoError(t, err)

		ec := apiCallContext(map[string]any{"endpoint": "/api/jobs"}, nil)
		res, err := newAPICall(base).Execute(context.Background(), ec)
		require.NoError(t, err)

		data, ok := res.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, data["ok"])
	})

	t.Run("no client configured", func(t *testing.T) {
		ec := apiCallContext(map[string]any{"endpoint": "/api/jobs"}, nil)
		_, err := newAPICall(nil).Execute(context.Background(), ec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "injected HTTP client")
	})
}

// TestAPICall_NonJSONResponseKeptAsString validates bodies that fail JSON
// decoding stay available as text.
func TestAPICall_NonJSONResponseKeptAsString(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "plain text result")
	}))
	defer srv.Close()

	ec := apiCallContext(map[string]any{"endpoint": srv.URL}, nil)
	res, err := newAPICall(nil).Execute(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, "plain text result", res.Data)
}
