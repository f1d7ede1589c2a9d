package prreview

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "github.com/prreview/loadgen/internal/http"
	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/config"
)

type captured struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

func recordingServer(t *testing.T, status int, respBody string) (*httptest.Server, func() []captured) {
	t.Helper()

	var mu sync.Mutex
	var reqs []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
			body:   string(body),
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(server.Close)

	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func envVars(t *testing.T, baseURL string) map[string]string {
	t.Helper()
	e, err := config.LoadEnvFrom(map[string]string{"BASE_URL": baseURL})
	require.NoError(t, err)
	return e.Variables()
}

func busyVU(t *testing.T) *performance.VirtualUser {
	t.Helper()
	pool, err := performance.NewVUPool(1, 1)
	require.NoError(t, err)
	vu, err := pool.Acquire()
	require.NoError(t, err)
	return vu
}

func TestHTTPScenario_CreatePR(t *testing.T) {
	server, requests := recordingServer(t, http.StatusCreated, `{"pr":{"pull_request_id":"pr-1-1","status":"OPEN"}}`)

	p, ok := LookupPreset(PresetCreatePR)
	require.True(t, ok)

	s, err := NewHTTPScenario(p.Name, p.Scenario.Request, envVars(t, server.URL), httpclient.NewClient(httpclient.Config{}))
	require.NoError(t, err)

	vu := busyVU(t)
	o := s.PerformIteration(context.Background(), vu)

	require.NotNil(t, o)
	assert.NoError(t, o.Err)
	assert.Equal(t, http.StatusCreated, o.StatusCode)
	assert.Equal(t, PresetCreatePR, o.RequestName)
	assert.Positive(t, o.Latency)
	assert.Equal(t, int64(len(o.Body)), o.BytesReceived)

	reqs := requests()
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, "POST", r.method)
	assert.Equal(t, "/pullRequest/create", r.path)
	assert.Equal(t, "Bearer admin:u1", r.header.Get("Authorization"))
	assert.Equal(t, "application/json", r.header.Get("Content-Type"))

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(r.body), &payload))
	assert.True(t, strings.HasPrefix(payload["pull_request_id"], "pr-1-"), payload["pull_request_id"])
	assert.NotContains(t, payload["pull_request_id"], "{{")
	assert.Equal(t, "load-test-pr", payload["pull_request_name"])
	assert.Equal(t, "u1", payload["author_id"])

	status, ok := vu.GetData(VarLastStatus)
	assert.True(t, ok)
	assert.Equal(t, http.StatusCreated, status)
}

func TestHTTPScenario_GetReviews(t *testing.T) {
	server, requests := recordingServer(t, http.StatusOK, `{"user_id":"u2","pull_requests":[]}`)

	p, _ := LookupPreset(PresetGetReviews)
	s, err := NewHTTPScenario(p.Name, p.Scenario.Request, envVars(t, server.URL), httpclient.NewClient(httpclient.Config{}))
	require.NoError(t, err)

	o := s.PerformIteration(context.Background(), busyVU(t))
	assert.Equal(t, http.StatusOK, o.StatusCode)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "GET", reqs[0].method)
	assert.Equal(t, "/users/getReview", reqs[0].path)
	assert.Equal(t, "user_id=u2", reqs[0].query)
	assert.Equal(t, "Bearer user:u2", reqs[0].header.Get("Authorization"))
	assert.Empty(t, reqs[0].body)
}

func TestHTTPScenario_ReassignPR(t *testing.T) {
	server, requests := recordingServer(t, http.StatusBadRequest, `{"error":{"code":"NOT_ASSIGNED"}}`)

	vars := envVars(t, server.URL)
	vars["prId"] = "pr-77"

	p, _ := LookupPreset(PresetReassignPR)
	s, err := NewHTTPScenario(p.Name, p.Scenario.Request, vars, httpclient.NewClient(httpclient.Config{}))
	require.NoError(t, err)

	o := s.PerformIteration(context.Background(), busyVU(t))
	assert.NoError(t, o.Err, "a 4xx response is not a transport error")
	assert.Equal(t, http.StatusBadRequest, o.StatusCode)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"pull_request_id":"pr-77","old_user_id":"u2"}`, reqs[0].body)
}

func TestHTTPScenario_TemplateVariables(t *testing.T) {
	server, requests := recordingServer(t, http.StatusOK, `{}`)

	req := &config.RequestConfig{
		Method: "post",
		URL:    "{{baseUrl}}/echo",
		Headers: map[string]string{
			"X-Request-Id": "{{uuid}}",
			"X-Tenant":     "{{tenant}}",
		},
		Body: `{"vu":"{{vu}}","iteration":"{{iteration}}","ts":"{{timestamp}}","seed":"{{seed}}","unknown":"{{nope}}"}`,
	}
	vars := map[string]string{"baseUrl": server.URL, "tenant": "acme"}

	s, err := NewHTTPScenario("echo", req, vars, httpclient.NewClient(httpclient.Config{}))
	require.NoError(t, err)

	vu := busyVU(t)
	vu.SetData("seed", 42)

	before := time.Now().UnixMilli()
	s.PerformIteration(context.Background(), vu)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "POST", reqs[0].method)
	assert.Len(t, reqs[0].header.Get("X-Request-Id"), 36)
	assert.Equal(t, "acme", reqs[0].header.Get("X-Tenant"))

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(reqs[0].body), &body))
	assert.Equal(t, "1", body["vu"])
	assert.Equal(t, "1", body["iteration"])
	assert.Equal(t, "42", body["seed"])
	assert.Equal(t, "{{nope}}", body["unknown"])

	ts, err := strconv.ParseInt(body["ts"], 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts, before)
}

func TestHTTPScenario_UniqueUUIDPerIteration(t *testing.T) {
	server, requests := recordingServer(t, http.StatusOK, `{}`)

	req := &config.RequestConfig{URL: server.URL + "/pr/{{uuid}}"}
	s, err := NewHTTPScenario("uuid", req, nil, httpclient.NewClient(httpclient.Config{}))
	require.NoError(t, err)

	vu := busyVU(t)
	s.PerformIteration(context.Background(), vu)
	s.PerformIteration(context.Background(), vu)

	reqs := requests()
	require.Len(t, reqs, 2)
	assert.NotEqual(t, reqs[0].path, reqs[1].path)
}

func TestHTTPScenario_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p, _ := LookupPreset(PresetGetReviews)
	s, err := NewHTTPScenario(p.Name, p.Scenario.Request, envVars(t, url), httpclient.NewClient(httpclient.Config{Timeout: time.Second}))
	require.NoError(t, err)

	o := s.PerformIteration(context.Background(), busyVU(t))
	require.Error(t, o.Err)
	assert.True(t, performance.IsTransportError(o.Err))
	assert.True(t, o.Failed())
	assert.Equal(t, 0, o.StatusCode)
	assert.Equal(t, "none", o.StatusClass())

	var te *performance.TransportError
	require.ErrorAs(t, o.Err, &te)
	assert.Equal(t, "GET "+url+"/users/getReview", te.Op)
}

func TestHTTPScenario_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	req := &config.RequestConfig{URL: server.URL, Timeout: "50ms"}
	s, err := NewHTTPScenario("slow", req, nil, httpclient.NewClient(httpclient.Config{}))
	require.NoError(t, err)

	o := s.PerformIteration(context.Background(), busyVU(t))
	assert.True(t, performance.IsTransportError(o.Err))
	assert.Less(t, o.Latency, 500*time.Millisecond)
}

func TestNewHTTPScenario_Invalid(t *testing.T) {
	client := httpclient.NewClient(httpclient.Config{})

	_, err := NewHTTPScenario("x", nil, nil, client)
	assert.True(t, performance.IsConfigError(err))

	_, err = NewHTTPScenario("x", &config.RequestConfig{}, nil, client)
	assert.True(t, performance.IsConfigError(err))

	_, err = NewHTTPScenario("x", &config.RequestConfig{URL: "http://x", Timeout: "later"}, nil, client)
	assert.True(t, performance.IsConfigError(err))

	_, err = NewHTTPScenario("x", &config.RequestConfig{URL: "http://x"}, nil, nil)
	assert.Error(t, err)
}
