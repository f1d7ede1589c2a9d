// Package prreview drives the PR-review service: request templates rendered
// per iteration, sent over a shared pooled client.
package prreview

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	httpclient "github.com/prreview/loadgen/internal/http"
	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/config"
)

// Built-in template variables, resolved per iteration.
const (
	VarVU        = "vu"
	VarIteration = "iteration"
	VarTimestamp = "timestamp"
	VarUUID      = "uuid"

	// VarLastStatus holds the status code of the VU's previous iteration.
	VarLastStatus = "lastStatus"
)

// HTTPScenario performs one templated HTTP request per iteration.
type HTTPScenario struct {
	name    string
	method  string
	url     string
	headers map[string]string
	body    string
	timeout time.Duration

	vars     map[string]string
	needUUID bool

	client *httpclient.Client
	logger log.Interface
}

// NewHTTPScenario builds a scenario from a request template. vars are the
// run-wide template variables (environment plus config).
func NewHTTPScenario(name string, req *config.RequestConfig, vars map[string]string, client *httpclient.Client) (*HTTPScenario, error) {
	if req == nil {
		return nil, &performance.ConfigError{Field: "request", Message: "request is required"}
	}
	if req.URL == "" {
		return nil, &performance.ConfigError{Field: "request.url", Message: "URL is required"}
	}
	if client == nil {
		return nil, errors.New("http client is required")
	}

	timeout, err := config.ParseDurationString(req.Timeout)
	if err != nil {
		return nil, &performance.ConfigError{Field: "request.timeout", Message: err.Error()}
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}

	s := &HTTPScenario{
		name:    name,
		method:  method,
		url:     req.URL,
		headers: make(map[string]string, len(req.Headers)),
		body:    req.Body,
		timeout: timeout,
		vars:    make(map[string]string, len(vars)),
		client:  client,
		logger:  log.WithField("scenario", name),
	}
	if req.Name != "" {
		s.name = req.Name
	}
	for k, v := range req.Headers {
		s.headers[k] = v
	}
	for k, v := range vars {
		s.vars[k] = v
	}

	placeholder := "{{" + VarUUID + "}}"
	s.needUUID = strings.Contains(s.url, placeholder) || strings.Contains(s.body, placeholder)
	for _, v := range s.headers {
		s.needUUID = s.needUUID || strings.Contains(v, placeholder)
	}

	return s, nil
}

// Name returns the request name used in per-request metrics.
func (s *HTTPScenario) Name() string {
	return s.name
}

// PerformIteration renders the template for vu and sends the request. A
// request that gets no response yields an Outcome carrying a
// *performance.TransportError.
func (s *HTTPScenario) PerformIteration(ctx context.Context, vu *performance.VirtualUser) *performance.Outcome {
	vars := s.iterationVars(vu)

	req := httpclient.NewRequest(s.method, config.ResolveVariables(s.url, vars)).
		WithTimeout(s.timeout)
	for k, v := range s.headers {
		req.WithHeader(k, config.ResolveVariables(v, vars))
	}
	if s.body != "" {
		req.WithBody([]byte(config.ResolveVariables(s.body, vars)))
	}

	resp, err := s.client.Do(ctx, req)

	outcome := &performance.Outcome{RequestName: s.name}
	if resp != nil {
		outcome.StartTime = resp.Timing.StartTime
		outcome.Latency = resp.Timing.TotalTime
		outcome.StatusCode = resp.StatusCode
		outcome.BytesReceived = resp.BytesReceived
		outcome.Header = resp.Headers
		outcome.Body = resp.Body
	}

	if outcome.StatusCode != 0 {
		vu.SetData(VarLastStatus, outcome.StatusCode)
	}

	if err != nil {
		outcome.Err = &performance.TransportError{Op: s.method + " " + redact(req.URL), Err: err}
		s.logger.WithFields(log.Fields{
			"vu":        vu.ID,
			"iteration": vu.GetIteration(),
		}).WithError(err).Debug("request failed")
	}

	return outcome
}

func (s *HTTPScenario) iterationVars(vu *performance.VirtualUser) map[string]string {
	vars := make(map[string]string, len(s.vars)+4)
	for k, v := range s.vars {
		vars[k] = v
	}
	for k, v := range vu.DataSnapshot() {
		vars[k] = fmt.Sprint(v)
	}

	vars[VarVU] = strconv.Itoa(vu.ID)
	vars[VarIteration] = strconv.FormatInt(vu.GetIteration(), 10)
	vars[VarTimestamp] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	if s.needUUID {
		vars[VarUUID] = uuid.NewString()
	}
	return vars
}

// redact drops the query string, which may carry user ids.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
