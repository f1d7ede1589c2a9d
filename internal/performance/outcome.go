package performance

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// Outcome is the result of a single scenario iteration.
//
// Outcomes are transient: the executor hands each one to the check
// evaluator and the metrics engine and then drops it.
type Outcome struct {
	VUID          int           `json:"vuId"`
	Iteration     int64         `json:"iteration"`
	RequestName   string        `json:"requestName,omitempty"`
	StartTime     time.Time     `json:"startTime"`
	Latency       time.Duration `json:"latency"`
	StatusCode    int           `json:"statusCode"`
	BytesReceived int64         `json:"bytesReceived"`
	Header        http.Header   `json:"-"`
	Body          []byte        `json:"-"`
	Err           error         `json:"-"`
}

// Failed reports whether the iteration failed to produce a response.
func (o *Outcome) Failed() bool {
	return o.Err != nil
}

// StatusClass returns the status code class label ("2xx", "4xx", ...), or
// "none" when no response was received.
func (o *Outcome) StatusClass() string {
	if o.StatusCode < 100 || o.StatusCode >= 600 {
		return "none"
	}
	return strconv.Itoa(o.StatusCode/100) + "xx"
}

// Scenario is the capability an executor drives: build a request, perform
// it and describe what happened.
//
// PerformIteration must not retain vu after returning. Failures belong on
// the returned Outcome's Err; a nil Outcome is treated as an empty success.
type Scenario interface {
	PerformIteration(ctx context.Context, vu *VirtualUser) *Outcome
}

// IterationFunc adapts a plain function to the Scenario interface.
type IterationFunc func(ctx context.Context, vu *VirtualUser) *Outcome

// PerformIteration calls f(ctx, vu).
func (f IterationFunc) PerformIteration(ctx context.Context, vu *VirtualUser) *Outcome {
	return f(ctx, vu)
}
