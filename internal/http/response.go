package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// TimingInfo stores detailed timing information for an HTTP request.
// All durations represent the time spent in each phase of the request.
type TimingInfo struct {
	// StartTime is when the request started
	StartTime time.Time `json:"startTime"`

	// DNSLookupTime is the time spent looking up the DNS address
	DNSLookupTime time.Duration `json:"dnsLookup"`

	// TCPConnectTime is the time spent establishing a TCP connection
	TCPConnectTime time.Duration `json:"tcpConnect"`

	// TLSHandshakeTime is the time spent performing the TLS handshake (for HTTPS)
	TLSHandshakeTime time.Duration `json:"tlsHandshake"`

	// TimeToFirstByte is the time from the last connection phase to the
	// first response byte
	TimeToFirstByte time.Duration `json:"ttfb"`

	// ContentTransferTime is the time spent reading the response body
	ContentTransferTime time.Duration `json:"contentTransfer"`

	// TotalTime is the total time from request start to completion
	TotalTime time.Duration `json:"total"`

	// ConnReused is true when a pooled connection served the request
	ConnReused bool `json:"connReused"`
}

// Response represents an HTTP response with timing information.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header

	// Body holds at most the client's MaxBodySize bytes
	Body []byte

	// BytesReceived counts every body byte read, including discarded ones
	BytesReceived int64

	Timing TimingInfo
}

// GetBodyAsString returns the response body as a string
func (r *Response) GetBodyAsString() string {
	return string(r.Body)
}

// GetBodyAsJSON unmarshals the response body into the provided interface
func (r *Response) GetBodyAsJSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// GetHeader returns the value of the specified header
func (r *Response) GetHeader(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError returns true if the response status code is in the 4xx range
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError returns true if the response status code is in the 5xx range
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}
