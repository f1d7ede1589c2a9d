package http

import (
	"context"
	"io"
	"testing"
)

func TestRequest_Build(t *testing.T) {
	req := NewRequest("GET", "http://localhost:8080/users/getReview?user_id=u2").
		WithHeader("X-Trace", "1").
		WithQueryParam("limit", "10")

	httpReq, err := req.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if httpReq.Method != "GET" {
		t.Errorf("Method = %s", httpReq.Method)
	}
	q := httpReq.URL.Query()
	if q.Get("user_id") != "u2" || q.Get("limit") != "10" {
		t.Errorf("query = %v", q)
	}
	if httpReq.Header.Get("X-Trace") != "1" {
		t.Errorf("header missing")
	}
	if httpReq.Body != nil {
		t.Error("GET without body should have nil Body")
	}
}

func TestRequest_WithJSON(t *testing.T) {
	req, err := NewRequest("POST", "http://svc/pullRequest/reassign").
		WithJSON(map[string]string{"pull_request_id": "pr-load-1", "old_user_id": "u2"})
	if err != nil {
		t.Fatal(err)
	}

	httpReq, err := req.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if httpReq.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", httpReq.Header.Get("Content-Type"))
	}

	body, _ := io.ReadAll(httpReq.Body)
	want := `{"old_user_id":"u2","pull_request_id":"pr-load-1"}`
	if string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestRequest_ExplicitContentTypeKept(t *testing.T) {
	req := NewRequest("POST", "http://svc").WithHeader("Content-Type", "text/plain")
	if _, err := req.WithJSON("x"); err != nil {
		t.Fatal(err)
	}
	if req.Headers["Content-Type"] != "text/plain" {
		t.Errorf("Content-Type overwritten: %q", req.Headers["Content-Type"])
	}
}

func TestRequest_BuildInvalidURL(t *testing.T) {
	if _, err := NewRequest("GET", "http://bad host/%zz").Build(context.Background()); err == nil {
		t.Error("expected error for invalid URL")
	}
}
