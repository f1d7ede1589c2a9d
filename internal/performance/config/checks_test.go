package config

import (
	"errors"
	"testing"
	"time"

	"github.com/prreview/loadgen/internal/performance"
)

func strPtr(s string) *string { return &s }

func TestBuildCheck(t *testing.T) {
	created := &performance.Outcome{
		StatusCode: 201,
		Latency:    40 * time.Millisecond,
		Body:       []byte(`{"pr":{"pull_request_id":"pr-1","status":"OPEN"}}`),
	}
	conflict := &performance.Outcome{
		StatusCode: 409,
		Latency:    900 * time.Millisecond,
		Body:       []byte(`{"error":{"code":"PR_EXISTS"}}`),
	}
	refused := &performance.Outcome{Err: &performance.TransportError{Op: "POST", Err: errors.New("connection refused")}}

	tests := []struct {
		name     string
		cc       CheckConfig
		wantName string
		pass     []*performance.Outcome
		fail     []*performance.Outcome
	}{
		{
			name:     "status",
			cc:       CheckConfig{Status: []int{201, 400}},
			wantName: "status is 201 or 400",
			pass:     []*performance.Outcome{created},
			fail:     []*performance.Outcome{conflict, refused},
		},
		{
			name:     "explicit name",
			cc:       CheckConfig{Name: "created", Status: []int{201}},
			wantName: "created",
			pass:     []*performance.Outcome{created},
			fail:     []*performance.Outcome{conflict},
		},
		{
			name:     "no error",
			cc:       CheckConfig{NoError: true},
			wantName: "no error",
			pass:     []*performance.Outcome{created, conflict},
			fail:     []*performance.Outcome{refused},
		},
		{
			name:     "max duration",
			cc:       CheckConfig{MaxDuration: "500ms"},
			wantName: "duration < 500ms",
			pass:     []*performance.Outcome{created},
			fail:     []*performance.Outcome{conflict},
		},
		{
			name:     "json path equals",
			cc:       CheckConfig{JSONPath: "$.pr.status", Equals: strPtr("OPEN")},
			wantName: "$.pr.status == OPEN",
			pass:     []*performance.Outcome{created},
			fail:     []*performance.Outcome{conflict, refused},
		},
		{
			name:     "json path exists",
			cc:       CheckConfig{JSONPath: "$.error.code", Exists: true},
			wantName: "$.error.code exists",
			pass:     []*performance.Outcome{conflict},
			fail:     []*performance.Outcome{created},
		},
		{
			name:     "body contains",
			cc:       CheckConfig{BodyContains: "PR_EXISTS"},
			wantName: `body contains "PR_EXISTS"`,
			pass:     []*performance.Outcome{conflict},
			fail:     []*performance.Outcome{created},
		},
		{
			name:     "schema",
			cc:       CheckConfig{Schema: `{"type":"object","required":["pr"]}`},
			wantName: "body matches schema",
			pass:     []*performance.Outcome{created},
			fail:     []*performance.Outcome{conflict},
		},
		{
			name:     "combined conditions",
			cc:       CheckConfig{Status: []int{201}, MaxDuration: "1s"},
			wantName: "status is 201 and duration < 1s",
			pass:     []*performance.Outcome{created},
			fail:     []*performance.Outcome{conflict},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := BuildCheck(tt.cc)
			if err != nil {
				t.Fatalf("BuildCheck() error = %v", err)
			}
			if c.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", c.Name, tt.wantName)
			}
			for i, o := range tt.pass {
				if !c.Predicate(o) {
					t.Errorf("pass[%d] failed", i)
				}
			}
			for i, o := range tt.fail {
				if c.Predicate(o) {
					t.Errorf("fail[%d] passed", i)
				}
			}
		})
	}
}

func TestBuildChecks_Errors(t *testing.T) {
	bad := [][]CheckConfig{
		{{}},
		{{JSONPath: "$.pr"}},
		{{MaxDuration: "quick"}},
		{{Schema: "not json"}},
	}

	for i, configs := range bad {
		if _, err := BuildChecks(configs); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
