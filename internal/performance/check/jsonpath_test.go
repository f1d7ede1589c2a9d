package check

import (
	"testing"

	"github.com/prreview/loadgen/internal/performance"
)

const prBody = `{
	"pr": {
		"pull_request_id": "pr-1001",
		"status": "OPEN",
		"assigned_reviewers": ["u2", "u3"],
		"mergedAt": null
	},
	"replaced_by": "u4"
}`

func TestGJSONPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"$", "@this"},
		{"$.pr.status", "pr.status"},
		{"pr.status", "pr.status"},
		{"$.pr.assigned_reviewers[0]", "pr.assigned_reviewers.0"},
		{"$['pr']['status']", "pr.status"},
		{`$["replaced_by"]`, "replaced_by"},
		{"$[1]", "1"},
	}

	for _, tt := range tests {
		if got := GJSONPath(tt.path); got != tt.want {
			t.Errorf("GJSONPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		path    string
		want    string
		wantErr bool
	}{
		{"nested field", prBody, "$.pr.pull_request_id", "pr-1001", false},
		{"array index", prBody, "$.pr.assigned_reviewers[1]", "u3", false},
		{"missing path", prBody, "$.pr.author", "", true},
		{"empty body", "", "$.pr", "", true},
		{"empty path", prBody, "", "", true},
		{"not json", "<html>", "$.pr", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup([]byte(tt.body), tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("Lookup() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestJSONPathPredicates(t *testing.T) {
	o := &performance.Outcome{StatusCode: 200, Body: []byte(prBody)}

	if !JSONPathExists("$.replaced_by")(o) {
		t.Error("JSONPathExists($.replaced_by) = false")
	}
	if JSONPathExists("$.nope")(o) {
		t.Error("JSONPathExists($.nope) = true")
	}
	if !JSONPathEquals("$.pr.status", "OPEN")(o) {
		t.Error("JSONPathEquals($.pr.status, OPEN) = false")
	}
	if JSONPathEquals("$.pr.status", "MERGED")(o) {
		t.Error("JSONPathEquals($.pr.status, MERGED) = true")
	}
	if !JSONPathEquals("$.pr.mergedAt", "null")(o) {
		t.Error("null should compare equal to \"null\"")
	}
	if JSONPathExists("$.pr")(nil) {
		t.Error("nil outcome passed")
	}
}
