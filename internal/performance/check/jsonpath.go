package check

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/prreview/loadgen/internal/performance"
)

var bracketReplacer = strings.NewReplacer(
	`['`, ".", `']`, "",
	`["`, ".", `"]`, "",
	"[", ".", "]", "",
)

// GJSONPath converts a JSONPath expression ($.pr.reviewers[0]) into gjson
// syntax (pr.reviewers.0). Only member and index access are supported.
func GJSONPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = bracketReplacer.Replace(path)
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}
	return path
}

// Lookup extracts the value at a JSONPath expression from body.
func Lookup(body []byte, path string) (gjson.Result, error) {
	if len(body) == 0 {
		return gjson.Result{}, errors.New("empty response body")
	}
	if path == "" {
		return gjson.Result{}, errors.New("empty JSONPath expression")
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("response body is not valid JSON")
	}

	result := gjson.GetBytes(body, GJSONPath(path))
	if !result.Exists() {
		return result, errors.Errorf("path not found: %s", path)
	}
	return result, nil
}

// JSONPathExists passes when path resolves in the response body.
func JSONPathExists(path string) Predicate {
	return func(o *performance.Outcome) bool {
		if o == nil {
			return false
		}
		_, err := Lookup(o.Body, path)
		return err == nil
	}
}

// JSONPathEquals passes when the value at path, rendered as a string,
// equals want. JSON null renders as "null".
func JSONPathEquals(path, want string) Predicate {
	return func(o *performance.Outcome) bool {
		if o == nil {
			return false
		}
		result, err := Lookup(o.Body, path)
		if err != nil {
			return false
		}
		if result.Type == gjson.Null {
			return want == "null"
		}
		return result.String() == want
	}
}
