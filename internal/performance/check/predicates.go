package check

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/prreview/loadgen/internal/performance"
)

// StatusIn passes when the response status is one of codes.
func StatusIn(codes ...int) Predicate {
	allowed := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		allowed[c] = struct{}{}
	}
	return func(o *performance.Outcome) bool {
		if o == nil || o.Err != nil {
			return false
		}
		_, ok := allowed[o.StatusCode]
		return ok
	}
}

// StatusName renders the conventional check name for StatusIn, e.g.
// "status is 201 or 400".
func StatusName(codes ...int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}

	switch len(parts) {
	case 0:
		return "status is set"
	case 1:
		return "status is " + parts[0]
	default:
		return "status is " + strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
	}
}

// NoError passes when the iteration produced a response.
func NoError() Predicate {
	return func(o *performance.Outcome) bool {
		return o != nil && o.Err == nil
	}
}

// LatencyBelow passes when the iteration took less than max.
func LatencyBelow(max time.Duration) Predicate {
	return func(o *performance.Outcome) bool {
		return o != nil && o.Latency < max
	}
}

// BodyContains passes when the response body contains substr.
func BodyContains(substr string) Predicate {
	needle := []byte(substr)
	return func(o *performance.Outcome) bool {
		return o != nil && bytes.Contains(o.Body, needle)
	}
}

// All passes when every predicate passes.
func All(preds ...Predicate) Predicate {
	return func(o *performance.Outcome) bool {
		for _, p := range preds {
			if !p(o) {
				return false
			}
		}
		return true
	}
}

// Never always fails. Useful as a placeholder for checks that could not be
// built.
func Never() Predicate {
	return func(*performance.Outcome) bool { return false }
}
