package check

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prreview/loadgen/internal/performance"
)

type tallyRecorder struct {
	mu     sync.Mutex
	passes map[string]int
	fails  map[string]int
}

func newTallyRecorder() *tallyRecorder {
	return &tallyRecorder{passes: map[string]int{}, fails: map[string]int{}}
}

func (r *tallyRecorder) RecordCheck(name string, passed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if passed {
		r.passes[name]++
	} else {
		r.fails[name]++
	}
}

func TestEvaluate(t *testing.T) {
	rec := newTallyRecorder()
	checks := []Check{
		New("status is 201 or 400", StatusIn(201, 400)),
		New("always false", func(*performance.Outcome) bool { return false }),
	}

	results := Evaluate(&performance.Outcome{StatusCode: 201}, checks, rec)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !results[0].Passed {
		t.Error("status check should pass for 201")
	}
	if results[1].Passed {
		t.Error("always false passed")
	}
	if Passed(results) {
		t.Error("Passed = true with a failing check")
	}
	if rec.passes["status is 201 or 400"] != 1 || rec.fails["always false"] != 1 {
		t.Errorf("recorder saw passes=%v fails=%v", rec.passes, rec.fails)
	}
}

func TestEvaluate_PanicIsFailedCheck(t *testing.T) {
	rec := newTallyRecorder()
	checks := []Check{
		New("panics", func(*performance.Outcome) bool { panic("boom") }),
		New("still runs", NoError()),
	}

	results := Evaluate(&performance.Outcome{StatusCode: 200}, checks, rec)

	if results[0].Passed {
		t.Error("panicking check passed")
	}
	var ce *performance.CheckError
	if !errors.As(results[0].Err, &ce) {
		t.Fatalf("Err = %v, want *CheckError", results[0].Err)
	}
	if ce.Check != "panics" || ce.Cause != "boom" {
		t.Errorf("CheckError = %+v", ce)
	}
	if !results[1].Passed {
		t.Error("a panic in one check must not affect another")
	}
	if rec.fails["panics"] != 1 {
		t.Error("panicking check not recorded as a failure")
	}
}

func TestEvaluate_NoChecks(t *testing.T) {
	if got := Evaluate(&performance.Outcome{}, nil, nil); got != nil {
		t.Errorf("Evaluate with no checks = %v, want nil", got)
	}
}

func TestEvaluate_NilRecorderAndPredicate(t *testing.T) {
	results := Evaluate(&performance.Outcome{}, []Check{{Name: "empty"}}, nil)
	if results[0].Passed {
		t.Error("a check without a predicate cannot pass")
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	rec := newTallyRecorder()
	checks := []Check{New("ok", StatusIn(200))}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Evaluate(&performance.Outcome{StatusCode: 200}, checks, rec)
		}()
	}
	wg.Wait()

	if rec.passes["ok"] != 50 {
		t.Errorf("passes = %d, want 50", rec.passes["ok"])
	}
}

func TestStatusIn(t *testing.T) {
	tests := []struct {
		name    string
		codes   []int
		outcome *performance.Outcome
		want    bool
	}{
		{"match single", []int{200}, &performance.Outcome{StatusCode: 200}, true},
		{"match second", []int{201, 400}, &performance.Outcome{StatusCode: 400}, true},
		{"no match", []int{201, 400}, &performance.Outcome{StatusCode: 500}, false},
		{"transport error", []int{0}, &performance.Outcome{Err: errors.New("refused")}, false},
		{"nil outcome", []int{200}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusIn(tt.codes...)(tt.outcome); got != tt.want {
				t.Errorf("StatusIn(%v) = %v, want %v", tt.codes, got, tt.want)
			}
		})
	}
}

func TestStatusName(t *testing.T) {
	tests := []struct {
		codes []int
		want  string
	}{
		{[]int{200}, "status is 200"},
		{[]int{201, 400}, "status is 201 or 400"},
		{[]int{200, 201, 204}, "status is 200, 201 or 204"},
		{nil, "status is set"},
	}

	for _, tt := range tests {
		if got := StatusName(tt.codes...); got != tt.want {
			t.Errorf("StatusName(%v) = %q, want %q", tt.codes, got, tt.want)
		}
	}
}

func TestPredicates(t *testing.T) {
	ok := &performance.Outcome{StatusCode: 200, Latency: 50 * time.Millisecond, Body: []byte(`{"status":"MERGED"}`)}
	failed := &performance.Outcome{Err: errors.New("timeout"), Latency: time.Second}

	tests := []struct {
		name string
		pred Predicate
		o    *performance.Outcome
		want bool
	}{
		{"no error ok", NoError(), ok, true},
		{"no error failed", NoError(), failed, false},
		{"latency below", LatencyBelow(100 * time.Millisecond), ok, true},
		{"latency above", LatencyBelow(100 * time.Millisecond), failed, false},
		{"body contains", BodyContains("MERGED"), ok, true},
		{"body missing", BodyContains("OPEN"), ok, false},
		{"all pass", All(NoError(), StatusIn(200)), ok, true},
		{"all one fails", All(NoError(), StatusIn(201)), ok, false},
		{"never", Never(), ok, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.o); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
