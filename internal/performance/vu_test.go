package performance

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestVUState_String(t *testing.T) {
	tests := []struct {
		state VUState
		want  string
	}{
		{VUStateIdle, "idle"},
		{VUStateBusy, "busy"},
		{VUState(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("VUState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNewVirtualUser(t *testing.T) {
	vu := NewVirtualUser(7)

	if vu.ID != 7 {
		t.Errorf("VU ID = %d, want 7", vu.ID)
	}
	if vu.GetState() != VUStateIdle {
		t.Errorf("initial state = %v, want idle", vu.GetState())
	}
	if vu.GetIteration() != 0 {
		t.Errorf("initial iteration = %d, want 0", vu.GetIteration())
	}
	if vu.CreatedAt().IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestVirtualUser_StateTransitions(t *testing.T) {
	vu := NewVirtualUser(1)

	if vu.markIdle() {
		t.Error("markIdle on idle VU should fail")
	}
	if !vu.markBusy() {
		t.Fatal("markBusy on idle VU should succeed")
	}
	if vu.GetIteration() != 1 {
		t.Errorf("iteration = %d, want 1", vu.GetIteration())
	}
	if vu.markBusy() {
		t.Error("markBusy on busy VU should fail")
	}
	if !vu.markIdle() {
		t.Error("markIdle on busy VU should succeed")
	}
	if vu.GetState() != VUStateIdle {
		t.Errorf("state = %v, want idle", vu.GetState())
	}
}

func TestVirtualUser_Data(t *testing.T) {
	vu := NewVirtualUser(1)

	vu.SetData("prId", "pr-1-42")
	got, ok := vu.GetData("prId")
	if !ok || got != "pr-1-42" {
		t.Errorf("GetData(prId) = %v, %v; want pr-1-42, true", got, ok)
	}

	snap := vu.DataSnapshot()
	snap["prId"] = "mutated"
	if got, _ := vu.GetData("prId"); got != "pr-1-42" {
		t.Errorf("DataSnapshot leaked a reference, got %v", got)
	}

	vu.ClearData("prId")
	if _, ok := vu.GetData("prId"); ok {
		t.Error("GetData after ClearData should miss")
	}
}

func TestVirtualUser_ConcurrentData(t *testing.T) {
	vu := NewVirtualUser(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vu.SetData("k", i)
			vu.GetData("k")
		}(i)
	}
	wg.Wait()

	if _, ok := vu.GetData("k"); !ok {
		t.Error("expected key to be set")
	}
}

func TestOutcome_StatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "none"},
		{101, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{302, "3xx"},
		{400, "4xx"},
		{503, "5xx"},
		{700, "none"},
	}

	for _, tt := range tests {
		o := &Outcome{StatusCode: tt.code}
		if got := o.StatusClass(); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestOutcome_Failed(t *testing.T) {
	if (&Outcome{StatusCode: 500}).Failed() {
		t.Error("a 5xx response is not a transport failure")
	}
	if !(&Outcome{Err: &TransportError{Err: errors.New("refused")}}).Failed() {
		t.Error("outcome with Err should be failed")
	}
}

func TestIterationFunc(t *testing.T) {
	var called bool
	var s Scenario = IterationFunc(func(ctx context.Context, vu *VirtualUser) *Outcome {
		called = true
		return &Outcome{StatusCode: 204, VUID: vu.ID}
	})

	out := s.PerformIteration(context.Background(), NewVirtualUser(3))
	if !called {
		t.Fatal("IterationFunc was not invoked")
	}
	if out.VUID != 3 || out.StatusCode != 204 {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")
	te := &TransportError{Op: "POST /pullRequest/create", Err: cause}

	if !errors.Is(te, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
	if !IsTransportError(te) {
		t.Error("IsTransportError = false, want true")
	}
	if IsConfigError(te) {
		t.Error("IsConfigError = true for a transport error")
	}

	ce := &ConfigError{Field: "rate", Message: "rate must be > 0"}
	if !IsConfigError(ce) {
		t.Error("IsConfigError = false, want true")
	}
	if ce.Error() != "config error on field 'rate': rate must be > 0" {
		t.Errorf("unexpected message %q", ce.Error())
	}

	chk := &CheckError{Check: "status is 200", Cause: "boom"}
	if chk.Error() != `check "status is 200" panicked: boom` {
		t.Errorf("unexpected message %q", chk.Error())
	}
}
