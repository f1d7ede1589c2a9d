package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/executor"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name       string
		config     executor.Config
		wantErrors int
	}{
		{
			name: "valid",
			config: executor.Config{
				Type: executor.TypeConstantArrivalRate, Rate: 5, Duration: 2 * time.Minute,
				PreAllocatedVUs: 10, MaxVUs: 20,
			},
		},
		{
			name:   "empty type defaults",
			config: executor.Config{Rate: 5, Duration: time.Second, MaxVUs: 1},
		},
		{
			name:       "zero rate",
			config:     executor.Config{Duration: time.Second, MaxVUs: 1},
			wantErrors: 1,
		},
		{
			name:       "pre-allocated above max",
			config:     executor.Config{Rate: 5, Duration: time.Second, PreAllocatedVUs: 30, MaxVUs: 20},
			wantErrors: 1,
		},
		{
			name:       "everything wrong",
			config:     executor.Config{Type: "ramping-vus", TimeUnit: -time.Second, GracefulStop: -1, ThinkTime: -1},
			wantErrors: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErrors == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !performance.IsConfigError(err) {
				t.Errorf("Validate() error %T is not a ConfigError", err)
			}
			merr, ok := err.(*multierror.Error)
			if !ok {
				t.Fatalf("Validate() error %T is not a *multierror.Error", err)
			}
			if len(merr.Errors) != tt.wantErrors {
				t.Errorf("got %d errors, want %d: %v", len(merr.Errors), tt.wantErrors, err)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := executor.Config{Rate: 5, Duration: time.Second, MaxVUs: 1}.WithDefaults()

	if cfg.Type != executor.TypeConstantArrivalRate {
		t.Errorf("Type = %q", cfg.Type)
	}
	if cfg.TimeUnit != time.Second {
		t.Errorf("TimeUnit = %v, want 1s", cfg.TimeUnit)
	}
	if cfg.GracefulStop != 30*time.Second {
		t.Errorf("GracefulStop = %v, want 30s", cfg.GracefulStop)
	}
	if cfg.CatchUpWindow != time.Second {
		t.Errorf("CatchUpWindow = %v, want 1s", cfg.CatchUpWindow)
	}
}

func TestConfig_ExpectedArrivals(t *testing.T) {
	tests := []struct {
		rate     float64
		timeUnit time.Duration
		duration time.Duration
		want     int64
	}{
		{5, time.Second, 2 * time.Minute, 600},
		{5, 0, 2 * time.Second, 10},
		{30, time.Minute, 10 * time.Second, 5},
	}

	for _, tt := range tests {
		cfg := executor.Config{Rate: tt.rate, TimeUnit: tt.timeUnit, Duration: tt.duration}
		if got := cfg.ExpectedArrivals(); got != tt.want {
			t.Errorf("ExpectedArrivals(%v per %v for %v) = %d, want %d",
				tt.rate, tt.timeUnit, tt.duration, got, tt.want)
		}
	}
}

func TestNewExecutor(t *testing.T) {
	e, err := executor.NewExecutor(executor.TypeConstantArrivalRate)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	if e.Type() != executor.TypeConstantArrivalRate {
		t.Errorf("Type() = %v", e.Type())
	}

	if _, err := executor.NewExecutor("per-vu-iterations"); err == nil {
		t.Error("expected error for unsupported executor type")
	}
}

func TestCreateAndInitExecutor_InvalidConfig(t *testing.T) {
	_, err := executor.CreateAndInitExecutor(context.Background(), &executor.Config{Rate: 5})
	if err == nil {
		t.Fatal("expected error")
	}
	if !performance.IsConfigError(err) {
		t.Errorf("error %v is not a ConfigError", err)
	}
}
