package config

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		script    string
		input     map[string]interface{}
		checkFunc func(*testing.T, *StarlarkResult)
		wantErr   bool
	}{
		{
			name:   "simple arithmetic",
			script: `result = 2 + 2`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != int64(4) {
					t.Errorf("expected result=4, got %v", sr.Output["result"])
				}
			},
		},
		{
			name:   "use input variables",
			script: `doubled = count * 2`,
			input:  map[string]interface{}{"count": 5},
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["doubled"] != int64(10) {
					t.Errorf("expected doubled=10, got %v", sr.Output["doubled"])
				}
			},
		},
		{
			name: "private globals and functions are dropped",
			script: `
_hidden = 1
def helper():
    return 2
visible = helper()
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if _, ok := sr.Output["_hidden"]; ok {
					t.Error("expected _hidden to be skipped")
				}
				if _, ok := sr.Output["helper"]; ok {
					t.Error("expected helper to be skipped")
				}
				if sr.Output["visible"] != int64(2) {
					t.Errorf("expected visible=2, got %v", sr.Output["visible"])
				}
			},
		},
		{
			name:   "rule builtin tags kind",
			script: `r = time_range(name = "early", start_hour = 0, end_hour = 10, increment_size = 1)`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				r, ok := sr.Output["r"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected dict, got %T", sr.Output["r"])
				}
				if r["kind"] != KindTimeRange {
					t.Errorf("kind = %v, want %s", r["kind"], KindTimeRange)
				}
				if r["end_hour"] != int64(10) {
					t.Errorf("end_hour = %v, want 10", r["end_hour"])
				}
			},
		},
		{
			name:   "label builtin",
			script: `l = label(2)`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["l"] != "Resource 3" {
					t.Errorf("label(2) = %v, want Resource 3", sr.Output["l"])
				}
			},
		},
		{
			name:   "range and tuples",
			script: `days = range(5)` + "\n" + `pair = (10, 14)`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				want := []interface{}{int64(0), int64(1), int64(2), int64(3), int64(4)}
				if !reflect.DeepEqual(sr.Output["days"], want) {
					t.Errorf("days = %v, want %v", sr.Output["days"], want)
				}
				if !reflect.DeepEqual(sr.Output["pair"], []interface{}{int64(10), int64(14)}) {
					t.Errorf("pair = %v", sr.Output["pair"])
				}
			},
		},
		{
			name:    "positional args rejected",
			script:  `r = base("x")`,
			wantErr: true,
		},
		{
			name:    "syntax error",
			script:  `rules = [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, "test.star", tt.script, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if result == nil || result.Error == "" {
					t.Error("expected result to carry the error message")
				}
				return
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, result)
			}
		})
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	evaluator := NewStarlarkEvaluator(50 * time.Millisecond)

	script := `
def spin():
    n = 0
    for i in range(10000):
        for j in range(10000):
            n += 1
    return n
x = spin()
`

	_, err := evaluator.Evaluate(context.Background(), "slow.star", script, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got %v", err)
	}
}
