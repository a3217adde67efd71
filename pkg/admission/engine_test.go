package admission

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger, Limits{WeeklyHourCap: 12})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func request(holder string, start, end int) Request {
	return Request{
		Week:      "2026-W42",
		Day:       2,
		Resource:  1,
		Label:     "Resource 2",
		StartHour: start,
		EndHour:   end,
		Hours:     end - start + 1,
		Holder:    holder,
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	var names []string
	for _, p := range eng.ListPolicies() {
		names = append(names, p.Name)
	}
	want := "holder-required,late-finish,weekly-hour-cap"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("policies = %s, want %s", got, want)
	}
}

func TestEvaluate_Builtins(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		req          Request
		holderHours  int
		wantAllowed  bool
		wantPolicy   string
		wantWarnings int
	}{
		{
			name:        "allowed",
			req:         request("ada", 10, 13),
			wantAllowed: true,
		},
		{
			name:        "missing holder",
			req:         request("  ", 10, 13),
			wantAllowed: false,
			wantPolicy:  "holder-required",
		},
		{
			name:        "cap reached exactly",
			req:         request("ada", 10, 13),
			holderHours: 8,
			wantAllowed: true,
		},
		{
			name:        "cap exceeded",
			req:         request("ada", 10, 13),
			holderHours: 9,
			wantAllowed: false,
			wantPolicy:  "weekly-hour-cap",
		},
		{
			name:         "late finish warns",
			req:          request("ada", 22, 23),
			wantAllowed:  true,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(ctx, tt.req, tt.holderHours)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (violations %v)", result.Allowed, tt.wantAllowed, result.Violations)
			}
			if tt.wantPolicy != "" {
				if len(result.Violations) != 1 || result.Violations[0].Policy != tt.wantPolicy {
					t.Errorf("violations = %v, want one from %s", result.Violations, tt.wantPolicy)
				}
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", result.Warnings, tt.wantWarnings)
			}
			if len(result.EvaluatedPolicies) != 3 {
				t.Errorf("evaluated = %v, want 3 policies", result.EvaluatedPolicies)
			}
		})
	}
}

func TestEvaluate_CapMessage(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.Evaluate(context.Background(), request("ada", 10, 13), 10)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	msgs := result.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "14 hours in week 2026-W42") {
		t.Errorf("Messages() = %v", msgs)
	}
}

func TestSetEnabled(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.SetEnabled("holder-required", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	result, err := eng.Evaluate(ctx, request("", 10, 13), 0)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Allowed {
		t.Errorf("disabled policy still blocks: %v", result.Violations)
	}

	if err := eng.SetEnabled("nonexistent", true); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestLoadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	sunday := `# Studio 3 is closed on Sundays.
package rsvp.admission.sunday

import rego.v1

deny contains "Resource 3 is closed on Sundays" if {
	input.request.day == 6
	input.request.resource == 2
}
`
	if err := os.WriteFile(filepath.Join(dir, "sunday.rego"), []byte(sunday), 0644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := eng.LoadPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}

	var loaded *Policy
	for _, p := range eng.ListPolicies() {
		if p.Name == "sunday" {
			p := p
			loaded = &p
		}
	}
	if loaded == nil {
		t.Fatal("sunday policy not loaded")
	}
	if loaded.Description != "Studio 3 is closed on Sundays." {
		t.Errorf("Description = %q", loaded.Description)
	}

	req := request("ada", 10, 13)
	req.Day, req.Resource = 6, 2
	result, err := eng.Evaluate(ctx, req, 0)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("expected Sunday booking to be denied")
	}
	if v := result.Violations[0]; v.Policy != "sunday" || v.Severity != SeverityError {
		t.Errorf("violation = %+v", v)
	}
}

func TestLoadPolicies_Invalid(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("package x\n\ndeny contains if {"), 0644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err == nil {
		t.Error("expected compile error")
	}

	if err := eng.LoadPolicies(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"single line", "# Hello\npackage a\n", "Hello"},
		{"multi line", "# One\n# Two\n\npackage a\n", "One Two"},
		{"none", "package a\n\ndeny contains \"x\" if { true }\n", ""},
		{"stops at first rule", "package a\nimport rego.v1\ndeny contains \"x\" if { true }\n# later\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDescription(tt.content); got != tt.want {
				t.Errorf("extractDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}
