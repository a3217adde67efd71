package admission

import "time"

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is reported but does not block a booking.
	SeverityWarning Severity = "warning"

	// SeverityError blocks a booking.
	SeverityError Severity = "error"

	// SeverityCritical blocks a booking.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity denies the request.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny set lists violations.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the policy source.
	Rego string `json:"rego"`

	// Severity is used for violations that do not carry one.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy came from; empty for builtins.
	Source string `json:"source,omitempty"`
}

// Request describes the booking under review.
type Request struct {
	Week      string `json:"week"`
	Day       int    `json:"day"`
	Resource  int    `json:"resource"`
	Label     string `json:"resource_label"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	Hours     int    `json:"hours"`
	Holder    string `json:"holder"`
}

// Input is the document policies see as input.
type Input struct {
	Request Request `json:"request"`

	// HolderHoursThisWeek counts the holder's active reserved hours in the
	// request's week, excluding the request.
	HolderHoursThisWeek int `json:"holder_hours_this_week"`

	Limits Limits `json:"limits"`
}

// Limits are tunables passed to the builtin policies.
type Limits struct {
	WeeklyHourCap int `json:"weekly_hour_cap"`
}

// Violation is one deny entry.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations.
	Warnings []Violation `json:"warnings,omitempty"`

	EvaluatedPolicies []string      `json:"evaluated_policies"`
	EvaluatedAt       time.Time     `json:"evaluated_at"`
	Duration          time.Duration `json:"duration"`
}

// Messages returns the blocking violation messages.
func (r *Result) Messages() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Policy + ": " + v.Message
	}
	return out
}
