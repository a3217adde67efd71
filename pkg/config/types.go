package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"gopkg.in/yaml.v3"
)

// Rule kinds accepted in rule files.
const (
	KindBase           = "base"
	KindFixedSlot      = "fixed_slot"
	KindFixedDuration  = "fixed_duration"
	KindMinMaxDuration = "min_max_duration"
	KindTimeRange      = "time_range"
)

// PolicyFile is the top-level shape of a rule file.
type PolicyFile struct {
	// Name labels the policy set.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Version is a free-form version string.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Rules are the booking rules in priority order.
	Rules []RuleConfig `json:"rules" yaml:"rules" validate:"dive"`
}

// RuleConfig is the construction-time description of one booking rule.
// Which hour fields are meaningful depends on Kind.
type RuleConfig struct {
	// Name is a diagnostic label.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Kind selects the rule variant.
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=base fixed_slot fixed_duration min_max_duration time_range"`

	// Days are 0-based day indices; empty means every day.
	Days []int `json:"days,omitempty" yaml:"days,omitempty" validate:"dive,min=0,max=6"`

	// Resources are resource indices or "Resource N" labels; empty means every resource.
	Resources []ResourceRef `json:"resources,omitempty" yaml:"resources,omitempty" validate:"dive,min=0"`

	// Slots are half-open [start, end) windows (fixed_slot).
	Slots [][]int `json:"slots,omitempty" yaml:"slots,omitempty" validate:"dive,len=2,dive,min=0,max=24"`

	// StartHour is the first hour of the rule's range.
	StartHour int `json:"start_hour,omitempty" yaml:"start_hour,omitempty" validate:"min=0,max=24"`

	// EndHour is the exclusive end of the rule's range.
	EndHour int `json:"end_hour,omitempty" yaml:"end_hour,omitempty" validate:"min=0,max=24"`

	// Duration is the fixed block length (fixed_duration).
	Duration int `json:"duration,omitempty" yaml:"duration,omitempty" validate:"min=0,max=24"`

	// MinDuration is the shortest allowed span (min_max_duration).
	MinDuration int `json:"min_duration,omitempty" yaml:"min_duration,omitempty" validate:"min=0,max=24"`

	// MaxDuration is the longest allowed span (min_max_duration).
	MaxDuration int `json:"max_duration,omitempty" yaml:"max_duration,omitempty" validate:"min=0,max=24"`

	// IncrementSize is the block size spans grow by (time_range).
	IncrementSize int `json:"increment_size,omitempty" yaml:"increment_size,omitempty" validate:"min=0,max=24"`
}

// ResourceIndices returns the resource scope as plain indices.
func (rc RuleConfig) ResourceIndices() []int {
	out := make([]int, len(rc.Resources))
	for i, r := range rc.Resources {
		out[i] = int(r)
	}
	return out
}

// ResourceRef is a resource index that decodes from either an integer or a
// "Resource N" label and encodes back to the label form.
type ResourceRef int

// UnmarshalJSON accepts 2 or "Resource 3".
func (r *ResourceRef) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = ResourceRef(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("resource must be an index or a label: %s", string(data))
	}
	return r.set(s)
}

// MarshalJSON writes the label form.
func (r ResourceRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(grid.ResourceLabel(int(r)))
}

// UnmarshalYAML accepts 2 or "Resource 3".
func (r *ResourceRef) UnmarshalYAML(node *yaml.Node) error {
	var n int
	if err := node.Decode(&n); err == nil {
		*r = ResourceRef(n)
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: resource must be an index or a label", node.Line)
	}
	return r.set(s)
}

// MarshalYAML writes the label form.
func (r ResourceRef) MarshalYAML() (interface{}, error) {
	return grid.ResourceLabel(int(r)), nil
}

func (r *ResourceRef) set(s string) error {
	idx, err := grid.ParseResource(s)
	if err != nil {
		return err
	}
	*r = ResourceRef(idx)
	return nil
}

// ParsedPolicy is the result of parsing one or more rule files.
type ParsedPolicy struct {
	// Policy holds the merged rules in file order.
	Policy PolicyFile `json:"policy"`

	// SourceFiles are the files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when parsing finished.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists syntax, schema and semantic problems.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err returns a CONFIG_INVALID error summarising Errors, or nil.
func (pp *ParsedPolicy) Err() error {
	if len(pp.Errors) == 0 {
		return nil
	}
	return grid.NewInvalidError(
		fmt.Sprintf("%d rule configuration error(s), first: %s", len(pp.Errors), pp.Errors[0].String()),
		nil,
	).WithCode(grid.ErrCodeConfigInvalid).WithDetail("errors", pp.Errors)
}

// ValidationError represents a configuration problem with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path locates the problem inside the document (e.g. "rules[2].slots").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// String renders the error with its location.
func (ve ValidationError) String() string {
	loc := ve.File
	if ve.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", ve.File, ve.Line, ve.Column)
	}
	switch {
	case loc != "" && ve.Path != "":
		return fmt.Sprintf("%s %s: %s", loc, ve.Path, ve.Message)
	case loc != "":
		return fmt.Sprintf("%s: %s", loc, ve.Message)
	case ve.Path != "":
		return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
	}
	return ve.Message
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output holds the script's exported globals.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
