package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SupportedExtensions lists the rule file formats ParseDir picks up.
var SupportedExtensions = []string{".yaml", ".yml", ".json", ".cue", ".star"}

// Parser parses and validates rule files in YAML, JSON, CUE and Starlark.
type Parser struct {
	schemaRegistry    *SchemaRegistry
	starlarkEvaluator *StarlarkEvaluator
	validator         *validator.Validate
}

// NewParser creates a new rule file parser.
func NewParser() *Parser {
	return &Parser{
		schemaRegistry:    NewSchemaRegistry(),
		starlarkEvaluator: NewStarlarkEvaluator(10 * time.Second),
		validator:         validator.New(),
	}
}

// SchemaRegistry returns the parser's schema registry.
func (p *Parser) SchemaRegistry() *SchemaRegistry {
	return p.schemaRegistry
}

// IsSupported reports whether path has a rule file extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Parse parses files and directories in order and merges their rules.
// Problems inside documents are collected in ParsedPolicy.Errors; the returned
// error is reserved for I/O failures.
func (p *Parser) Parse(ctx context.Context, sources []string) (*ParsedPolicy, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	merged := &ParsedPolicy{}
	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var part *ParsedPolicy
		if info.IsDir() {
			part, err = p.ParseDir(ctx, source)
		} else {
			part, err = p.ParseFile(ctx, source)
		}
		if err != nil {
			return nil, err
		}

		if merged.Policy.Name == "" {
			merged.Policy.Name = part.Policy.Name
			merged.Policy.Version = part.Policy.Version
		}
		merged.Policy.Rules = append(merged.Policy.Rules, part.Policy.Rules...)
		merged.SourceFiles = append(merged.SourceFiles, part.SourceFiles...)
		merged.Errors = append(merged.Errors, part.Errors...)
	}

	merged.Errors = append(merged.Errors, duplicateNames(merged.Policy.Rules)...)
	merged.ParsedAt = time.Now()
	return merged, nil
}

// ParseDir parses every supported file directly inside dir, in lexical order.
func (p *Parser) ParseDir(ctx context.Context, dir string) (*ParsedPolicy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	merged := &ParsedPolicy{SourceFiles: []string{}}
	for _, file := range files {
		part, err := p.ParseFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if merged.Policy.Name == "" {
			merged.Policy.Name = part.Policy.Name
			merged.Policy.Version = part.Policy.Version
		}
		merged.Policy.Rules = append(merged.Policy.Rules, part.Policy.Rules...)
		merged.SourceFiles = append(merged.SourceFiles, file)
		merged.Errors = append(merged.Errors, part.Errors...)
	}

	merged.ParsedAt = time.Now()
	return merged, nil
}

// ParseFile parses a single rule file, choosing the format by extension.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParsedPolicy, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		policy PolicyFile
		errs   []ValidationError
	)

	switch ext {
	case ".yaml", ".yml":
		policy, errs = p.decodeYAML(path, content)
	case ".json":
		policy, errs = decodeJSON(path, content)
	case ".cue":
		policy, errs = p.decodeCUE(path, content)
	case ".star":
		policy, errs = p.decodeStarlark(ctx, path, content)
	default:
		return nil, fmt.Errorf("unsupported rule file type: %s", path)
	}

	if len(errs) == 0 {
		errs = p.ValidatePolicy(path, policy)
	}

	return &ParsedPolicy{
		Policy:      policy,
		SourceFiles: []string{path},
		ParsedAt:    time.Now(),
		Errors:      errs,
	}, nil
}

// ParseBytes parses inline content in the given format (yaml, json, cue, star).
func (p *Parser) ParseBytes(ctx context.Context, format string, content []byte) (*ParsedPolicy, error) {
	name := "inline." + strings.TrimPrefix(format, ".")

	var (
		policy PolicyFile
		errs   []ValidationError
	)
	switch strings.TrimPrefix(format, ".") {
	case "yaml", "yml":
		policy, errs = p.decodeYAML(name, content)
	case "json":
		policy, errs = decodeJSON(name, content)
	case "cue":
		policy, errs = p.decodeCUE(name, content)
	case "star":
		policy, errs = p.decodeStarlark(ctx, name, content)
	default:
		return nil, fmt.Errorf("unsupported rule format: %s", format)
	}

	if len(errs) == 0 {
		errs = p.ValidatePolicy(name, policy)
	}

	return &ParsedPolicy{
		Policy:      policy,
		SourceFiles: []string{name},
		ParsedAt:    time.Now(),
		Errors:      errs,
	}, nil
}

func (p *Parser) decodeYAML(path string, content []byte) (PolicyFile, []ValidationError) {
	var policy PolicyFile

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&policy); err != nil {
		return PolicyFile{}, []ValidationError{yamlError(path, err)}
	}
	return policy, nil
}

func decodeJSON(path string, content []byte) (PolicyFile, []ValidationError) {
	var policy PolicyFile

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&policy); err != nil {
		return PolicyFile{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("invalid JSON: %v", err),
			Severity: "error",
		}}
	}
	return policy, nil
}

// decodeCUE compiles the document, unifies it with #PolicyFile and decodes
// the concrete result through JSON.
func (p *Parser) decodeCUE(path string, content []byte) (PolicyFile, []ValidationError) {
	val := p.schemaRegistry.Context().CompileBytes(content, cue.Filename(path))
	if err := val.Err(); err != nil {
		return PolicyFile{}, convertCUEErrors(err)
	}

	unified, err := p.schemaRegistry.Unify("policy", val)
	if err != nil {
		return PolicyFile{}, convertCUEErrors(err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return PolicyFile{}, convertCUEErrors(err)
	}
	return decodeJSON(path, raw)
}

// decodeStarlark runs the script and reads the rules global.
func (p *Parser) decodeStarlark(ctx context.Context, path string, content []byte) (PolicyFile, []ValidationError) {
	result, err := p.starlarkEvaluator.Evaluate(ctx, path, string(content), nil)
	if err != nil {
		return PolicyFile{}, []ValidationError{{
			File:     path,
			Message:  err.Error(),
			Severity: "error",
		}}
	}

	doc := map[string]interface{}{"rules": result.Output["rules"]}
	if name, ok := result.Output["name"].(string); ok {
		doc["name"] = name
	}
	if version, ok := result.Output["version"].(string); ok {
		doc["version"] = version
	}
	if doc["rules"] == nil {
		return PolicyFile{}, []ValidationError{{
			File:     path,
			Path:     "rules",
			Message:  "script does not define a rules list",
			Severity: "error",
		}}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return PolicyFile{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to encode script output: %v", err),
			Severity: "error",
		}}
	}
	return decodeJSON(path, raw)
}

// ValidatePolicy runs struct-tag validation and the semantic checks that tags
// cannot express.
func (p *Parser) ValidatePolicy(path string, policy PolicyFile) []ValidationError {
	var errs []ValidationError

	for i, rule := range policy.Rules {
		rulePath := fmt.Sprintf("rules[%d]", i)

		if err := p.validator.Struct(rule); err != nil {
			errs = append(errs, tagErrors(path, rulePath, err)...)
			continue
		}

		for _, msg := range CheckRule(rule) {
			errs = append(errs, ValidationError{
				File:     path,
				Path:     rulePath,
				Message:  fmt.Sprintf("%s: %s", rule.Name, msg),
				Severity: "error",
			})
		}
	}

	return errs
}

// CheckRule returns the semantic problems of a single rule.
func CheckRule(rule RuleConfig) []string {
	var problems []string

	usesRange := rule.Kind == KindFixedDuration || rule.Kind == KindMinMaxDuration || rule.Kind == KindTimeRange
	if usesRange && rule.StartHour >= rule.EndHour {
		problems = append(problems, fmt.Sprintf("start_hour %d must be before end_hour %d", rule.StartHour, rule.EndHour))
	}

	switch rule.Kind {
	case KindFixedSlot:
		prevEnd := -1
		for i, slot := range rule.Slots {
			if slot[0] >= slot[1] {
				problems = append(problems, fmt.Sprintf("slot %d [%d,%d) is empty", i, slot[0], slot[1]))
				continue
			}
			if slot[0] < prevEnd {
				problems = append(problems, fmt.Sprintf("slot %d [%d,%d) overlaps or precedes the previous slot", i, slot[0], slot[1]))
			}
			prevEnd = slot[1]
		}
	case KindFixedDuration:
		if rule.Duration > rule.EndHour-rule.StartHour && rule.StartHour < rule.EndHour {
			problems = append(problems, fmt.Sprintf("duration %d does not fit in [%d,%d)", rule.Duration, rule.StartHour, rule.EndHour))
		}
	case KindMinMaxDuration:
		if rule.MinDuration > rule.MaxDuration {
			problems = append(problems, fmt.Sprintf("min_duration %d exceeds max_duration %d", rule.MinDuration, rule.MaxDuration))
		}
	}

	return problems
}

// duplicateNames reports rule names that appear more than once.
func duplicateNames(rules []RuleConfig) []ValidationError {
	seen := make(map[string]int, len(rules))
	var errs []ValidationError
	for i, rule := range rules {
		if first, ok := seen[rule.Name]; ok {
			errs = append(errs, ValidationError{
				Path:     fmt.Sprintf("rules[%d]", i),
				Message:  fmt.Sprintf("duplicate rule name %q (first defined at rules[%d])", rule.Name, first),
				Severity: "error",
			})
			continue
		}
		seen[rule.Name] = i
	}
	return errs
}

func tagErrors(path, rulePath string, err error) []ValidationError {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{File: path, Path: rulePath, Message: err.Error(), Severity: "error"}}
	}

	errs := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fmt.Sprintf("failed %q constraint", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q constraint (%s)", fe.Tag(), fe.Param())
		}
		errs = append(errs, ValidationError{
			File:     path,
			Path:     rulePath + "." + fe.Field(),
			Message:  msg,
			Severity: "error",
		})
	}
	return errs
}

func yamlError(path string, err error) ValidationError {
	ve := ValidationError{File: path, Message: err.Error(), Severity: "error"}
	if te, ok := err.(*yaml.TypeError); ok && len(te.Errors) > 0 {
		ve.Message = strings.Join(te.Errors, "; ")
	}
	return ve
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Message:  cueerrors.Details(e, nil),
			Severity: "error",
		}

		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		if p := e.Path(); len(p) > 0 {
			ve.Path = strings.Join(p, ".")
		}

		validationErrors = append(validationErrors, ve)
	}

	return validationErrors
}
