package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation. Each registered schema
// is a CUE source whose main definition shares the schema's name, e.g. the
// "policy" schema defines #PolicyFile.
type SchemaRegistry struct {
	ctx         *cue.Context
	schemas     map[string]cue.Value
	definitions map[string]string
	mu          sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:         cuecontext.New(),
		schemas:     make(map[string]cue.Value),
		definitions: make(map[string]string),
	}

	// Built-in schemas are constants; a compile failure is a programming error.
	if err := sr.RegisterSchema("policy", "#PolicyFile", builtinPolicySchema); err != nil {
		panic(err)
	}
	if err := sr.RegisterSchema("rule", "#Rule", builtinPolicySchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema compiles a CUE schema and records the definition used for
// validation under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, definition)
	}

	sr.schemas[name] = def
	sr.definitions[name] = definition
	return nil
}

// Context returns the CUE context schemas were compiled in. Values unified
// with a registered schema must be built in this context.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// GetSchema retrieves a schema definition by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify unifies a CUE value with a named schema and checks it is concrete.
func (sr *SchemaRegistry) Unify(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(_ context.Context, schemaName string, data interface{}) error {
	// Round-trip through JSON so omitempty and custom marshalers apply.
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	dataVal := sr.ctx.CompileBytes(raw)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(schemaName, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateRule validates a single rule configuration against the rule schema.
func (sr *SchemaRegistry) ValidateRule(ctx context.Context, rule RuleConfig) error {
	return sr.ValidateAgainstSchema(ctx, "rule", rule)
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// builtinPolicySchema describes rule files. Resources may be indices or
// "Resource N" labels, so the field is a disjunction.
const builtinPolicySchema = `
#Hour: int & >=0 & <=24

#Rule: {
	name: string & !=""
	kind: "base" | "fixed_slot" | "fixed_duration" | "min_max_duration" | "time_range"

	days?: [...(int & >=0 & <=6)]
	resources?: [...((int & >=0) | (string & =~"^Resource [1-9][0-9]*$"))]

	slots?: [...[#Hour, #Hour]]

	start_hour?:     #Hour
	end_hour?:       #Hour
	duration?:       #Hour
	min_duration?:   #Hour
	max_duration?:   #Hour
	increment_size?: #Hour
}

#PolicyFile: {
	name?:    string
	version?: string
	rules: [...#Rule]
}
`
