// Package config parses booking rule files and the service configuration.
//
// # Overview
//
// Rule files describe the studio's booking policy as an ordered list of
// rules. The same document can be written in four formats, chosen by file
// extension:
//
//   - .yaml / .yml: plain YAML, unknown keys rejected
//   - .json: plain JSON, unknown keys rejected
//   - .cue: CUE, unified with the builtin #PolicyFile schema before decoding
//   - .star: Starlark, the script assigns a list to the global "rules"
//
// Every format decodes into PolicyFile and goes through the same checks:
// struct tags (validator), then the semantic checks in CheckRule. Problems
// are returned as ValidationError values with a file, a line where the format
// provides one, and a path such as "rules[2].Slots".
//
// # Components
//
// Parser: dispatches on extension and merges files and directories in order.
//
// SchemaRegistry: compiled CUE schemas. Values unified with a schema must be
// compiled in the registry's Context.
//
// StarlarkEvaluator: runs scripts with a timeout and the rule builtins
// base, fixed_slot, fixed_duration, min_max_duration and time_range.
//
// AppConfig: the rsvp.yaml service configuration.
//
// # Rule Document
//
//	name: studio
//	rules:
//	  - name: weekend-sessions
//	    kind: fixed_slot
//	    days: [5, 6]
//	    slots: [[10, 14], [14, 18], [18, 22]]
//	  - name: studio-a-blocks
//	    kind: fixed_duration
//	    days: [0, 1, 2, 3, 4]
//	    resources: ["Resource 1"]
//	    start_hour: 10
//	    end_hour: 22
//	    duration: 4
//
// The same policy in Starlark:
//
//	rules = [
//	    fixed_slot(name = "weekend-sessions", days = [5, 6],
//	               slots = [[10, 14], [14, 18], [18, 22]]),
//	    fixed_duration(name = "studio-a-blocks", days = range(5),
//	                   resources = [label(0)], start_hour = 10, end_hour = 22, duration = 4),
//	]
//
// # Usage
//
//	parser := config.NewParser()
//	parsed, err := parser.Parse(ctx, []string{"rules/"})
//	if err != nil {
//	    return err
//	}
//	if err := parsed.Err(); err != nil {
//	    return err
//	}
//	for _, rc := range parsed.Policy.Rules {
//	    fmt.Println(rc.Name, rc.Kind)
//	}
package config
