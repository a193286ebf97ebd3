package resources

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// filterEnv builds the expression environment for one resource.
func filterEnv(r Resource) map[string]interface{} {
	meta := r.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return map[string]interface{}{
		"id":       r.ID,
		"kind":     string(r.Kind),
		"title":    r.Title,
		"metadata": meta,
	}
}

// CompileFilter compiles a boolean filter expression over resource
// fields, e.g. `kind == "comic" && metadata.subject == "history"`.
func CompileFilter(src string) (*vm.Program, error) {
	if src == "" {
		return nil, fmt.Errorf("empty filter expression")
	}
	program, err := expr.Compile(src, expr.Env(filterEnv(Resource{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}
	return program, nil
}

// Filter returns the resources matching the compiled filter, keeping
// the original order.
func Filter(items []Resource, program *vm.Program) ([]Resource, error) {
	var out []Resource
	for _, r := range items {
		result, err := expr.Run(program, filterEnv(r))
		if err != nil {
			return nil, fmt.Errorf("evaluate filter: %w", err)
		}
		if matched, ok := result.(bool); ok && matched {
			out = append(out, r)
		}
	}
	return out, nil
}
