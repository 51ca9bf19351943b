// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"sort"

	"template-verifier/internal/common/errors"
	"template-verifier/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaSet holds the compiled input schema of every task type in the
// activity registry. Task types without a schema accept any object.
type SchemaSet struct {
	schemas map[string]*gojsonschema.Schema
}

// CompileRegistry compiles every non-empty input schema. One bad schema fails
// the whole set, naming the activity.
func CompileRegistry(reg *registry.ActivityRegistry) (*SchemaSet, error) {
	set := &SchemaSet{schemas: make(map[string]*gojsonschema.Schema)}
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema of %s: %w", a.ID, err)
		}
		set.schemas[a.TaskType] = schema
	}
	return set, nil
}

// LoadSchemaSet reads the registry at path and compiles it.
func LoadSchemaSet(path string) (*SchemaSet, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load activity registry: %w", err)
	}
	return CompileRegistry(reg)
}

func (s *SchemaSet) Has(taskType string) bool {
	if s == nil {
		return false
	}
	_, ok := s.schemas[taskType]
	return ok
}

// ValidateJobVariables checks the raw job variables of taskType against its
// input schema. Violations come back as INVALID_JOB_VARIABLES listing every
// problem in a stable order.
func (s *SchemaSet) ValidateJobVariables(taskType, variables string) error {
	if s == nil {
		return nil
	}
	schema, ok := s.schemas[taskType]
	if !ok {
		return nil
	}
	if variables == "" {
		variables = "{}"
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(variables))
	if err != nil {
		return errors.NewInvalidJobVariablesError(taskType, []string{err.Error()})
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	sort.Strings(problems)
	return errors.NewInvalidJobVariablesError(taskType, problems)
}
