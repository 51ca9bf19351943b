// internal/common/validation/schema_test.go
package validation

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"template-verifier/internal/common/errors"
	"template-verifier/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *registry.ActivityRegistry {
	return &registry.ActivityRegistry{
		Activities: []registry.Activity{
			{
				ID:       "match-document",
				TaskType: "match-document",
				InputSchema: map[string]interface{}{
					"type": "object",
					"anyOf": []interface{}{
						map[string]interface{}{"required": []interface{}{"extractedFieldSet"}},
						map[string]interface{}{"required": []interface{}{"imagePath"}},
					},
					"properties": map[string]interface{}{
						"extractedFieldSet": map[string]interface{}{"type": "object"},
						"imagePath":         map[string]interface{}{"type": "string", "minLength": 1},
					},
				},
			},
			{ID: "list-templates", TaskType: "list-templates"},
		},
	}
}

func TestSchemaSet_ValidateJobVariables(t *testing.T) {
	set, err := CompileRegistry(testRegistry())
	require.NoError(t, err)
	assert.True(t, set.Has("match-document"))
	assert.False(t, set.Has("list-templates"))

	tests := []struct {
		name    string
		vars    string
		wantErr bool
	}{
		{"field set", `{"extractedFieldSet": {"board": "CBSE"}}`, false},
		{"image path", `{"imagePath": "/scans/a.png"}`, false},
		{"neither", `{"board": "CBSE"}`, true},
		{"empty variables", ``, true},
		{"wrong type", `{"imagePath": 42}`, true},
		{"not json", `{"imagePath":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := set.ValidateJobVariables("match-document", tt.vars)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidJobVariables))
		})
	}

	assert.NoError(t, set.ValidateJobVariables("list-templates", `{"anything": true}`))
	assert.NoError(t, set.ValidateJobVariables("unknown", `{}`))
}

func TestSchemaSet_ProblemsInMetadata(t *testing.T) {
	set, err := CompileRegistry(testRegistry())
	require.NoError(t, err)

	err = set.ValidateJobVariables("match-document", `{"imagePath": ""}`)
	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	problems, ok := stdErr.Metadata["problems"].([]string)
	require.True(t, ok)
	assert.NotEmpty(t, problems)
	assert.Contains(t, stdErr.Details, "taskType: match-document")
}

func TestSchemaSet_NilAcceptsAll(t *testing.T) {
	var set *SchemaSet
	assert.NoError(t, set.ValidateJobVariables("match-document", `{}`))
	assert.False(t, set.Has("match-document"))
}

func TestCompileRegistry_BadSchema(t *testing.T) {
	reg := &registry.ActivityRegistry{Activities: []registry.Activity{{
		ID:          "broken",
		TaskType:    "broken",
		InputSchema: map[string]interface{}{"type": 12},
	}}}
	_, err := CompileRegistry(reg)
	assert.ErrorContains(t, err, "compile input schema of broken")
}

func TestLoadSchemaSet_ShippedRegistry(t *testing.T) {
	path := filepath.Join("..", "..", "..", "configs", "activity-registry.json")
	if _, err := os.Stat(path); err != nil {
		t.Skip("activity registry not found")
	}
	set, err := LoadSchemaSet(path)
	require.NoError(t, err)

	for _, taskType := range []string{"register-template", "get-template", "update-template", "delete-template", "match-document", "validate-extraction"} {
		assert.True(t, set.Has(taskType), taskType)
	}
	assert.Error(t, set.ValidateJobVariables("register-template", `{"board": "CBSE"}`))
	assert.NoError(t, set.ValidateJobVariables("register-template", `{"board": "CBSE", "program": "AISSE"}`))
	assert.Error(t, set.ValidateJobVariables("search-templates", `{"size": 500}`))
}
