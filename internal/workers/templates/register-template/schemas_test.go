// internal/workers/templates/register-template/schemas_test.go
package registertemplate

import (
	"path/filepath"
	"testing"

	"template-verifier/internal/common/validation"

	"github.com/stretchr/testify/require"
)

func loadSchemas(t *testing.T) *validation.SchemaSet {
	t.Helper()
	set, err := validation.LoadSchemaSet(filepath.Join("..", "..", "..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	return set
}
