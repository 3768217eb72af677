package units

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// yamlNodeFromString parses YAML into the node form the unit
// parameter unmarshalers accept.
func yamlNodeFromString(t *testing.T, s string) yaml.Node {
	t.Helper()

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(s), &doc))
	require.NotEmpty(t, doc.Content)
	return *doc.Content[0]
}
