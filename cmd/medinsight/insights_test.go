package medinsight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "insights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadInsights(t *testing.T) {
	path := writeFile(t, `
- text: Check ferritin before starting IV iron.
  category: Hematology
  owner_scope: hosp-b
  medication: Iron sucrose
  lab_test: Ferritin, TSAT
- text: Repeat lactate within two hours.
  category: Sepsis
`)

	inputs, err := readInsights(path, "hosp-a")
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "hosp-b", inputs[0].OwnerScope)
	assert.Equal(t, "Iron sucrose", inputs[0].Medication)
	assert.Equal(t, "Ferritin, TSAT", inputs[0].LabTest)
	assert.Equal(t, "hosp-a", inputs[1].OwnerScope)
	assert.Empty(t, inputs[1].Medication)
}

func TestReadInsightsMissingScope(t *testing.T) {
	path := writeFile(t, "- text: no scope here\n")

	_, err := readInsights(path, "")
	assert.Error(t, err)
}

func TestReadInsightsBadFile(t *testing.T) {
	_, err := readInsights(filepath.Join(t.TempDir(), "missing.yaml"), "hosp-a")
	assert.Error(t, err)

	_, err = readInsights(writeFile(t, "text: [unterminated"), "hosp-a")
	assert.Error(t, err)
}
