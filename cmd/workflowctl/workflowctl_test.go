package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `name: Document Review
states:
  - id: draft
    name: Draft
    isInitial: true
  - id: approved
    name: Approved
    isFinal: true
actions:
  - id: approve
    name: Approve
    fromStates: [draft]
    toState: approved
`

const invalidJSON = `{
  "name": "Broken",
  "states": [
    {"id": "a", "name": "A", "isInitial": true},
    {"id": "a", "name": "A again", "isInitial": true}
  ],
  "actions": [
    {"id": "go", "name": "Go", "fromStates": ["x"], "toState": "a"}
  ]
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	valid := writeTemp(t, "review.yaml", validYAML)
	invalid := writeTemp(t, "broken.json", invalidJSON)

	out, err := execute(t, "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (2 states, 1 actions)")

	out, err = execute(t, "validate", valid, invalid)
	require.ErrorIs(t, err, errInvalidDefinitions)
	assert.Contains(t, out, "broken.json: invalid")
	assert.Contains(t, out, "  - Workflow definition cannot have more than one initial state")
	assert.Contains(t, out, "  - Duplicate state IDs found: a")
	assert.Contains(t, out, "  - Action 'go' references non-existent fromState 'x'")
}

func TestValidate_UnknownField(t *testing.T) {
	path := writeTemp(t, "typo.yaml", validYAML+"transitions: []\n")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "failed to parse")
}

func TestGraph(t *testing.T) {
	path := writeTemp(t, "review.yaml", validYAML)

	out, err := execute(t, "graph", path)
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n"+
		"    draft((\"Draft\"))\n"+
		"    approved(((\"Approved\")))\n"+
		"    draft -- \"Approve\" --> approved\n", out)
}
