package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/curvefit/internal/frame"
)

const plan = `
name: cli
index: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10]
columns:
  y: [3.1, 4.9, 7.2, 8.8, 11.1, 13.0, 14.9, 17.1, 19.0, 20.9]
options:
  methods: [lm]
  seed: 3
fits:
  - family: polynomial
    degrees: [1, 2]
limit: 1
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_OUTPUT", filepath.Join(t.TempDir(), "log.json"))

	limit, outputFormat, verbose = -1, "table", false
	for _, name := range []string{"limit", "format"} {
		if f := fitCmd.Flags().Lookup(name); f != nil {
			f.Changed = false
		}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFitTable(t *testing.T) {
	out, err := execute(t, "fit", writePlan(t, plan))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "COLUMN"))
	assert.True(t, strings.HasPrefix(lines[1], "y "))
}

func TestFitJSONWithLimit(t *testing.T) {
	out, err := execute(t, "fit", "--format", "json", "--limit", "0", writePlan(t, plan))
	require.NoError(t, err)

	var rows []frame.Row
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.LessOrEqual(t, rows[0].Cost, rows[1].Cost)
}

func TestFitErrors(t *testing.T) {
	_, err := execute(t, "fit", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "fit", "--format", "xml", writePlan(t, plan))
	assert.ErrorContains(t, err, "unknown output format")

	_, err = execute(t, "fit", writePlan(t, "index: [1]\n"))
	assert.ErrorIs(t, err, frame.ErrInvalidPlan)
}

func TestFamilies(t *testing.T) {
	out, err := execute(t, "families")
	require.NoError(t, err)
	assert.Equal(t, "inverse-x\nlog\npolynomial\npower-law\nxlog\n", out)
}
