package frame

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/curvefit/internal/optimization"
)

const linePlan = `
name: lines
index: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12]
columns:
  up:   [5.1, 6.9, 9.2, 10.8, 13.1, 15.0, 16.9, 19.1, 21.0, 22.9, 25.2, 27.0]
  down: [9.0, 8.1, 6.9, 6.1, 5.0, 3.9, 3.1, 2.0, 1.1, -0.1, -1.0, -2.1]
options:
  methods: [lm, nelder-mead]
  fraction: 0.75
  overfit: 0
  seed: 11
fits:
  - family: polynomial
    degrees: [1, 2]
  - family: log
    columns: [up]
    inits: [[1, 1]]
limit: 2
`

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan([]byte(linePlan))
	require.NoError(t, err)

	assert.Equal(t, "lines", p.Name)
	assert.Len(t, p.Index, 12)
	assert.Len(t, p.Columns, 2)
	require.Len(t, p.Fits, 2)
	assert.Equal(t, [][]float64{{1, 1}, {1, 1, 1}}, p.Fits[0].InitialParams())
	assert.Equal(t, [][]float64{{1, 1}}, p.Fits[1].InitialParams())

	opts, err := p.Apply(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []optimization.Method{optimization.MethodLM, optimization.MethodNelderMead}, opts.Methods)
	assert.Equal(t, 0.75, opts.Fit.Fraction)
	assert.Equal(t, 0.0, opts.Fit.Overfit)
	assert.Equal(t, int64(11), opts.Fit.Seed)
	assert.Equal(t, 10.0, opts.Fit.Sigma)
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no fits",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\n",
		},
		{
			name: "unknown family",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\nfits: [{family: spline, degrees: [1]}]\n",
		},
		{
			name: "no initial parameters",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\nfits: [{family: polynomial}]\n",
		},
		{
			name: "column length",
			yaml: "index: [1, 2, 3]\ncolumns: {a: [1, 2]}\nfits: [{family: polynomial, degrees: [1]}]\n",
		},
		{
			name: "unknown fit column",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\nfits: [{family: polynomial, degrees: [1], columns: [b]}]\n",
		},
		{
			name: "bad method",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\noptions: {methods: [newton]}\nfits: [{family: log, inits: [[1, 1]]}]\n",
		},
		{
			name: "fraction out of range",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\noptions: {fraction: 1.5}\nfits: [{family: log, inits: [[1, 1]]}]\n",
		},
		{
			name: "negative degree",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\nfits: [{family: polynomial, degrees: [-1]}]\n",
		},
		{
			name: "empty breakpoint set",
			yaml: "index: [1, 2]\ncolumns: {a: [1, 2]}\nfits: [{family: polynomial, degrees: [1], breakpoints: [[]]}]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePlan([]byte(tt.yaml))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParsePlan([]byte("index: [1, 2\n"))
		assert.Error(t, err)
	})
}

func TestLoadPlanAndRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(linePlan), 0o600))

	p, err := LoadPlan(path)
	require.NoError(t, err)
	opts, err := p.Apply(DefaultOptions())
	require.NoError(t, err)

	f, err := New(p.Index, p.Columns, opts)
	require.NoError(t, err)
	require.NoError(t, f.Run(context.Background(), p))

	for _, c := range []string{"down", "up"} {
		_, ok := f.Best(c)
		assert.True(t, ok, c)
	}
	rows := f.Summary(p.Limit)
	assert.LessOrEqual(t, len(rows), 4)
	assert.Equal(t, "down", rows[0].Column)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunFailsWhenColumnHasNoFit(t *testing.T) {
	p, err := ParsePlan([]byte(`
index: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10]
columns:
  a: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10]
fits:
  - family: power-law
    inits: [[1, 1, 1]]
`))
	require.NoError(t, err)

	f, err := New(p.Index, p.Columns, testOptions(1))
	require.NoError(t, err)
	err = f.Run(context.Background(), p)
	assert.ErrorIs(t, err, ErrNoFit)
}
