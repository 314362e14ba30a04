package frame

import (
	"bytes"
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/curvefit/internal/fit"
	"github.com/copyleftdev/curvefit/internal/optimization"
)

type recorder struct {
	mu       sync.Mutex
	attempts map[optimization.Method]int
	failures int
}

func (r *recorder) ObserveAttempt(_ string, method optimization.Method, _ float64, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempts == nil {
		r.attempts = make(map[optimization.Method]int)
	}
	r.attempts[method]++
	if err != nil {
		r.failures++
	}
}

func table(t *testing.T, n int, seed int64) ([]float64, map[string][]float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	index := floats.Span(make([]float64, n), 1, float64(n))
	line := make([]float64, n)
	quad := make([]float64, n)
	for i, x := range index {
		line[i] = 3 + 2*x + 0.2*rng.NormFloat64()
		quad[i] = 1 - x + 0.5*x*x + 0.2*rng.NormFloat64()
	}
	return index, map[string][]float64{"line": line, "quad": quad}
}

func testOptions(seed int64) Options {
	opts := DefaultOptions()
	opts.Fit.Seed = seed
	opts.Workers = 4
	return opts
}

func TestNew(t *testing.T) {
	index, columns := table(t, 20, 1)

	t.Run("sorted columns", func(t *testing.T) {
		f, err := New(index, columns, testOptions(1))
		require.NoError(t, err)
		assert.Equal(t, []string{"line", "quad"}, f.Columns())
	})

	t.Run("no columns", func(t *testing.T) {
		_, err := New(index, nil, testOptions(1))
		assert.ErrorIs(t, err, fit.ErrInvalidSeries)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := New(index, map[string][]float64{"short": {1, 2}}, testOptions(1))
		assert.ErrorIs(t, err, fit.ErrInvalidSeries)
		assert.Contains(t, err.Error(), `"short"`)
	})

	t.Run("bad fit options", func(t *testing.T) {
		opts := testOptions(1)
		opts.Fit.Sigma = 0
		_, err := New(index, columns, opts)
		assert.ErrorIs(t, err, fit.ErrOptions)
	})

	t.Run("unknown column", func(t *testing.T) {
		f, err := New(index, columns, testOptions(1))
		require.NoError(t, err)
		_, err = f.FitFamily(context.Background(), "nope", fit.Polynomial{}, [][]float64{fit.Degree(1)})
		assert.ErrorIs(t, err, ErrUnknownColumn)
		_, err = f.Ranking("nope", 0)
		assert.ErrorIs(t, err, ErrUnknownColumn)
		_, ok := f.Best("nope")
		assert.False(t, ok)
	})
}

func TestFitFamilyKeepsCheapestPerInit(t *testing.T) {
	index, columns := table(t, 30, 2)
	rec := &recorder{}
	opts := testOptions(5)
	opts.Recorder = rec

	f, err := New(index, columns, opts)
	require.NoError(t, err)

	inits := [][]float64{fit.Degree(1), fit.Degree(2), fit.Degree(3)}
	kept, err := f.FitFamily(context.Background(), "quad", fit.Polynomial{}, inits)
	require.NoError(t, err)
	assert.Len(t, kept, 3)

	total := 0
	for _, m := range optimization.Methods {
		assert.Equal(t, len(inits), rec.attempts[m], "method %s", m)
		total += rec.attempts[m]
	}
	assert.Equal(t, len(inits)*len(optimization.Methods), total)

	ranked, err := f.Ranking("quad", 0)
	require.NoError(t, err)
	require.NotEmpty(t, ranked)
	assert.True(t, sort.SliceIsSorted(ranked, func(i, j int) bool { return ranked[i].Cost() < ranked[j].Cost() }))

	best, ok := f.Best("quad")
	require.True(t, ok)
	assert.Equal(t, ranked[0].Key(), best.Key())
	for _, r := range kept {
		assert.LessOrEqual(t, best.Cost(), r.Cost())
	}

	top, err := f.Ranking("quad", 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	_, ok = f.Best("line")
	assert.False(t, ok)
}

func TestFitFamilyToleratesFailures(t *testing.T) {
	index, columns := table(t, 20, 3)
	rec := &recorder{}
	opts := testOptions(1)
	opts.Recorder = rec

	f, err := New(index, columns, opts)
	require.NoError(t, err)

	// Log takes exactly two parameters; the second vector fails every method.
	kept, err := f.FitFamily(context.Background(), "line", fit.Log{}, [][]float64{{1, 1}, {1, 1, 1}})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	assert.GreaterOrEqual(t, rec.failures, len(optimization.Methods))

	_, err = f.FitFamily(context.Background(), "line", fit.Log{}, [][]float64{{1, 1, 1}})
	assert.ErrorIs(t, err, ErrNoFit)
	assert.ErrorIs(t, err, fit.ErrParameters)
}

func TestInterpolatingFitIsRejected(t *testing.T) {
	index, columns := table(t, 6, 7)
	opts := testOptions(7)
	opts.Methods = []optimization.Method{optimization.MethodLM}

	f, err := New(index, columns, opts)
	require.NoError(t, err)

	kept, err := f.FitFamily(context.Background(), "line", fit.Polynomial{}, [][]float64{fit.Degree(1), fit.Degree(5)})
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	best, ok := f.Best("line")
	require.True(t, ok)
	assert.Equal(t, "Poly(1)", best.Kind())

	_, err = f.FitFamily(context.Background(), "quad", fit.Polynomial{}, [][]float64{fit.Degree(5)})
	assert.ErrorIs(t, err, ErrNoFit)
	assert.ErrorIs(t, err, fit.ErrInvalidSeries)
}

func TestFitFamilyDedupes(t *testing.T) {
	index, columns := table(t, 25, 4)
	opts := testOptions(1)
	opts.Methods = []optimization.Method{optimization.MethodLM}
	opts.Fit.Fraction = 1

	f, err := New(index, columns, opts)
	require.NoError(t, err)

	kept, err := f.FitFamily(context.Background(), "line", fit.Polynomial{}, [][]float64{{1, 1}, {1, 1}})
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, kept[0].Key(), kept[1].Key())

	ranked, err := f.Ranking("line", 0)
	require.NoError(t, err)
	assert.Len(t, ranked, 1)
}

func TestFitPiecewise(t *testing.T) {
	index := floats.Span(make([]float64, 40), 0, 39)
	kink := make([]float64, len(index))
	for i, x := range index {
		if x < 20 {
			kink[i] = x
		} else {
			kink[i] = 40 - x
		}
	}
	opts := testOptions(3)
	opts.Methods = []optimization.Method{optimization.MethodLM}

	f, err := New(index, map[string][]float64{"kink": kink}, opts)
	require.NoError(t, err)

	kept, err := f.FitPiecewise(context.Background(), "kink", fit.Polynomial{}, [][]float64{fit.Degree(1)},
		[][]float64{{20}, {10, 30}})
	require.NoError(t, err)
	assert.Len(t, kept, 2)

	best, ok := f.Best("kink")
	require.True(t, ok)
	assert.Equal(t, "PW:Poly(1)-[20]Poly(1)", best.Kind())

	_, err = f.FitPiecewise(context.Background(), "kink", fit.Polynomial{}, [][]float64{fit.Degree(1)}, nil)
	assert.ErrorIs(t, err, fit.ErrBreakpoint)

	_, err = f.FitPiecewise(context.Background(), "kink", fit.Polynomial{}, [][]float64{fit.Degree(1)}, [][]float64{{20.5}})
	assert.ErrorIs(t, err, ErrNoFit)
	assert.ErrorIs(t, err, fit.ErrBreakpoint)
}

func TestSeededFramesAgree(t *testing.T) {
	index, columns := table(t, 30, 6)
	run := func() []Row {
		f, err := New(index, columns, testOptions(99))
		require.NoError(t, err)
		for _, c := range f.Columns() {
			_, err := f.FitFamily(context.Background(), c, fit.Polynomial{}, [][]float64{fit.Degree(1), fit.Degree(2)})
			require.NoError(t, err)
		}
		return f.Summary(0)
	}
	assert.Equal(t, run(), run())
}

func TestCancelledContext(t *testing.T) {
	index, columns := table(t, 20, 7)
	f, err := New(index, columns, testOptions(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.FitFamily(ctx, "line", fit.Polynomial{}, [][]float64{fit.Degree(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummary(t *testing.T) {
	index, columns := table(t, 30, 8)
	f, err := New(index, columns, testOptions(2))
	require.NoError(t, err)
	for _, c := range f.Columns() {
		_, err := f.FitFamily(context.Background(), c, fit.Polynomial{}, [][]float64{fit.Degree(1), fit.Degree(2)})
		require.NoError(t, err)
	}

	rows := f.Summary(1)
	require.Len(t, rows, 2)
	assert.Equal(t, "line", rows[0].Column)
	assert.Equal(t, "quad", rows[1].Column)
	for _, r := range rows {
		best, ok := f.Best(r.Column)
		require.True(t, ok)
		assert.Equal(t, best.Cost(), r.Cost)
		assert.Equal(t, best.String(), r.Fit)
		assert.Equal(t, best.DOF(), r.DOF)
	}
	assert.Equal(t, "Poly(2)", rows[1].Kind)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "COLUMN"))
	assert.True(t, strings.HasPrefix(lines[1], "line"))
}
