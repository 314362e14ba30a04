// Package frame runs many fits over the columns of a table and keeps the
// cheapest ones.
//
// Every (initial vector, breakpoint set) combination is tried with every
// configured optimizer method. Failed attempts are tolerated; only the
// minimum-cost success of each combination is kept, and results that round
// to the same measures are stored once.
package frame

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/curvefit/internal/fit"
	"github.com/copyleftdev/curvefit/internal/optimization"
)

var (
	// ErrUnknownColumn is returned for a column the frame does not hold.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNoFit is returned when every attempt of a fit request failed.
	ErrNoFit = errors.New("no attempt succeeded")

	// ErrInvalidPlan is returned for a plan that fails validation.
	ErrInvalidPlan = errors.New("invalid plan")
)

// Recorder observes every fit attempt. metrics.Metrics implements it.
type Recorder interface {
	ObserveAttempt(family string, method optimization.Method, cost float64, d time.Duration, err error)
}

// Options configures a Frame.
type Options struct {
	// Fit is the template for every attempt. Method, Rand and Logger are
	// set per attempt.
	Fit fit.Options

	// Methods tried for every combination.
	Methods []optimization.Method

	// Workers bounds concurrent attempts.
	Workers int

	Logger   *zap.Logger
	Recorder Recorder
}

// DefaultOptions tries every method with one worker per CPU.
func DefaultOptions() Options {
	return Options{
		Fit:     fit.DefaultOptions(),
		Methods: append([]optimization.Method(nil), optimization.Methods...),
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Frame holds named columns over a shared index and the fits found so far.
type Frame struct {
	names  []string
	series map[string]fit.Series
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	seed    int64
	results map[string]map[string]fit.Result
}

// New builds a frame over index. Every column must have one value per index
// entry.
func New(index []float64, columns map[string][]float64, opts Options) (*Frame, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", fit.ErrInvalidSeries)
	}
	if len(opts.Methods) == 0 {
		opts.Methods = append([]optimization.Method(nil), optimization.Methods...)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if err := opts.Fit.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	f := &Frame{
		names:   make([]string, 0, len(columns)),
		series:  make(map[string]fit.Series, len(columns)),
		opts:    opts,
		logger:  opts.Logger.Named("frame"),
		seed:    opts.Fit.Seed,
		results: make(map[string]map[string]fit.Result, len(columns)),
	}
	if f.seed == 0 {
		f.seed = time.Now().UnixNano()
	}

	for name, values := range columns {
		s, err := fit.NewSeries(index, values)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		f.names = append(f.names, name)
		f.series[name] = s
		f.results[name] = make(map[string]fit.Result)
	}
	sort.Strings(f.names)
	return f, nil
}

// Columns returns the column names in sorted order.
func (f *Frame) Columns() []string { return append([]string(nil), f.names...) }

// Series returns the named column.
func (f *Frame) Series(column string) (fit.Series, error) {
	s, ok := f.series[column]
	if !ok {
		return fit.Series{}, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	return s, nil
}

type attempt struct {
	group       int
	order       int
	init        []float64
	breakpoints []float64
	method      optimization.Method
	seed        int64
}

// FitFamily tries family on column from every initial vector with every
// method. It returns the cheapest success per vector and fails only when
// no attempt succeeded.
func (f *Frame) FitFamily(ctx context.Context, column string, family fit.Family, inits [][]float64) ([]fit.Result, error) {
	return f.fit(ctx, column, family, inits, nil)
}

// FitPiecewise is FitFamily over every (initial vector, breakpoint set)
// pair.
func (f *Frame) FitPiecewise(ctx context.Context, column string, family fit.Family, inits [][]float64, breakpointSets [][]float64) ([]fit.Result, error) {
	if len(breakpointSets) == 0 {
		return nil, fmt.Errorf("%w: no breakpoint sets", fit.ErrBreakpoint)
	}
	return f.fit(ctx, column, family, inits, breakpointSets)
}

func (f *Frame) fit(ctx context.Context, column string, family fit.Family, inits [][]float64, breakpointSets [][]float64) ([]fit.Result, error) {
	series, err := f.Series(column)
	if err != nil {
		return nil, err
	}
	if len(inits) == 0 {
		return nil, fmt.Errorf("%w: no initial parameters", fit.ErrParameters)
	}

	attempts := f.plan(inits, breakpointSets)
	groups := len(inits)
	if breakpointSets != nil {
		groups *= len(breakpointSets)
	}

	var (
		mu    sync.Mutex
		best  = make([]fit.Result, groups)
		order = make([]int, groups)
		errs  []error
	)

	g := new(errgroup.Group)
	g.SetLimit(f.opts.Workers)
	for _, a := range attempts {
		g.Go(func() error {
			r, err := f.run(ctx, column, series, family, a)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			cur := best[a.group]
			if cur == nil || r.Cost() < cur.Cost() || (r.Cost() == cur.Cost() && a.order < order[a.group]) {
				best[a.group] = r
				order[a.group] = a.order
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]fit.Result, 0, groups)
	for _, r := range best {
		if r != nil {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: column %q family %s: %w", ErrNoFit, column, family.Name(), errors.Join(errs...))
	}

	f.store(column, kept)
	f.logger.Debug("fitted family",
		zap.String("column", column),
		zap.String("family", family.Name()),
		zap.Int("attempts", len(attempts)),
		zap.Int("failed", len(errs)),
		zap.Int("kept", len(kept)),
	)
	return kept, nil
}

// plan lays out the attempts in a fixed order so that seeds, and therefore
// results, do not depend on scheduling.
func (f *Frame) plan(inits [][]float64, breakpointSets [][]float64) []attempt {
	sets := breakpointSets
	if sets == nil {
		sets = [][]float64{nil}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []attempt
	group := 0
	for _, init := range inits {
		for _, bps := range sets {
			for _, m := range f.opts.Methods {
				out = append(out, attempt{
					group:       group,
					order:       len(out),
					init:        init,
					breakpoints: bps,
					method:      m,
					seed:        f.seed,
				})
				f.seed++
			}
			group++
		}
	}
	return out
}

func (f *Frame) run(ctx context.Context, column string, series fit.Series, family fit.Family, a attempt) (fit.Result, error) {
	opts := f.opts.Fit
	opts.Method = a.method
	opts.Rand = rand.New(rand.NewSource(a.seed))
	opts.Logger = f.opts.Logger

	start := time.Now()
	var (
		r   fit.Result
		err error
	)
	if a.breakpoints != nil {
		r, err = fit.NewPiecewiseFit(ctx, series, family, a.init, a.breakpoints, opts)
	} else {
		r, err = fit.NewSeriesFit(ctx, series, family, a.init, opts)
	}
	elapsed := time.Since(start)

	cost := 0.0
	if err == nil {
		cost = r.Cost()
	}
	if f.opts.Recorder != nil {
		f.opts.Recorder.ObserveAttempt(family.Name(), a.method, cost, elapsed, err)
	}

	if err != nil {
		f.logger.Warn("fit attempt failed",
			zap.String("column", column),
			zap.String("family", family.Name()),
			zap.String("method", string(a.method)),
			zap.Float64s("init", a.init),
			zap.Float64s("breakpoints", a.breakpoints),
			zap.Error(err),
		)
		return nil, err
	}
	return r, nil
}

// store dedupes results by key, keeping the cheaper of two duplicates.
func (f *Frame) store(column string, results []fit.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byKey := f.results[column]
	for _, r := range results {
		if prev, ok := byKey[r.Key()]; ok && prev.Cost() <= r.Cost() {
			continue
		}
		byKey[r.Key()] = r
	}
}

// Ranking returns the column's results in ascending cost. A limit of zero
// or less returns all of them.
func (f *Frame) Ranking(column string, limit int) ([]fit.Result, error) {
	if _, ok := f.series[column]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}

	f.mu.Lock()
	out := make([]fit.Result, 0, len(f.results[column]))
	for _, r := range f.results[column] {
		out = append(out, r)
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost() != out[j].Cost() {
			return out[i].Cost() < out[j].Cost()
		}
		return out[i].Key() < out[j].Key()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Best returns the minimum-cost result of column.
func (f *Frame) Best(column string) (fit.Result, bool) {
	ranked, err := f.Ranking(column, 1)
	if err != nil || len(ranked) == 0 {
		return nil, false
	}
	return ranked[0], true
}

// Run executes every fit of plan. A fit without columns covers all of
// them. Individual failures are logged; Run fails when a column the plan
// targets ends without any result, or when ctx is done.
func (f *Frame) Run(ctx context.Context, plan *Plan) error {
	targeted := make(map[string]bool)
	var errs []error

	for _, fs := range plan.Fits {
		family, err := fit.Lookup(fs.Family)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
		}
		columns := fs.Columns
		if len(columns) == 0 {
			columns = f.names
		}
		inits := fs.InitialParams()

		for _, column := range columns {
			targeted[column] = true
			if len(fs.Breakpoints) > 0 {
				_, err = f.FitPiecewise(ctx, column, family, inits, fs.Breakpoints)
			} else {
				_, err = f.FitFamily(ctx, column, family, inits)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				errs = append(errs, err)
				f.logger.Warn("fit failed",
					zap.String("column", column),
					zap.String("family", family.Name()),
					zap.Error(err),
				)
			}
		}
	}

	var missing []error
	for _, column := range f.names {
		if !targeted[column] {
			continue
		}
		if _, ok := f.Best(column); !ok {
			missing = append(missing, fmt.Errorf("column %q: %w", column, ErrNoFit))
		}
	}
	if len(missing) > 0 {
		return errors.Join(append(missing, errs...)...)
	}
	return nil
}
