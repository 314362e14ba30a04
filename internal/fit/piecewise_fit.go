package fit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/copyleftdev/curvefit/internal/curves"
)

// PiecewiseFit fits the same family independently on each segment of a
// series split at breakpoints.
type PiecewiseFit struct {
	breakpoints []float64
	segments    []*SeriesFit
	curve       curves.Curve
	nParams     int
}

// NewPiecewiseFit splits series at breakpoints, each of which must be a value
// of the series index, and fits family on every segment. A segment starts at
// its breakpoint. Any segment failure is returned unmodified.
func NewPiecewiseFit(ctx context.Context, series Series, family Family, init []float64, breakpoints []float64, opts Options) (*PiecewiseFit, error) {
	edges, err := segmentEdges(series, breakpoints)
	if err != nil {
		return nil, err
	}
	if opts.Rand == nil {
		// One source for all segments keeps a seeded run reproducible.
		opts.Rand = opts.rng()
	}
	logger := opts.logger().Named("piecewise_fit")

	segments := make([]*SeriesFit, len(edges)-1)
	pieces := make([]curves.Curve, len(segments))
	for i := range segments {
		seg := series.Slice(edges[i], edges[i+1])
		f, err := NewSeriesFit(ctx, seg, family, init, opts)
		if err != nil {
			return nil, err
		}
		segments[i] = f
		pieces[i] = f.Curve()
	}

	pw, err := curves.NewPiecewise(breakpoints, pieces)
	if err != nil {
		return nil, err
	}

	f := &PiecewiseFit{
		breakpoints: append([]float64(nil), breakpoints...),
		segments:    segments,
		curve:       curves.New(pw),
		nParams:     len(init),
	}
	logger.Debug("fitted",
		zap.String("family", family.Name()),
		zap.Float64s("breakpoints", f.breakpoints),
		zap.Float64("cost", f.Cost()),
	)
	return f, nil
}

// segmentEdges returns the index positions [0, i1, ..., ik, N] bounding
// each segment.
func segmentEdges(series Series, breakpoints []float64) ([]int, error) {
	edges := make([]int, 0, len(breakpoints)+2)
	edges = append(edges, 0)
	for i, b := range breakpoints {
		if i > 0 && !(b > breakpoints[i-1]) {
			return nil, fmt.Errorf("%w: breakpoints must be strictly increasing, got %v after %v",
				ErrBreakpoint, b, breakpoints[i-1])
		}
		idx, ok := series.IndexOf(b)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not in the series index", ErrBreakpoint, b)
		}
		edges = append(edges, idx)
	}
	edges = append(edges, series.Len())

	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, fmt.Errorf("%w: segment %d is empty", ErrBreakpoint, i-1)
		}
	}
	return edges, nil
}

// Curve returns the composed piecewise curve.
func (f *PiecewiseFit) Curve() curves.Curve { return f.curve }

// Evaluate applies the composed curve to x.
func (f *PiecewiseFit) Evaluate(x []float64) []float64 { return f.curve.Evaluate(x) }

// Breakpoints returns the segment boundaries.
func (f *PiecewiseFit) Breakpoints() []float64 { return append([]float64(nil), f.breakpoints...) }

// Segments returns the per-segment fits in index order.
func (f *PiecewiseFit) Segments() []*SeriesFit { return append([]*SeriesFit(nil), f.segments...) }

// Cost is the root mean square of the segment costs.
func (f *PiecewiseFit) Cost() float64 {
	var sum float64
	for _, s := range f.segments {
		sum += s.Cost() * s.Cost()
	}
	return math.Sqrt(sum / float64(len(f.segments)))
}

// Kind tags the segmentation and the kind of every segment.
func (f *PiecewiseFit) Kind() string { return f.curve.Kind() }

// DOF counts every parameter of every segment.
func (f *PiecewiseFit) DOF() int { return len(f.segments) * f.nParams }

// Key identifies the fit by its breakpoints and segment keys.
func (f *PiecewiseFit) Key() string {
	var b strings.Builder
	b.WriteString("PW[")
	for i, bp := range f.breakpoints {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(bp, 'g', -1, 64))
	}
	b.WriteByte(']')
	for _, s := range f.segments {
		b.WriteString("{" + s.Key() + "}")
	}
	return b.String()
}

// Hash is the xxhash of Key.
func (f *PiecewiseFit) Hash() uint64 { return xxhash.Sum64String(f.Key()) }

// Equal reports whether both fits share breakpoints and segment keys.
func (f *PiecewiseFit) Equal(o *PiecewiseFit) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.Key() == o.Key()
}

func (f *PiecewiseFit) String() string {
	parts := make([]string, len(f.segments))
	for i, s := range f.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, " | ")
}
