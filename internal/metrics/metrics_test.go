package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/copyleftdev/curvefit/internal/optimization"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ResultOK},
		{err: optimization.WrapError(optimization.ErrNotConverged, "x"), want: ResultNotConverged},
		{err: fmt.Errorf("wrapped: %w", optimization.ErrDegenerate), want: ResultDegenerate},
		{err: context.Canceled, want: ResultCancelled},
		{err: context.DeadlineExceeded, want: ResultCancelled},
		{err: errors.New("boom"), want: ResultError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestObserveAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAttempt("polynomial", optimization.MethodLM, 0.5, 10*time.Millisecond, nil)
	m.ObserveAttempt("polynomial", optimization.MethodLM, 0.7, 20*time.Millisecond, nil)
	m.ObserveAttempt("polynomial", optimization.MethodBFGS, 0, time.Millisecond, optimization.ErrNotConverged)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("polynomial", "lm", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("polynomial", "bfgs", ResultNotConverged)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.cost))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestJobs(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.JobStarted()
	m.JobStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runningJobs))

	m.JobFinished("completed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runningJobs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("completed")))
}
