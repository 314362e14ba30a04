package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/copyleftdev/curvefit/internal/errors"
	"github.com/copyleftdev/curvefit/internal/frame"
)

// JobStatus is the lifecycle state of a fit job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job can no longer change.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job tracks one plan run. Fields are guarded by the server's job lock.
type Job struct {
	ID          string
	Name        string
	Status      JobStatus
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Err         string
	Rows        []frame.Row

	cancel context.CancelFunc
}

// JobView is the wire form of a job.
type JobView struct {
	ID          string      `json:"job_id"`
	Name        string      `json:"name,omitempty"`
	Status      JobStatus   `json:"status"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     *time.Time  `json:"end_time,omitempty"`
	LastUpdated time.Time   `json:"last_update"`
	Error       string      `json:"error,omitempty"`
	Results     []frame.Row `json:"results,omitempty"`
}

func (j *Job) view() JobView {
	return JobView{
		ID:          j.ID,
		Name:        j.Name,
		Status:      j.Status,
		StartTime:   j.StartTime,
		EndTime:     j.EndTime,
		LastUpdated: j.LastUpdated,
		Error:       j.Err,
		Results:     append([]frame.Row(nil), j.Rows...),
	}
}

func (j *Job) finish(status JobStatus) {
	now := time.Now()
	j.Status = status
	j.EndTime = &now
	j.LastUpdated = now
}

// jobTable is the in-memory set of jobs.
type jobTable struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobTable() *jobTable {
	return &jobTable{jobs: make(map[string]*Job)}
}

func (t *jobTable) add(name string, cancel context.CancelFunc) *Job {
	now := time.Now()
	job := &Job{
		ID:          uuid.NewString(),
		Name:        name,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		cancel:      cancel,
	}

	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()
	return job
}

func (t *jobTable) get(id string) (JobView, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return JobView{}, apperrors.Wrapf(apperrors.ErrNotFound, "job %s", id)
	}
	return job.view(), nil
}

func (t *jobTable) list() []JobView {
	t.mu.RLock()
	out := make([]JobView, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job.view())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// cancel stops a job that has not finished yet.
func (t *jobTable) cancel(id string) (JobView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return JobView{}, apperrors.Wrapf(apperrors.ErrNotFound, "job %s", id)
	}
	if job.Status.Terminal() {
		return JobView{}, apperrors.Wrapf(apperrors.ErrConflict, "cannot cancel job with status %s", job.Status)
	}
	job.cancel()
	job.finish(StatusCancelled)
	return job.view(), nil
}

// update runs fn on the job under the write lock.
func (t *jobTable) update(id string, fn func(*Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		fn(job)
	}
}

func (t *jobTable) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, job := range t.jobs {
		job.cancel()
	}
}
