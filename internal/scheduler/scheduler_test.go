package scheduler

import (
	"context"
	"testing"

	"github.com/edgecore/core-runtime/internal/job"
	"github.com/stretchr/testify/assert"
)

type fakeJob struct {
	statuses []job.Status
	i        int
	ran      int
}

func (f *fakeJob) Run(ctx context.Context) job.Status {
	f.ran++
	if f.i >= len(f.statuses) {
		return job.StatusComplete
	}
	s := f.statuses[f.i]
	f.i++
	return s
}

func TestDoJobsRunsPriorityBeforeNormal(t *testing.T) {
	s := New()
	order := []string{}
	s.AddJob(runFunc(func() { order = append(order, "normal") }))
	s.AddPriorityJob(runFunc(func() { order = append(order, "priority") }))
	s.DoJobs(context.Background())
	assert.Equal(t, []string{"priority", "normal"}, order)
}

func TestDoJobsRunsEveryReadyNormalJobOnce(t *testing.T) {
	s := New()
	ran := 0
	s.AddJob(runFunc(func() { ran++ }))
	s.AddJob(runFunc(func() { ran++ }))
	s.AddJob(runFunc(func() { ran++ }))
	s.DoJobs(context.Background())
	assert.Equal(t, 3, ran)
	assert.True(t, s.normalReady.Empty())
}

func TestDoJobsDoesNotRunNormalJobsAdmittedDuringThisCall(t *testing.T) {
	s := New()
	ran := 0
	s.AddJob(runFunc(func() {
		ran++
		s.AddJob(runFunc(func() { ran++ }))
	}))
	s.DoJobs(context.Background())
	assert.Equal(t, 1, ran, "a job admitted mid-pass must wait for the next DoJobs call")
	assert.Equal(t, 1, s.normalReady.Len())
}

func TestRetryDoesNotSpinWithinOneDoJobsCall(t *testing.T) {
	s := New()
	fj := &fakeJob{statuses: []job.Status{job.StatusRetry, job.StatusRetry, job.StatusRetry}}
	s.AddPriorityJob(fj)
	s.DoJobs(context.Background())
	assert.Equal(t, 1, fj.ran, "a retrying job must only run once per DoJobs call")
	assert.Equal(t, 1, s.priorityReady.Len(), "retried job is re-admitted for the next call")
}

func TestDoAllNonPriorityJobsDrivesRetriesToCompletion(t *testing.T) {
	s := New()
	fj := &fakeJob{statuses: []job.Status{job.StatusRetry, job.StatusRetry}}
	s.AddJob(fj)
	s.DoAllNonPriorityJobs(context.Background())
	assert.Equal(t, 3, fj.ran)
	assert.True(t, s.normalReady.Empty())
}

func TestRetryWhenOnlineParksUntilNotified(t *testing.T) {
	s := New()
	fj := &fakeJob{statuses: []job.Status{job.StatusRetryWhenOnline}}
	s.AddJob(fj)
	s.DoJobs(context.Background())
	assert.Equal(t, 1, s.WaitingForInternetCount())
	assert.True(t, s.normalReady.Empty())

	s.DoJobs(context.Background())
	assert.Equal(t, 1, fj.ran, "parked job must not be re-run until NotifyOnline")

	s.NotifyOnline()
	assert.Equal(t, 0, s.WaitingForInternetCount())
	s.DoJobs(context.Background())
	assert.Equal(t, 2, fj.ran)
}

type runFunc func()

func (f runFunc) Run(ctx context.Context) job.Status {
	f()
	return job.StatusComplete
}
