// Package scheduler drives the cooperative job loop: priority jobs ahead
// of normal jobs, jobs that return job.StatusRetry spliced onto an
// attempted queue for the next pump, and jobs that return
// job.StatusRetryWhenOnline parked until connectivity returns.
//
// Grounded on job_scheduler.hpp's JobScheduler: _priorityJobs and _jobs
// are the two MPSC ready queues, _attemptedJobs holds retried jobs so a
// single stuck job cannot spin the drain loop forever, and
// _jobsWaitingForInternet is the parked list. do_jobs runs exactly one
// pass over what was ready when the call began; do_all_non_priority_jobs
// repeats passes until the normal queue is empty and nothing asked to
// retry; notify_online re-admits everything that was parked.
package scheduler

import (
	"context"
	"sync"

	"github.com/edgecore/core-runtime/internal/job"
	"github.com/edgecore/core-runtime/internal/obs"
	"github.com/edgecore/core-runtime/internal/ring"
)

// Scheduler is a single-consumer job runner. AddJob/AddPriorityJob may be
// called from any goroutine; DoJobs/DoAllNonPriorityJobs/NotifyOnline are
// intended to be driven from one owning goroutine (the orchestrator's
// worker loop), matching the original's single-threaded pump.
type Scheduler struct {
	priorityReady    *ring.Queue[job.BaseJob]
	priorityAttempted *ring.Queue[job.BaseJob]
	normalReady      *ring.Queue[job.BaseJob]
	normalAttempted  *ring.Queue[job.BaseJob]

	waitMu             sync.Mutex
	waitingForInternet []job.BaseJob
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		priorityReady:     ring.NewMPSCQueue[job.BaseJob](),
		priorityAttempted: ring.NewMPSCQueue[job.BaseJob](),
		normalReady:       ring.NewMPSCQueue[job.BaseJob](),
		normalAttempted:   ring.NewMPSCQueue[job.BaseJob](),
	}
}

// AddJob admits j onto the normal-priority ready queue.
func (s *Scheduler) AddJob(j job.BaseJob) {
	obs.JobsAdmitted.Inc()
	s.normalReady.Push(j)
}

// AddPriorityJob admits j onto the priority ready queue, to be run ahead
// of any normal job.
func (s *Scheduler) AddPriorityJob(j job.BaseJob) {
	obs.JobsAdmitted.Inc()
	s.priorityReady.Push(j)
}

// DoJobs drains every job that was ready on the priority queue when this
// call began, then one full pass over every job that was ready on the
// normal queue when this call began. This mirrors the original's
// per-tick pump: priority work is never starved, and every ready normal
// job gets exactly one attempt per call, so a deployment whose asset
// graph admits N ready jobs needs only one DoJobs call to advance all of
// them, not N. Jobs that return job.StatusRetry are re-admitted on the
// following call rather than re-run within this one, so a job stuck
// retrying cannot spin the loop forever.
func (s *Scheduler) DoJobs(ctx context.Context) {
	s.drainPass(ctx, s.priorityReady, s.priorityAttempted)
	s.spliceBack(s.priorityReady, s.priorityAttempted)

	s.drainPass(ctx, s.normalReady, s.normalAttempted)
	s.spliceBack(s.normalReady, s.normalAttempted)
}

// DoAllNonPriorityJobs drains the normal-priority ready queue completely,
// including repeated passes over jobs that return job.StatusRetry. Used
// at startup, where nothing else is competing for the scheduler's
// attention and blocking until the backlog clears is acceptable.
func (s *Scheduler) DoAllNonPriorityJobs(ctx context.Context) {
	for {
		s.drainPass(ctx, s.normalReady, s.normalAttempted)
		if s.normalAttempted.Empty() && s.normalReady.Empty() {
			return
		}
		s.spliceBack(s.normalReady, s.normalAttempted)
	}
}

// NotifyOnline re-admits every job parked by a StatusRetryWhenOnline
// outcome back onto the normal ready queue.
func (s *Scheduler) NotifyOnline() {
	s.waitMu.Lock()
	parked := s.waitingForInternet
	s.waitingForInternet = nil
	s.waitMu.Unlock()
	obs.JobsWaitingForInternet.Set(0)

	for _, j := range parked {
		s.normalReady.Push(j)
	}
}

// WaitingForInternetCount reports how many jobs are currently parked
// awaiting connectivity.
func (s *Scheduler) WaitingForInternetCount() int {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	return len(s.waitingForInternet)
}

// drainPass runs every job currently in ready exactly once, routing
// StatusRetry outcomes into attempted rather than back into ready.
func (s *Scheduler) drainPass(ctx context.Context, ready, attempted *ring.Queue[job.BaseJob]) {
	pending := ready.DrainTo()
	for _, j := range pending {
		s.runJob(ctx, j, attempted)
	}
}

func (s *Scheduler) runJob(ctx context.Context, j job.BaseJob, attempted *ring.Queue[job.BaseJob]) {
	switch j.Run(ctx) {
	case job.StatusRetry:
		obs.JobsRetried.Inc()
		attempted.Push(j)
	case job.StatusRetryWhenOnline:
		obs.JobsRetryWhenOnline.Inc()
		s.waitMu.Lock()
		s.waitingForInternet = append(s.waitingForInternet, j)
		obs.JobsWaitingForInternet.Set(float64(len(s.waitingForInternet)))
		s.waitMu.Unlock()
	case job.StatusComplete:
		obs.JobsCompleted.Inc()
	}
}

func (s *Scheduler) spliceBack(ready, attempted *ring.Queue[job.BaseJob]) {
	for _, j := range attempted.DrainTo() {
		ready.Push(j)
	}
}
