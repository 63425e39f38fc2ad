package asset

import (
	"context"

	"github.com/edgecore/core-runtime/internal/future"
	"github.com/edgecore/core-runtime/internal/job"
	"github.com/edgecore/core-runtime/internal/scheduler"
)

// ResourceLoader turns a resolved asset (plus its already-loaded
// dependencies, in declaration order) into the in-memory value a script
// binds against: a loaded model handle, a parsed document, a retriever
// client, and so on.
//
// Grounded on core_sdk's get_resource_loader().load_asset call inside
// asset_load_job.cpp.
type ResourceLoader interface {
	LoadAsset(ctx context.Context, a *Asset, children []any) (any, error)
}

// loadJob is a BaseJob that waits on zero or more prerequisite futures
// (either a leaf download or a set of child loadJob results) without
// ever blocking the scheduler goroutine: while a prerequisite is not yet
// ready it reports job.StatusRetry so the scheduler requeues it for the
// next pump, rather than calling Future.ProduceValue synchronously.
//
// Grounded on asset_load_job.hpp/.cpp's AssetLoadJob, which distinguishes
// a leaf's _locationFuture from a composite's _arguments (child
// results), and short-circuits to a null result if the owning
// CommandCenter is no longer current.
type loadJob struct {
	promise  resolver
	loader   ResourceLoader
	asset    *Asset
	isStale  func() bool
	leaf     *future.Future[Location]
	children []*future.Future[any]
}

type resolver interface {
	Resolve(any)
	Reject(error)
}

// BuildLoadJob recursively schedules a loadJob for a and every
// dependency it transitively needs, returning a future for the fully
// loaded value. isStale is consulted at the start of every Run, before
// the asset's dependencies are checked; if it reports true the asset
// resolves to a nil value without calling loader. Downloads already
// admitted by ScheduleDownload still run as their own jobs.
func BuildLoadJob(
	sched *scheduler.Scheduler,
	dl Downloader,
	ledger Ledger,
	loader ResourceLoader,
	isStale func() bool,
	a *Asset,
	maxRetries int,
) *future.Future[any] {
	p, f := future.New[any]()

	lj := &loadJob{promise: p, loader: loader, asset: a, isStale: isStale}
	if a.IsLeaf() {
		lj.leaf = ScheduleDownload(sched, dl, ledger, a, maxRetries)
	} else {
		lj.children = make([]*future.Future[any], len(a.Children))
		for i, child := range a.Children {
			lj.children[i] = BuildLoadJob(sched, dl, ledger, loader, isStale, child, maxRetries)
		}
	}
	sched.AddJob(lj)
	return f
}

// Run implements job.BaseJob.
func (lj *loadJob) Run(ctx context.Context) job.Status {
	if lj.isStale != nil && lj.isStale() {
		lj.promise.Resolve(nil)
		return job.StatusComplete
	}

	if lj.leaf != nil {
		if !lj.leaf.IsReady() {
			return job.StatusRetry
		}
		loc, err := lj.leaf.ProduceValue(ctx)
		if err != nil {
			lj.promise.Reject(err)
			return job.StatusComplete
		}
		return lj.finishWithLocation(ctx, loc)
	}

	args := make([]any, len(lj.children))
	for i, cf := range lj.children {
		if !cf.IsReady() {
			return job.StatusRetry
		}
		v, err := cf.ProduceValue(ctx)
		if err != nil {
			lj.promise.Reject(err)
			return job.StatusComplete
		}
		args[i] = v
	}
	v, err := lj.loader.LoadAsset(ctx, lj.asset, args)
	if err != nil {
		lj.promise.Reject(err)
		return job.StatusComplete
	}
	lj.promise.Resolve(v)
	return job.StatusComplete
}

func (lj *loadJob) finishWithLocation(ctx context.Context, loc Location) job.Status {
	v, err := lj.loader.LoadAsset(ctx, lj.asset, []any{loc})
	if err != nil {
		lj.promise.Reject(err)
		return job.StatusComplete
	}
	lj.promise.Resolve(v)
	return job.StatusComplete
}
