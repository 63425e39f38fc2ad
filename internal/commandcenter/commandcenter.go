// Package commandcenter binds one deployment generation to its own job
// scheduler and running task, and tracks whether that generation is the
// one actively serving requests or a shadow quietly warming up behind
// it.
//
// Grounded on command_center.hpp's CommandCenter: one instance per
// deployment, holding its own job scheduler, its loaded task, and an
// is_current flag the orchestrator flips exactly once, atomically, when
// promoting a shadow to active.
package commandcenter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/edgecore/core-runtime/internal/asset"
	"github.com/edgecore/core-runtime/internal/future"
	"github.com/edgecore/core-runtime/internal/obs"
	"github.com/edgecore/core-runtime/internal/scheduler"
	"github.com/edgecore/core-runtime/internal/task"
)

// RunStatus is the status record a host call gets back, mirroring
// run_task's typed status code rather than letting an interpreter panic
// cross the host boundary.
//
// Grounded on command_center.hpp's run_task, which catches any
// interpreter exception and converts it to a status/message pair.
type RunStatus struct {
	Code    int
	Message string
}

// Ok reports whether the call completed without error.
func (s RunStatus) Ok() bool { return s.Code == 0 }

// ScriptRunner is the interpreter boundary CommandCenter dispatches
// into. It is intentionally narrow: CommandCenter only needs to pass a
// function name and inputs through and get a result or error back, the
// interpreter itself is out of scope (spec.md §1).
type ScriptRunner interface {
	RunTask(function string, inputs map[string]any) (outputs map[string]any, err error)
}

// AssetRequester schedules a load for an asset the script graph did not
// itself declare and hands back a future for it. CommandCenter stays
// decoupled from internal/loader's concrete Downloader/Ledger/Scheduler
// wiring by only depending on this narrow capability.
//
// Grounded on command_center.hpp's update_dependency_of_script_ready_job
// call site: asset_load_job.cpp invokes it whenever a load is kicked off
// during script global evaluation rather than declared up front in the
// deployment graph.
type AssetRequester interface {
	RequestAsset(ctx context.Context, a *asset.Asset) *future.Future[any]
}

// AssetRequesterFunc adapts a plain function to AssetRequester.
type AssetRequesterFunc func(ctx context.Context, a *asset.Asset) *future.Future[any]

// RequestAsset implements AssetRequester.
func (f AssetRequesterFunc) RequestAsset(ctx context.Context, a *asset.Asset) *future.Future[any] {
	return f(ctx, a)
}

// UserEventSink records a host-supplied event for diagnostics/telemetry.
// Out of scope for this package (spec.md §1 excludes log encoding); a
// caller typically binds this to its logger.
type UserEventSink interface {
	AddUserEvent(payload map[string]any, eventType string)
}

// CommandCenter owns everything needed to resolve and run one deployment
// generation: its dependency-resolution scheduler and the task wrapping
// its script's output.
type CommandCenter struct {
	deployment *asset.Deployment
	sched      *scheduler.Scheduler

	current atomic.Bool

	mu          sync.RWMutex
	ready       bool
	retriesExhausted bool
	tsk         *task.Task
	scriptReadyDeps []*future.Future[any]
	requester   AssetRequester
	peggedDeviceTime int64
	runner      ScriptRunner
	events      UserEventSink
}

// SetScriptRunner attaches the interpreter boundary this generation's
// RunTask calls dispatch into. Left unset, RunTask reports NotReady --
// the generation's script has not finished loading far enough to expose
// a runner, which is also true before the script parses at all.
func (c *CommandCenter) SetScriptRunner(r ScriptRunner) {
	c.mu.Lock()
	c.runner = r
	c.mu.Unlock()
}

// SetUserEventSink attaches the sink AddUserEvent forwards to.
func (c *CommandCenter) SetUserEventSink(s UserEventSink) {
	c.mu.Lock()
	c.events = s
	c.mu.Unlock()
}

// RunTask dispatches function into this generation's script, catching
// any panic the runner raises (the Go analogue of the original's
// caught C++ exception) and returning it as a non-zero status instead
// of letting it cross the host boundary.
//
// Grounded on command_center.hpp's run_task and spec.md §7's ScriptError
// kind: "interpreter threw; caught at run_task boundary, returned as
// non-zero status."
func (c *CommandCenter) RunTask(function string, inputs map[string]any) (outputs map[string]any, status RunStatus) {
	c.mu.RLock()
	runner := c.runner
	c.mu.RUnlock()
	if runner == nil {
		return nil, RunStatus{Code: 1, Message: "command center not ready: no script runner bound"}
	}

	defer func() {
		if r := recover(); r != nil {
			status = RunStatus{Code: 1000, Message: fmt.Sprintf("script error: %v", r)}
		}
	}()

	out, err := runner.RunTask(function, inputs)
	if err != nil {
		return nil, RunStatus{Code: 1000, Message: err.Error()}
	}
	return out, RunStatus{}
}

// AddUserEvent routes payload to this generation's event sink, if one
// is bound, and reports whether it was delivered.
func (c *CommandCenter) AddUserEvent(payload map[string]any, eventType string) bool {
	c.mu.RLock()
	sink := c.events
	c.mu.RUnlock()
	if sink == nil {
		return false
	}
	sink.AddUserEvent(payload, eventType)
	return true
}

// New constructs a CommandCenter for deployment, initially a shadow
// (current=false) until the orchestrator promotes it.
func New(deployment *asset.Deployment) *CommandCenter {
	return &CommandCenter{
		deployment: deployment,
		sched:      scheduler.New(),
	}
}

// Deployment returns the deployment generation this CommandCenter binds.
func (c *CommandCenter) Deployment() *asset.Deployment {
	return c.deployment
}

// DeploymentID returns the bound deployment's ID, or asset.NoDeployment
// if absent.
func (c *CommandCenter) DeploymentID() int64 {
	if c.deployment.IsAbsent() {
		return asset.NoDeployment
	}
	return c.deployment.ID
}

// DeploymentETag returns the bound deployment's etag.
func (c *CommandCenter) DeploymentETag() string {
	if c.deployment.IsAbsent() {
		return ""
	}
	return c.deployment.ETag
}

// Scheduler returns this generation's job scheduler.
func (c *CommandCenter) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// IsCurrent reports whether this CommandCenter is the one actively
// serving requests right now.
func (c *CommandCenter) IsCurrent() bool {
	return c.current.Load()
}

// SetCurrent flips whether this CommandCenter is active. The
// orchestrator calls this exactly once per promotion. The loader's
// isStale callback for asset.BuildLoadJob is `!cc.IsCurrent() &&
// cc.IsReady()`, so pending loads resolve to nil once a generation that
// had become ready is no longer current.
func (c *CommandCenter) SetCurrent(v bool) {
	c.current.Store(v)
	if v {
		obs.CommandCenterReady.Set(boolToFloat(c.IsReady()))
	} else {
		obs.CommandCenterReady.Set(0)
	}
}

// IsReady reports whether this generation's task has finished loading
// and is ready to be exposed to callers.
func (c *CommandCenter) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// SetReady marks this generation ready (or not). Called by
// ScriptReadyJob once the bound task reports IsReady.
func (c *CommandCenter) SetReady(v bool) {
	c.mu.Lock()
	c.ready = v
	c.mu.Unlock()
	if c.IsCurrent() {
		obs.CommandCenterReady.Set(boolToFloat(v))
	}
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// IsReadyForExposing reports whether this generation is both current and
// ready -- the condition under which a caller should be routed to it.
func (c *CommandCenter) IsReadyForExposing() bool {
	return c.IsCurrent() && c.IsReady()
}

// RetriesExhausted reports whether this generation gave up retrying a
// connectivity-gated operation.
func (c *CommandCenter) RetriesExhausted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retriesExhausted
}

// SetRetriesExhausted records that a connectivity-gated operation gave
// up retrying.
func (c *CommandCenter) SetRetriesExhausted(v bool) {
	c.mu.Lock()
	c.retriesExhausted = v
	c.mu.Unlock()
}

// Task returns the task bound to this generation's script, if one has
// been attached yet.
func (c *CommandCenter) Task() *task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tsk
}

// SetTask attaches t as this generation's running task.
func (c *CommandCenter) SetTask(t *task.Task) {
	c.mu.Lock()
	c.tsk = t
	c.mu.Unlock()
}

// AddScriptReadyDependency registers f as an additional asset load
// ScriptReadyJob must wait on before flipping this generation ready, on
// top of the bound Task itself finishing. A script evaluating its
// global scope may kick off further asset loads (e.g. lazily resolving
// a model it only references conditionally); this is how that load gets
// folded into the same readiness gate as the script's own output,
// rather than leaving the generation exposed before that asset lands.
//
// Grounded on command_center.hpp's
// update_dependency_of_script_ready_job, called by asset loads
// initiated during script global evaluation.
func (c *CommandCenter) AddScriptReadyDependency(f *future.Future[any]) {
	c.mu.Lock()
	c.scriptReadyDeps = append(c.scriptReadyDeps, f)
	c.mu.Unlock()
}

// scriptReadyDependencies returns a snapshot of the futures registered
// via AddScriptReadyDependency.
func (c *CommandCenter) scriptReadyDependencies() []*future.Future[any] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*future.Future[any](nil), c.scriptReadyDeps...)
}

// SetAssetRequester attaches the capability RequestAssetDuringEvaluation
// dispatches into. internal/loader.Loader.Load binds this to the same
// scheduler/downloader/ledger a deployment's declared graph loads
// through, so an evaluation-time request reuses the identical at-most-
// once and retry machinery.
func (c *CommandCenter) SetAssetRequester(r AssetRequester) {
	c.mu.Lock()
	c.requester = r
	c.mu.Unlock()
}

// RequestAssetDuringEvaluation schedules a load for a on behalf of
// script evaluation -- e.g. a model the script only references
// conditionally, outside the deployment's declared asset graph -- and
// registers the resulting future as a script-ready dependency so
// ScriptReadyJob will not flip this generation ready until it resolves.
//
// Grounded on spec.md §4.8's
// update_dependency_of_script_ready_job/command_center.hpp: called by
// asset loads initiated during script global evaluation.
func (c *CommandCenter) RequestAssetDuringEvaluation(ctx context.Context, a *asset.Asset) (*future.Future[any], error) {
	c.mu.RLock()
	req := c.requester
	c.mu.RUnlock()
	if req == nil {
		return nil, fmt.Errorf("command center: no asset requester bound for %s", a.ID)
	}
	f := req.RequestAsset(ctx, a)
	c.AddScriptReadyDependency(f)
	return f, nil
}

// PeggedDeviceTime returns the device clock reading this generation's
// metrics are reported against.
func (c *CommandCenter) PeggedDeviceTime() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peggedDeviceTime
}

// SetPeggedDeviceTime updates the pegged device clock reading.
func (c *CommandCenter) SetPeggedDeviceTime(t int64) {
	c.mu.Lock()
	c.peggedDeviceTime = t
	c.mu.Unlock()
}
