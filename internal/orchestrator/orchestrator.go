// Package orchestrator drives the top-level lifecycle loop: pull the
// latest deployment manifest, decide whether to adopt it synchronously
// or build it as a shadow behind the currently active generation, pump
// both generations' job schedulers every tick, and promote a shadow the
// moment its script finishes loading.
//
// Grounded on core_sdk.cpp: achieve_state's three-way branch
// (force_update replaces synchronously; a ready active generation whose
// deployment differs gets a shadow; a ready active generation whose
// deployment is unchanged is left alone; anything else -- cold start, or
// an active generation not yet ready -- replaces the active generation
// directly) and
// perform_long_running_tasks' per-tick loop of achieve_state, do_jobs,
// and a connectivity check.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgecore/core-runtime/internal/asset"
	"github.com/edgecore/core-runtime/internal/commandcenter"
	"github.com/edgecore/core-runtime/internal/obs"
	"go.uber.org/zap"
)

// ControlPlane resolves the deployment a device should currently be
// running. currentETag lets the implementation short-circuit to
// "unmodified" without re-downloading the manifest.
type ControlPlane interface {
	LatestDeployment(ctx context.Context, currentETag string) (deployment *asset.Deployment, unmodified bool, err error)
}

// DeploymentLoader schedules whatever work is needed to bring cc's
// bound deployment to a ready state: resolving its asset graph and
// attaching the task that parses its script's output stream. Load
// returns once scheduling is complete; readiness itself is observed
// later through cc.IsReady, driven by the jobs Load scheduled.
type DeploymentLoader interface {
	Load(ctx context.Context, cc *commandcenter.CommandCenter) error
}

// Orchestrator owns the active CommandCenter and, optionally, one
// shadow being built behind it.
type Orchestrator struct {
	mu     sync.RWMutex
	active *commandcenter.CommandCenter
	shadow *commandcenter.CommandCenter

	controlPlane ControlPlane
	loader       DeploymentLoader
	logger       *zap.Logger

	pollInterval time.Duration
	online       atomic.Bool
}

// New builds an Orchestrator with no active generation yet (a freshly
// provisioned device). Call AchieveState (directly, or via Run) to adopt
// the first deployment.
func New(cp ControlPlane, loader DeploymentLoader, logger *zap.Logger, pollInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		controlPlane: cp,
		loader:       loader,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Active returns the currently active CommandCenter, or nil if none has
// been adopted yet.
func (o *Orchestrator) Active() *commandcenter.CommandCenter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// Shadow returns the CommandCenter currently warming up behind the
// active one, or nil if there is none.
func (o *Orchestrator) Shadow() *commandcenter.CommandCenter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.shadow
}

// AchieveState pulls the latest deployment and reconciles the active/
// shadow generations against it.
func (o *Orchestrator) AchieveState(ctx context.Context) error {
	currentETag := ""
	if active := o.Active(); active != nil {
		currentETag = active.DeploymentETag()
	}

	deployment, unmodified, err := o.controlPlane.LatestDeployment(ctx, currentETag)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("achieve_state: control plane fetch failed", zap.Error(err))
		}
		return err
	}
	if unmodified {
		return nil
	}
	return o.reconcile(ctx, deployment)
}

func (o *Orchestrator) reconcile(ctx context.Context, deployment *asset.Deployment) error {
	o.mu.Lock()
	active := o.active
	defer o.mu.Unlock()

	switch {
	case deployment.ForceUpdate:
		return o.replaceActiveLocked(ctx, deployment)
	case active != nil && active.IsReady() && active.Deployment().Equal(deployment):
		// Nothing changed; avoid rebuilding an identical generation
		// every poll.
		return nil
	case active != nil && active.IsReady() && !active.Deployment().Equal(deployment):
		return o.buildShadowLocked(ctx, deployment)
	default:
		return o.replaceActiveLocked(ctx, deployment)
	}
}

func (o *Orchestrator) replaceActiveLocked(ctx context.Context, deployment *asset.Deployment) error {
	cc := commandcenter.New(deployment)
	if err := o.loader.Load(ctx, cc); err != nil {
		return err
	}
	cc.Scheduler().AddJob(commandcenter.NewScriptReadyJob(cc, o.promote))
	cc.SetCurrent(true)
	if o.active != nil {
		o.active.SetCurrent(false)
	}
	o.active = cc
	o.shadow = nil
	if o.logger != nil {
		o.logger.Info("replaced active deployment", zap.Int64("deployment_id", cc.DeploymentID()))
	}
	return nil
}

func (o *Orchestrator) buildShadowLocked(ctx context.Context, deployment *asset.Deployment) error {
	if o.shadow != nil && o.shadow.Deployment().Equal(deployment) {
		return nil // already building this exact shadow
	}
	cc := commandcenter.New(deployment)
	if err := o.loader.Load(ctx, cc); err != nil {
		return err
	}
	cc.Scheduler().AddJob(commandcenter.NewScriptReadyJob(cc, o.promote))
	o.shadow = cc
	if o.logger != nil {
		o.logger.Info("building shadow deployment", zap.Int64("deployment_id", cc.DeploymentID()))
	}
	return nil
}

// promote is called back by a shadow's ScriptReadyJob once it becomes
// ready, completing the swap the original performs by renaming the
// deployment file on disk and deleting the outgoing generation.
func (o *Orchestrator) promote(cc *commandcenter.CommandCenter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.shadow != cc {
		return // shadow was discarded or already promoted
	}
	if o.active != nil {
		o.active.SetCurrent(false)
	}
	cc.SetCurrent(true)
	o.active = cc
	o.shadow = nil
	obs.ShadowPromotions.Inc()
	if o.logger != nil {
		o.logger.Info("promoted shadow to active", zap.Int64("deployment_id", cc.DeploymentID()))
	}
}

// Tick pumps both generations' schedulers one round. Intended to be
// called on a fixed cadence from Run, or directly by tests and
// offline-mode callers.
func (o *Orchestrator) Tick(ctx context.Context) {
	active, shadow := o.Active(), o.Shadow()
	if active != nil {
		active.Scheduler().DoJobs(ctx)
	}
	if shadow != nil {
		shadow.Scheduler().DoJobs(ctx)
	}
}

// NotifyOnline re-admits every job parked awaiting connectivity, on
// both the active and shadow generations.
func (o *Orchestrator) NotifyOnline() {
	o.online.Store(true)
	active, shadow := o.Active(), o.Shadow()
	if active != nil {
		active.Scheduler().NotifyOnline()
	}
	if shadow != nil {
		shadow.Scheduler().NotifyOnline()
	}
}

// NotifyOffline records that connectivity was lost. Future jobs that
// hit their retry budget will still park as RetryWhenOnline; this just
// lets callers query IsOnline.
func (o *Orchestrator) NotifyOffline() {
	o.online.Store(false)
}

// IsOnline reports the most recently observed connectivity state.
func (o *Orchestrator) IsOnline() bool {
	return o.online.Load()
}

// InternetSwitchedOn is the host-facing call from spec.md §6: it is the
// same signal as NotifyOnline, named the way the host application calls
// it rather than the way the scheduler consumes it.
func (o *Orchestrator) InternetSwitchedOn() {
	o.NotifyOnline()
}

// IsReady implements spec.md §6's is_ready host call: ok is true once
// the active generation exists and has finished loading its script.
func (o *Orchestrator) IsReady() (ok bool, status commandcenter.RunStatus) {
	active := o.Active()
	if active == nil || !active.IsReadyForExposing() {
		return false, commandcenter.RunStatus{Code: 1, Message: "not ready"}
	}
	return true, commandcenter.RunStatus{}
}

// RunTask implements spec.md §6's run_task host call: it dispatches
// into the currently active generation's script, never the shadow
// (which may not even have a runner bound yet).
func (o *Orchestrator) RunTask(function string, inputs map[string]any) (outputs map[string]any, status commandcenter.RunStatus) {
	active := o.Active()
	if active == nil {
		return nil, commandcenter.RunStatus{Code: 1, Message: "not ready: no active deployment"}
	}
	return active.RunTask(function, inputs)
}

// AddUserEvent implements spec.md §6's add_user_event host call,
// routing to the active generation's event sink.
func (o *Orchestrator) AddUserEvent(payload map[string]any, eventType string) commandcenter.RunStatus {
	active := o.Active()
	if active == nil {
		return commandcenter.RunStatus{Code: 1, Message: "not ready: no active deployment"}
	}
	active.AddUserEvent(payload, eventType)
	return commandcenter.RunStatus{}
}

// Run drives AchieveState and Tick on pollInterval until ctx is done.
// The first AchieveState call happens immediately rather than waiting a
// full interval, so a freshly started orchestrator adopts its first
// deployment without delay.
func (o *Orchestrator) Run(ctx context.Context) {
	if err := o.AchieveState(ctx); err != nil && o.logger != nil {
		o.logger.Warn("initial achieve_state failed", zap.Error(err))
	}
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.AchieveState(ctx); err != nil && o.logger != nil {
				o.logger.Warn("achieve_state failed", zap.Error(err))
			}
			o.Tick(ctx)
		}
	}
}
