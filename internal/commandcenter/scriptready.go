package commandcenter

import (
	"context"

	"github.com/edgecore/core-runtime/internal/job"
)

// ScriptReadyJob polls a CommandCenter's bound task, and every asset load
// registered via AddScriptReadyDependency, until all of them finish,
// flips the generation's ready flag, and -- if the generation is still a
// shadow at that moment -- calls onReady exactly once so the
// orchestrator can decide whether to promote it.
//
// Grounded on script_ready_job.hpp/.cpp's ScriptReadyJob, which checks
// get_task()->is_ready() plus every dependency registered through
// update_dependency_of_script_ready_job, and, for a shadow generation
// that just became ready, hands control back to the orchestrator to
// complete promotion.
type ScriptReadyJob struct {
	cc       *CommandCenter
	onReady  func(*CommandCenter)
	notified bool
}

// NewScriptReadyJob builds a ScriptReadyJob for cc. onReady may be nil.
func NewScriptReadyJob(cc *CommandCenter, onReady func(*CommandCenter)) *ScriptReadyJob {
	return &ScriptReadyJob{cc: cc, onReady: onReady}
}

// Run implements job.BaseJob.
func (j *ScriptReadyJob) Run(ctx context.Context) job.Status {
	t := j.cc.Task()
	if t == nil || !t.IsReady() {
		return job.StatusRetry
	}
	for _, dep := range j.cc.scriptReadyDependencies() {
		if !dep.IsReady() {
			return job.StatusRetry
		}
	}
	j.cc.SetReady(true)
	if !j.notified && !j.cc.IsCurrent() {
		j.notified = true
		if j.onReady != nil {
			j.onReady(j.cc)
		}
	}
	return job.StatusComplete
}
