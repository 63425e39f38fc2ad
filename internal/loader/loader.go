// Package loader wires the asset dependency graph (C6) to a running
// CommandCenter (C8): it is the glue orchestrator.DeploymentLoader asks
// for when adopting or shadow-building a deployment, and the
// asset.ResourceLoader that turns each resolved leaf into the value a
// script would bind against.
//
// Grounded on core_sdk.cpp's load_deployment, which kicks off the
// script's AssetLoadJob and, once its value resolves, hands the result
// to the owning CommandCenter as its running task.
package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/edgecore/core-runtime/internal/asset"
	"github.com/edgecore/core-runtime/internal/commandcenter"
	"github.com/edgecore/core-runtime/internal/future"
	"github.com/edgecore/core-runtime/internal/obs"
	"github.com/edgecore/core-runtime/internal/stream"
	"github.com/edgecore/core-runtime/internal/task"
	"go.uber.org/zap"
)

// Handle is the in-memory value a loaded, non-script asset resolves to.
// The interpreter that would otherwise consume a MODEL/DOCUMENT/
// RETRIEVER/LLM handle is out of scope (spec.md §1); Handle only carries
// enough to prove the asset graph resolved to the right place on disk.
type Handle struct {
	Type asset.Type
	Path string
	// Children holds the already-resolved handles of a composite
	// asset's dependencies, in declaration order (e.g. a RETRIEVER's
	// embedding model, embedding store and document).
	Children []any
}

// Loader implements both orchestrator.DeploymentLoader and
// asset.ResourceLoader.
type Loader struct {
	Downloader asset.Downloader
	Ledger     asset.Ledger
	MaxRetries int
	Log        *zap.Logger
}

// Load implements orchestrator.DeploymentLoader: it schedules a
// recursive AssetLoadJob tree for cc's script asset plus one for every
// top-level module the manifest listed (spec.md §3/§6's Deployment.
// Modules, materialised independently of whatever the script graph
// itself references), attaches a Task to cc the moment the script itself
// resolves so commandcenter.ScriptReadyJob can observe it becoming
// ready, and binds cc's AssetRequester so a host's ScriptRunner can ask
// for an unplanned asset load mid-evaluation through
// cc.RequestAssetDuringEvaluation and have it gate the same readiness
// flip.
func (l *Loader) Load(ctx context.Context, cc *commandcenter.CommandCenter) error {
	deployment := cc.Deployment()
	if deployment.IsAbsent() {
		return fmt.Errorf("loader: cannot load an absent deployment")
	}

	isStale := func() bool { return !cc.IsCurrent() && cc.IsReady() }

	cc.SetAssetRequester(commandcenter.AssetRequesterFunc(func(ctx context.Context, a *asset.Asset) *future.Future[any] {
		return asset.BuildLoadJob(cc.Scheduler(), l.Downloader, l.Ledger, l, isStale, a, l.MaxRetries)
	}))

	for _, mod := range deployment.Modules {
		mf := asset.BuildLoadJob(cc.Scheduler(), l.Downloader, l.Ledger, l, isStale, mod, l.MaxRetries)
		go func(mod *asset.Asset) {
			if _, err := mf.ProduceValue(ctx); err != nil && l.Log != nil {
				l.Log.Warn("loader: module asset failed to resolve", zap.Error(err), zap.Int64("deployment_id", deployment.ID), zap.String("module", mod.ID.Name))
			}
		}(mod)
	}

	f := asset.BuildLoadJob(cc.Scheduler(), l.Downloader, l.Ledger, l, isStale, deployment.Script, l.MaxRetries)

	go func() {
		v, err := f.ProduceValue(ctx)
		if err != nil {
			if l.Log != nil {
				l.Log.Warn("loader: script asset graph failed to resolve", zap.Error(err), zap.Int64("deployment_id", deployment.ID))
			}
			return
		}
		handle, ok := v.(*Handle)
		if !ok {
			return
		}
		t, ok := handle.Children[0].(*task.Task)
		if !ok {
			return
		}
		cc.SetTask(t)
	}()
	return nil
}

// LoadAsset implements asset.ResourceLoader. For a SCRIPT asset it reads
// the resolved file, feeds it into a fresh CharStream/Task pair (the
// hand-off point to C5's incremental parser), and returns that Task
// alongside the Handle so Load can bind it to the CommandCenter. Every
// other asset type just confirms the resolved Location and carries its
// already-loaded children forward.
func (l *Loader) LoadAsset(ctx context.Context, a *asset.Asset, children []any) (any, error) {
	_, span := obs.SpanForAssetLoad(ctx, a.ID.Name, a.ID.Version, a.ID.Type.String())
	defer span.End()

	if a.ID.Type == asset.TypeScript && a.IsLeaf() {
		loc, ok := children[0].(asset.Location)
		if !ok {
			err := fmt.Errorf("loader: script asset %s resolved without a download location", a.ID)
			obs.RecordError(ctx, err)
			return nil, err
		}
		raw, err := os.ReadFile(loc.Path)
		if err != nil {
			obs.RecordError(ctx, err)
			return nil, fmt.Errorf("loader: read script %s: %w", loc.Path, err)
		}
		cs := stream.New()
		t := task.New(cs)
		if err := cs.Push(string(raw)); err != nil {
			return nil, fmt.Errorf("loader: push script bytes for %s: %w", a.ID, err)
		}
		cs.Close()
		obs.SetSpanSuccess(ctx)
		return &Handle{Type: a.ID.Type, Path: loc.Path, Children: []any{t}}, nil
	}

	if a.ID.Type == asset.TypeScript {
		// A script bound to sub-models resolves purely from its already
		// loaded children; nothing further to parse as its own bytes,
		// so the Task stays nil and ScriptReadyJob never sees this
		// generation become ready. Out of scope for this harness (no
		// deployment manifest here binds a non-leaf script).
		obs.SetSpanSuccess(ctx)
		return &Handle{Type: a.ID.Type, Children: children}, nil
	}

	if a.IsLeaf() {
		loc, ok := children[0].(asset.Location)
		if !ok {
			return nil, fmt.Errorf("loader: leaf asset %s resolved without a download location", a.ID)
		}
		obs.SetSpanSuccess(ctx)
		return &Handle{Type: a.ID.Type, Path: loc.Path}, nil
	}

	obs.SetSpanSuccess(ctx)
	return &Handle{Type: a.ID.Type, Children: children}, nil
}
