package asset

import (
	"context"
	"fmt"

	"github.com/edgecore/core-runtime/internal/future"
	"github.com/edgecore/core-runtime/internal/job"
	"github.com/edgecore/core-runtime/internal/scheduler"
)

// ScheduleDownload admits a job onto sched that resolves a to an
// on-disk Location. ledger.Reserve gates every attempt so two scheduler
// ticks (or two devices sharing a fleet ledger) can never both be
// downloading the same asset ID concurrently. Every call admits a new
// job, even for an asset already scheduled; a job that finds the ID
// reserved counts an InternetRetry, and one whose asset is already on
// disk resolves through the offline step without downloading.
//
// Grounded on asset_download_job.hpp/.cpp's AssetDownloadJob, an
// InternetJob<Location> whose init() admits itself onto the owning
// CommandCenter's job scheduler.
func ScheduleDownload(sched *scheduler.Scheduler, dl Downloader, ledger Ledger, a *Asset, maxRetries int) *future.Future[Location] {
	p, f := future.New[Location]()

	reserved := false
	offline := func(ctx context.Context) (Location, bool, error) {
		if loc, ok, err := dl.GetAssetOffline(ctx, a); ok {
			return loc, true, err
		}
		return Location{}, false, nil
	}
	online := func(ctx context.Context) (job.InternetStatus, Location, error) {
		if !reserved {
			ok, err := ledger.Reserve(ctx, a.ID)
			if err != nil {
				return job.InternetComplete, Location{}, err
			}
			if !ok {
				return job.InternetRetry, Location{}, nil
			}
			reserved = true
		}
		status, loc, err := dl.EnqueueDownload(ctx, a)
		switch status {
		case DownloadComplete:
			if err != nil {
				_ = ledger.Release(ctx, a.ID)
				return job.InternetComplete, Location{}, err
			}
			if cerr := ledger.Confirm(ctx, a.ID); cerr != nil {
				return job.InternetComplete, Location{}, cerr
			}
			return job.InternetComplete, loc, nil
		case DownloadPending:
			return job.InternetPoll, Location{}, nil
		case DownloadRetry:
			_ = ledger.Release(ctx, a.ID)
			reserved = false
			return job.InternetRetry, Location{}, nil
		default:
			return job.InternetComplete, Location{}, fmt.Errorf("asset: unknown download status %d", status)
		}
	}

	j := job.NewInternetJob[Location](p, offline, online, maxRetries)
	sched.AddJob(j)
	return f
}
