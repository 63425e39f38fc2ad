package asset

import "context"

// DownloadStatus is the outcome of one enqueue-download attempt against
// a remote asset store.
type DownloadStatus int

const (
	// DownloadComplete means the asset bytes are now on disk.
	DownloadComplete DownloadStatus = iota
	// DownloadRetry means the attempt failed and should be retried.
	DownloadRetry
	// DownloadPending means the transfer is in flight (e.g. a large
	// model download already running in the background) and should be
	// polled again without being counted as a fresh retry.
	DownloadPending
)

// Downloader resolves an Asset to an on-disk Location, trying the local
// cache first and falling back to a networked fetch.
//
// Grounded on asset_download_job.cpp, which calls
// downloader.get_asset_offline before ever touching the network, then
// downloader.enqueue_download_asset in a retry loop once online.
type Downloader interface {
	// GetAssetOffline returns a Location already present on disk for a,
	// if one exists. ok is false if the asset must be fetched.
	GetAssetOffline(ctx context.Context, a *Asset) (loc Location, ok bool, err error)
	// EnqueueDownload attempts to fetch a over the network, returning
	// the resulting Location once DownloadComplete.
	EnqueueDownload(ctx context.Context, a *Asset) (DownloadStatus, Location, error)
}

// Ledger provides the at-most-once guarantee for asset materialisation:
// only one in-flight attempt per asset ID is allowed to run at a time,
// fleet-wide when backed by a shared store.
//
// Grounded on exactly_once/idempotency.go's IdempotencyManager, adapted
// from "has this message been processed" to "is this asset currently
// being materialised".
type Ledger interface {
	// Reserve attempts to claim id for materialisation. ok is false if
	// another attempt already holds the claim.
	Reserve(ctx context.Context, id ID) (ok bool, err error)
	// Confirm marks id as durably materialised, releasing the claim.
	Confirm(ctx context.Context, id ID) error
	// Release abandons a claim without confirming it, e.g. after a
	// download failure, so a later attempt may retry.
	Release(ctx context.Context, id ID) error
}
