package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// LocalDiskDownloader materialises SCRIPT assets: the control plane
// serves script bytes zstd-compressed over plain HTTP(S), small enough
// that a single synchronous fetch-then-decompress is simpler than the
// S3 multipart/poll dance MODEL, DOCUMENT and LLM assets need.
//
// Grounded on smart-payload-deduplication/compression.go's
// ZstdCompressor for the encoder/decoder lifecycle, adapted from
// request/response compression to decompressing a downloaded blob once
// on arrival.
type LocalDiskDownloader struct {
	cacheDir string
	client   *http.Client
	decoder  *zstd.Decoder
}

// NewLocalDiskDownloader returns a LocalDiskDownloader rooted at
// cacheDir. The zstd decoder is built once and reused across downloads;
// it is safe for concurrent use.
func NewLocalDiskDownloader(cacheDir string, client *http.Client) (*LocalDiskDownloader, error) {
	if client == nil {
		client = http.DefaultClient
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("asset: build zstd decoder: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("asset: create cache dir %s: %w", cacheDir, err)
	}
	return &LocalDiskDownloader{cacheDir: cacheDir, client: client, decoder: dec}, nil
}

func (d *LocalDiskDownloader) path(a *Asset) string {
	return filepath.Join(d.cacheDir, fmt.Sprintf("%s-%s-%s", a.ID.Type, a.ID.Name, a.ID.Version))
}

// GetAssetOffline implements Downloader.
func (d *LocalDiskDownloader) GetAssetOffline(ctx context.Context, a *Asset) (Location, bool, error) {
	p := d.path(a)
	if _, err := os.Stat(p); err != nil {
		return Location{}, false, nil
	}
	return Location{Path: p}, true, nil
}

// EnqueueDownload implements Downloader: it fetches a.WebLocation in
// full, decompresses it, and writes the result to the asset's canonical
// cache path. There is no partial/pending state for a script fetch, so
// the only statuses returned are DownloadComplete or DownloadRetry.
func (d *LocalDiskDownloader) EnqueueDownload(ctx context.Context, a *Asset) (DownloadStatus, Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.WebLocation, nil)
	if err != nil {
		return DownloadRetry, Location{}, fmt.Errorf("asset: build request for %s: %w", a.ID, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return DownloadRetry, Location{}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return DownloadRetry, Location{}, nil
	}

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return DownloadRetry, Location{}, nil
	}
	raw, err := d.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return DownloadComplete, Location{}, fmt.Errorf("asset: decompress %s: %w", a.ID, err)
	}

	p := d.path(a)
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		return DownloadComplete, Location{}, fmt.Errorf("asset: write %s: %w", p, err)
	}
	return DownloadComplete, Location{Path: p}, nil
}
