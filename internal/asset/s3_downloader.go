package asset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Downloader materialises MODEL, DOCUMENT and LLM assets out of an
// S3-compatible bucket. Unlike a SCRIPT's synchronous fetch, these
// blobs (an LLM target is a whole directory) are large enough that the
// original treats the transfer as a background operation polled to
// completion; EnqueueDownload mirrors that by starting the multipart
// download in a goroutine the first time it is called for an asset and
// reporting DownloadPending on every call until that goroutine finishes.
//
// Grounded on long-term-archives/s3_exporter.go's session/uploader setup
// (here mirrored for downloads via s3manager.Downloader) for the
// AWS session and path-style-endpoint handling MinIO/LocalStack need in
// development.
type S3Downloader struct {
	cacheDir string
	bucket   string
	dl       *s3manager.Downloader
	s3c      *s3.S3

	mu       sync.Mutex
	inFlight map[ID]*s3Transfer
}

type s3Transfer struct {
	done chan struct{}
	loc  Location
	err  error
}

// NewS3Downloader builds an S3Downloader against bucket in region,
// optionally talking to a path-style endpoint (MinIO/LocalStack) instead
// of AWS proper when endpoint is non-empty.
func NewS3Downloader(cacheDir, bucket, region, endpoint string) (*S3Downloader, error) {
	awsCfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("asset: create aws session: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("asset: create cache dir %s: %w", cacheDir, err)
	}
	return &S3Downloader{
		cacheDir: cacheDir,
		bucket:   bucket,
		dl:       s3manager.NewDownloader(sess),
		s3c:      s3.New(sess),
		inFlight: make(map[ID]*s3Transfer),
	}, nil
}

func (d *S3Downloader) path(a *Asset) string {
	if a.ID.Type == TypeLLM {
		return filepath.Join(d.cacheDir, "llm", a.ID.Name, a.ID.Version)
	}
	return filepath.Join(d.cacheDir, fmt.Sprintf("%s-%s-%s", a.ID.Type, a.ID.Name, a.ID.Version))
}

// GetAssetOffline implements Downloader.
func (d *S3Downloader) GetAssetOffline(ctx context.Context, a *Asset) (Location, bool, error) {
	p := d.path(a)
	if a.ID.Type == TypeLLM {
		if entries, err := os.ReadDir(p); err == nil && len(entries) > 0 {
			return Location{Path: p}, true, nil
		}
		return Location{}, false, nil
	}
	if _, err := os.Stat(p); err != nil {
		return Location{}, false, nil
	}
	return Location{Path: p}, true, nil
}

// EnqueueDownload implements Downloader. a.ID.Type must be MODEL,
// DOCUMENT or LLM; RETRIEVER assets are rejected by
// DispatchDownloader.pick with ErrRetrieverNotDownloadable and SCRIPT
// belongs to LocalDiskDownloader.
func (d *S3Downloader) EnqueueDownload(ctx context.Context, a *Asset) (DownloadStatus, Location, error) {
	d.mu.Lock()
	t, ok := d.inFlight[a.ID]
	if !ok {
		t = &s3Transfer{done: make(chan struct{})}
		d.inFlight[a.ID] = t
		go d.runTransfer(context.WithoutCancel(ctx), a, t)
	}
	d.mu.Unlock()

	select {
	case <-t.done:
		d.mu.Lock()
		delete(d.inFlight, a.ID)
		d.mu.Unlock()
		if t.err != nil {
			return DownloadRetry, Location{}, nil
		}
		return DownloadComplete, t.loc, nil
	default:
		return DownloadPending, Location{}, nil
	}
}

func (d *S3Downloader) runTransfer(ctx context.Context, a *Asset, t *s3Transfer) {
	defer close(t.done)

	key := a.WebLocation
	if a.ID.Type == TypeLLM {
		t.err = d.downloadDirectory(ctx, key, d.path(a))
	} else {
		t.err = d.downloadFile(ctx, key, d.path(a))
	}
	if t.err == nil {
		t.loc = Location{Path: d.path(a)}
	}
}

func (d *S3Downloader) downloadFile(ctx context.Context, key, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = d.dl.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	return err
}

// downloadDirectory fetches every object under the key prefix, the
// LLM-as-directory case the S3Downloader type doc describes.
func (d *S3Downloader) downloadDirectory(ctx context.Context, prefix, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	var innerErr error
	err := d.s3c.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			rel, relErr := filepath.Rel(prefix, aws.StringValue(obj.Key))
			if relErr != nil {
				rel = filepath.Base(aws.StringValue(obj.Key))
			}
			if innerErr = d.downloadFile(ctx, aws.StringValue(obj.Key), filepath.Join(destDir, rel)); innerErr != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	return innerErr
}
