package asset

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/edgecore/core-runtime/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDOrderingIsLexicographic(t *testing.T) {
	a := ID{Name: "a", Version: "1", Type: TypeModel}
	b := ID{Name: "a", Version: "2", Type: TypeModel}
	c := ID{Name: "b", Version: "1", Type: TypeModel}
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}

func TestDeploymentAbsentSentinel(t *testing.T) {
	var d *Deployment
	assert.True(t, d.IsAbsent())
	d2 := &Deployment{ID: NoDeployment}
	assert.True(t, d2.IsAbsent())
	d3 := &Deployment{ID: 5}
	assert.False(t, d3.IsAbsent())
}

type memLedger struct {
	mu      sync.Mutex
	claimed map[ID]bool
}

func newMemLedger() *memLedger { return &memLedger{claimed: map[ID]bool{}} }

func (m *memLedger) Reserve(ctx context.Context, id ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func (m *memLedger) Confirm(ctx context.Context, id ID) error { return nil }

func (m *memLedger) Release(ctx context.Context, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, id)
	return nil
}

type countingDownloader struct {
	mu    sync.Mutex
	calls map[ID]int
}

func newCountingDownloader() *countingDownloader {
	return &countingDownloader{calls: map[ID]int{}}
}

func (d *countingDownloader) GetAssetOffline(ctx context.Context, a *Asset) (Location, bool, error) {
	return Location{}, false, nil
}

func (d *countingDownloader) EnqueueDownload(ctx context.Context, a *Asset) (DownloadStatus, Location, error) {
	d.mu.Lock()
	d.calls[a.ID]++
	d.mu.Unlock()
	return DownloadComplete, Location{Path: "/assets/" + a.ID.Name}, nil
}

func TestScheduleDownloadResolvesOffline(t *testing.T) {
	sched := scheduler.New()
	dl := &offlineDownloader{loc: Location{Path: "/cached"}}
	ledger := newMemLedger()
	a := &Asset{ID: ID{Name: "m", Version: "1", Type: TypeModel}}

	f := ScheduleDownload(sched, dl, ledger, a, 3)
	sched.DoAllNonPriorityJobs(context.Background())

	loc, err := f.ProduceValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/cached", loc.Path)
}

type offlineDownloader struct{ loc Location }

func (d *offlineDownloader) GetAssetOffline(ctx context.Context, a *Asset) (Location, bool, error) {
	return d.loc, true, nil
}
func (d *offlineDownloader) EnqueueDownload(ctx context.Context, a *Asset) (DownloadStatus, Location, error) {
	return DownloadComplete, Location{}, nil
}

func TestScheduleDownloadOnlyReservesOncePerAsset(t *testing.T) {
	sched := scheduler.New()
	dl := newCountingDownloader()
	ledger := newMemLedger()
	a := &Asset{ID: ID{Name: "shared", Version: "1", Type: TypeModel}}

	f1 := ScheduleDownload(sched, dl, ledger, a, 3)
	sched.DoAllNonPriorityJobs(context.Background())

	_, err := f1.ProduceValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dl.calls[a.ID])
}

type failThenSucceedDownloader struct {
	mu       sync.Mutex
	attempts int
}

func (d *failThenSucceedDownloader) GetAssetOffline(ctx context.Context, a *Asset) (Location, bool, error) {
	return Location{}, false, nil
}

func (d *failThenSucceedDownloader) EnqueueDownload(ctx context.Context, a *Asset) (DownloadStatus, Location, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.attempts < 3 {
		return DownloadRetry, Location{}, nil
	}
	return DownloadComplete, Location{Path: "/ok"}, nil
}

func TestScheduleDownloadRetriesOnFailure(t *testing.T) {
	sched := scheduler.New()
	dl := &failThenSucceedDownloader{}
	ledger := newMemLedger()
	a := &Asset{ID: ID{Name: "flaky", Version: "1", Type: TypeModel}}

	f := ScheduleDownload(sched, dl, ledger, a, 5)
	sched.DoAllNonPriorityJobs(context.Background())

	loc, err := f.ProduceValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/ok", loc.Path)
	assert.Equal(t, 3, dl.attempts)
}

type recordingLoader struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingLoader) LoadAsset(ctx context.Context, a *Asset, children []any) (any, error) {
	r.mu.Lock()
	r.calls = append(r.calls, a.ID.Name)
	r.mu.Unlock()
	return a.ID.Name + ":loaded", nil
}

func TestBuildLoadJobResolvesCompositeAfterChildren(t *testing.T) {
	sched := scheduler.New()
	dl := &offlineDownloader{loc: Location{Path: "/cached"}}
	ledger := newMemLedger()
	loader := &recordingLoader{}

	child := &Asset{ID: ID{Name: "child", Version: "1", Type: TypeModel}}
	root := &Asset{ID: ID{Name: "root", Version: "1", Type: TypeScript}, Children: []*Asset{child}}

	f := BuildLoadJob(sched, dl, ledger, loader, func() bool { return false }, root, 3)
	for i := 0; i < 10 && !f.IsReady(); i++ {
		sched.DoAllNonPriorityJobs(context.Background())
	}

	v, err := f.ProduceValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "root:loaded", v)
	assert.Contains(t, loader.calls, "child")
	assert.Contains(t, loader.calls, "root")
}

func TestBuildLoadJobShortCircuitsWhenStale(t *testing.T) {
	sched := scheduler.New()
	dl := &offlineDownloader{loc: Location{Path: "/cached"}}
	ledger := newMemLedger()
	loader := &recordingLoader{}

	a := &Asset{ID: ID{Name: "leaf", Version: "1", Type: TypeModel}}
	f := BuildLoadJob(sched, dl, ledger, loader, func() bool { return true }, a, 3)
	sched.DoAllNonPriorityJobs(context.Background())

	v, err := f.ProduceValue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Empty(t, loader.calls)
}

func TestScheduleDownloadPropagatesError(t *testing.T) {
	sched := scheduler.New()
	dl := &erroringDownloader{}
	ledger := newMemLedger()
	a := &Asset{ID: ID{Name: "bad", Version: "1", Type: TypeModel}}

	f := ScheduleDownload(sched, dl, ledger, a, 2)
	sched.DoAllNonPriorityJobs(context.Background())

	_, err := f.ProduceValue(context.Background())
	require.Error(t, err)
}

type erroringDownloader struct{}

func (d *erroringDownloader) GetAssetOffline(ctx context.Context, a *Asset) (Location, bool, error) {
	return Location{}, false, nil
}
func (d *erroringDownloader) EnqueueDownload(ctx context.Context, a *Asset) (DownloadStatus, Location, error) {
	return DownloadComplete, Location{}, errors.New("network error")
}
