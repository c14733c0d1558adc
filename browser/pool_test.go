package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
)

// fakePool wires the pool's launch and probe seams so no browser is ever
// started. Each "launch" yields a distinct *rod.Browser value.
type fakePool struct {
	*Pool
	launched int
	probeErr map[*rod.Browser]error
}

func newFakePool(cfg config.BrowserConfig) *fakePool {
	f := &fakePool{
		Pool:     NewPool(cfg),
		probeErr: map[*rod.Browser]error{},
	}
	f.Pool.launch = func() (*rod.Browser, func(), error) {
		f.launched++
		return &rod.Browser{}, func() {}, nil
	}
	f.Pool.probe = func(e *Entry) error {
		return f.probeErr[e.Browser]
	}
	return f
}

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		PoolSize:      2,
		IdleTimeout:   time.Hour,
		LaunchRetries: 0,
	}
}

func TestPool_AcquireLaunchesAndReuses(t *testing.T) {
	p := newFakePool(testBrowserConfig())

	e1, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 1, p.launched)

	p.Release(e1)
	e2, err := p.Acquire()
	require.NoError(t, err)
	require.Same(t, e1, e2, "released entry should be reused")
	require.Equal(t, 1, p.launched)
}

func TestPool_FailedProbeDiscardsAndLaunchesFresh(t *testing.T) {
	p := newFakePool(testBrowserConfig())

	e1, err := p.Acquire()
	require.NoError(t, err)
	p.Release(e1)

	p.probeErr[e1.Browser] = errors.New("websocket closed")

	e2, err := p.Acquire()
	require.NoError(t, err)
	require.NotSame(t, e1, e2, "a stale instance must never be handed out")
	require.Equal(t, 2, p.launched)

	// The stale entry is gone for good, not re-pooled.
	p.Release(e2)
	stats := p.Stats()
	require.Equal(t, 1, stats.Idle)
	require.Equal(t, 0, stats.Borrowed)
}

func TestPool_ReleasePastCapacityCloses(t *testing.T) {
	cfg := testBrowserConfig()
	cfg.PoolSize = 1
	p := newFakePool(cfg)

	e1, err := p.Acquire()
	require.NoError(t, err)
	e2, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 2, p.launched)

	p.Release(e1)
	p.Release(e2)

	stats := p.Stats()
	require.Equal(t, 1, stats.Idle, "only PoolSize entries may be retained")
	require.Equal(t, 0, stats.Borrowed)
}

func TestPool_IdleEntriesExpire(t *testing.T) {
	cfg := testBrowserConfig()
	cfg.IdleTimeout = 10 * time.Millisecond
	p := newFakePool(cfg)

	e1, err := p.Acquire()
	require.NoError(t, err)
	p.Release(e1)

	time.Sleep(25 * time.Millisecond)

	e2, err := p.Acquire()
	require.NoError(t, err)
	require.NotSame(t, e1, e2, "expired entry must not be reused")
	require.Equal(t, 2, p.launched)
}

func TestPool_LaunchFailureRetriesThenReportsTyped(t *testing.T) {
	cfg := testBrowserConfig()
	cfg.LaunchRetries = 2
	cfg.LaunchBackoff = time.Millisecond
	p := NewPool(cfg)

	attempts := 0
	p.launch = func() (*rod.Browser, func(), error) {
		attempts++
		return nil, nil, errors.New("chromium not found")
	}

	_, err := p.Acquire()
	require.Error(t, err)
	require.Equal(t, 3, attempts, "one initial attempt plus two retries")

	var launchErr *models.LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Equal(t, 3, launchErr.Attempts)
}

func TestPool_StatsTracksBorrowed(t *testing.T) {
	p := newFakePool(testBrowserConfig())

	e, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, models.PoolStats{MaxSize: 2, Idle: 0, Borrowed: 1}, p.Stats())

	p.Release(e)
	require.Equal(t, models.PoolStats{MaxSize: 2, Idle: 1, Borrowed: 0}, p.Stats())
}
