package link

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/stake-plus/claimd/src/cloud"
	"github.com/stake-plus/claimd/src/data"
)

type memStore struct {
	mu sync.Mutex
	st data.ClaimState
}

func (s *memStore) Load(context.Context) (data.ClaimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st, nil
}

func (s *memStore) SaveClaim(_ context.Context, claimID, url string, _ []string) (data.ClaimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = data.ClaimState{ID: 1, Claimed: true, ClaimID: claimID, URL: url}
	return s.st, nil
}

func (s *memStore) SetBanned(_ context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Banned = true
	s.st.Reason = reason
	return nil
}

type proberFunc func(ctx context.Context, url string) error

func (f proberFunc) Probe(ctx context.Context, url string) error { return f(ctx, url) }

func newMonitor(t *testing.T, store ClaimStore, p Prober) *Monitor {
	t.Helper()
	return New(Options{
		Store:         store,
		Prober:        p,
		ReloadTimeout: time.Second,
		ProbeInterval: 10 * time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	})
}

func TestRestoreAndState(t *testing.T) {
	updated := time.Unix(1_700_000_000, 0)
	store := &memStore{st: data.ClaimState{Claimed: true, ClaimID: "c-1", URL: "https://cloud.example", UpdatedAt: updated}}
	m := newMonitor(t, store, proberFunc(func(context.Context, string) error { return nil }))

	require.NoError(t, m.Restore(context.Background()))
	st := m.CloudState()
	assert.True(t, st.Claimed)
	assert.False(t, st.Connected)
	assert.Equal(t, updated, st.Since)
	assert.Equal(t, cloud.Offline, cloud.Compute(st))
}

func TestRecordClaimThenReload(t *testing.T) {
	store := &memStore{}
	var probed string
	m := newMonitor(t, store, proberFunc(func(_ context.Context, url string) error {
		probed = url
		return nil
	}))

	require.NoError(t, m.RecordClaim(context.Background(), "c-9", "https://cloud.example", nil))
	assert.Equal(t, cloud.Offline, cloud.Compute(m.CloudState()))
	assert.True(t, store.st.Claimed)

	status := m.ReloadAndWaitOnline(context.Background())
	assert.Equal(t, cloud.Online, status)
	assert.Equal(t, "https://cloud.example", probed)
	assert.False(t, m.CloudState().NextCheck.IsZero())
}

func TestReloadReportsOfflineOnFailure(t *testing.T) {
	m := newMonitor(t, &memStore{}, proberFunc(func(context.Context, string) error {
		return fmt.Errorf("dial tcp: %w", errors.New("connection refused"))
	}))
	require.NoError(t, m.RecordClaim(context.Background(), "c-1", "https://cloud.example", nil))

	assert.Equal(t, cloud.Offline, m.ReloadAndWaitOnline(context.Background()))
	assert.Equal(t, "cloud unreachable: connection refused", m.CloudState().Reason)
}

func TestReloadHonoursTimeout(t *testing.T) {
	m := newMonitor(t, &memStore{}, proberFunc(func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	m.timeout = 20 * time.Millisecond
	require.NoError(t, m.RecordClaim(context.Background(), "c-1", "https://cloud.example", nil))

	start := time.Now()
	assert.Equal(t, cloud.Offline, m.ReloadAndWaitOnline(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestBanIsPersisted(t *testing.T) {
	store := &memStore{}
	m := newMonitor(t, store, proberFunc(func(context.Context, string) error {
		return fmt.Errorf("%w (HTTP 403)", ErrBanned)
	}))
	require.NoError(t, m.RecordClaim(context.Background(), "c-1", "https://cloud.example", nil))

	assert.Equal(t, cloud.Banned, m.ReloadAndWaitOnline(context.Background()))
	assert.True(t, store.st.Banned)
}

func TestUnclaimedHostIsNotProbed(t *testing.T) {
	m := newMonitor(t, &memStore{}, proberFunc(func(context.Context, string) error {
		t.Fatal("probe on unclaimed host")
		return nil
	}))
	assert.Equal(t, cloud.Available, m.ReloadAndWaitOnline(context.Background()))
}

func TestRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu    sync.Mutex
		count int
	)
	m := newMonitor(t, &memStore{}, proberFunc(func(context.Context, string) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))
	require.NoError(t, m.RecordClaim(context.Background(), "c-1", "https://cloud.example", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, cloud.Online, cloud.Compute(m.CloudState()))
}

func TestHTTPProber(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/spaces/nodes/node-1/status", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := HTTPProber{NodeID: "node-1", Timeout: time.Second}

	status.Store(http.StatusOK)
	assert.NoError(t, p.Probe(context.Background(), srv.URL))

	status.Store(http.StatusForbidden)
	assert.ErrorIs(t, p.Probe(context.Background(), srv.URL), ErrBanned)

	status.Store(http.StatusNotFound)
	err := p.Probe(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBanned)
}
