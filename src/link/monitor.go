// Package link tracks whether the claimed host can reach its cloud space.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stake-plus/claimd/src/cloud"
	"github.com/stake-plus/claimd/src/data"
)

// ErrBanned is returned by a Prober when the cloud refuses this node for good.
var ErrBanned = errors.New("node is banned by the cloud")

// Prober checks connectivity to a claimed cloud URL.
type Prober interface {
	Probe(ctx context.Context, baseURL string) error
}

type ClaimStore interface {
	Load(ctx context.Context) (data.ClaimState, error)
	SaveClaim(ctx context.Context, claimID, url string, rooms []string) (data.ClaimState, error)
	SetBanned(ctx context.Context, reason string) error
}

type Options struct {
	Store         ClaimStore
	Prober        Prober
	ReloadTimeout time.Duration
	ProbeInterval time.Duration
	Logger        *zap.Logger
}

// Monitor owns the live connection state. It is the cloud.StateSource and
// the claim.Reloader of the service.
type Monitor struct {
	mu       sync.Mutex
	state    cloud.State
	store    ClaimStore
	prober   Prober
	timeout  time.Duration
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func New(opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = time.Minute
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 5 * time.Minute
	}
	return &Monitor{
		store:    opts.Store,
		prober:   opts.Prober,
		timeout:  opts.ReloadTimeout,
		interval: opts.ProbeInterval,
		log:      opts.Logger.Named("link"),
		now:      time.Now,
	}
}

// Restore loads the persisted claim. Connectivity starts unknown (offline).
func (m *Monitor) Restore(ctx context.Context) error {
	st, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st.CloudState()
	return nil
}

func (m *Monitor) CloudState() cloud.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RecordClaim persists a successful claim and resets connectivity.
func (m *Monitor) RecordClaim(ctx context.Context, claimID, baseURL string, rooms []string) error {
	if _, err := m.store.SaveClaim(ctx, claimID, baseURL, rooms); err != nil {
		return err
	}
	m.update(func(st *cloud.State) {
		*st = cloud.State{Claimed: true, ClaimID: claimID, URL: baseURL}
	})
	return nil
}

// ReloadAndWaitOnline probes the claimed URL and waits for the answer, at
// most the reload timeout.
func (m *Monitor) ReloadAndWaitOnline(ctx context.Context) cloud.Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	m.check(ctx)
	return cloud.Compute(m.CloudState())
}

// Run probes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	st := m.CloudState()
	if !st.Claimed || st.Banned || st.URL == "" {
		return
	}

	err := m.prober.Probe(ctx, st.URL)
	if errors.Is(err, ErrBanned) {
		reason := err.Error()
		if serr := m.store.SetBanned(ctx, reason); serr != nil {
			m.log.Error("cannot persist ban", zap.Error(serr))
		}
		m.log.Warn("cloud banned this node", zap.String("url", st.URL))
		m.update(func(st *cloud.State) {
			st.Banned = true
			st.Connected = false
			st.Reason = reason
		})
		return
	}

	connected := err == nil
	reason := ""
	if err != nil {
		reason = probeReason(err)
		m.log.Debug("cloud probe failed", zap.String("url", st.URL), zap.Error(err))
	}
	m.update(func(st *cloud.State) {
		st.Connected = connected
		st.Reason = reason
	})
}

// update applies fn under the lock, moving Since only when connectivity or
// ban status changed.
func (m *Monitor) update(fn func(*cloud.State)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := cloud.Compute(m.state)
	fn(&m.state)
	now := m.now()
	if cloud.Compute(m.state) != before || m.state.Since.IsZero() {
		m.state.Since = now
	}
	m.state.NextCheck = now.Add(m.interval)
}

func probeReason(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		msg = msg[i+2:]
	}
	return fmt.Sprintf("cloud unreachable: %s", msg)
}
