// Package claim runs the challenge-response exchange that links this host to
// a cloud space: proof token check, parameter validation, the remote claim
// call and the report sent back to the operator.
package claim

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stake-plus/claimd/src/cloud"
)

const (
	BodyInvalidKey        = "invalid key"
	BodyInvalidParameters = "invalid parameters"
	MessageOK             = "ok"
)

// Request is what the remote claim call needs.
type Request struct {
	BaseURL  string
	Token    string
	Rooms    []string
	Proxy    string
	Insecure bool
}

// Claimer performs the remote claim. The error text is shown to the operator.
type Claimer interface {
	Claim(ctx context.Context, req Request) error
}

// Reloader reconnects after a claim and returns the status it settled on.
type Reloader interface {
	ReloadAndWaitOnline(ctx context.Context) cloud.Status
}

// TokenStore checks and rotates the proof token.
type TokenStore interface {
	PathSource
	Consume(candidate string) bool
}

type StatusEvaluator interface {
	Evaluate(now time.Time) cloud.Snapshot
}

// Settings exposes the outbound transport options. Read only.
type Settings interface {
	Proxy() string
	Insecure() bool
}

type AttemptKind string

const (
	AttemptForbidden AttemptKind = "forbidden"
	AttemptInvalid   AttemptKind = "invalid"
	AttemptClaimed   AttemptKind = "claimed"
	AttemptFailed    AttemptKind = "failed"
)

// Attempt describes one authenticated or rejected claim. Key is the raw
// candidate; observers must not store it as is.
type Attempt struct {
	Kind    AttemptKind
	Origin  string
	Key     string
	BaseURL string
	Status  cloud.Status
	Message string
}

type Observer interface {
	Observe(ctx context.Context, a Attempt)
}

type Deps struct {
	Tokens   TokenStore
	Status   StatusEvaluator
	Claimer  Claimer
	Reloader Reloader
	Settings Settings
	Builder  *Builder
	Observer Observer
	Logger   *zap.Logger
	Now      func() time.Time
}

// Result is what the transport writes back. Report is nil when Body carries
// a plain text rejection.
type Result struct {
	Code   int
	Body   string
	Report *Report
}

type Orchestrator struct {
	tokens   TokenStore
	status   StatusEvaluator
	claimer  Claimer
	reloader Reloader
	settings Settings
	builder  *Builder
	observer Observer
	log      *zap.Logger
	now      func() time.Time
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		tokens:   d.Tokens,
		status:   d.Status,
		claimer:  d.Claimer,
		reloader: d.Reloader,
		settings: d.Settings,
		builder:  d.Builder,
		observer: d.Observer,
		log:      d.Logger,
		now:      d.Now,
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	o.log = o.log.Named("claim")
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Handle serves one claim request. Without a key, or when the host cannot be
// claimed, it only reports status and leaves the proof token alone.
func (o *Orchestrator) Handle(ctx context.Context, p Parameters, origin string) Result {
	snap := o.status.Evaluate(o.now())
	if !snap.CanBeClaimed || !p.HasKey() {
		return o.report(snap, nil, snap.CanBeClaimed)
	}

	// Consume rotates the token whatever the outcome, so every path below
	// runs with the presented key already spent.
	if !o.tokens.Consume(p.Key) {
		o.log.Info("claim rejected: key mismatch", zap.String("origin", origin))
		o.observe(ctx, Attempt{Kind: AttemptForbidden, Origin: origin, Key: p.Key, Status: snap.Status})
		return Result{Code: http.StatusForbidden, Body: BodyInvalidKey}
	}

	if err := p.Validate(); err != nil {
		o.log.Info("claim rejected: invalid parameters", zap.String("origin", origin))
		o.observe(ctx, Attempt{Kind: AttemptInvalid, Origin: origin, Key: p.Key, Status: snap.Status})
		return Result{Code: http.StatusBadRequest, Body: BodyInvalidParameters}
	}

	// a claim that reached the remote side must run to completion
	outcome := o.claim(context.WithoutCancel(ctx), p)

	snap = o.status.Evaluate(o.now())
	kind := AttemptFailed
	if outcome.Success {
		kind = AttemptClaimed
	}
	o.observe(ctx, Attempt{
		Kind:    kind,
		Origin:  origin,
		Key:     p.Key,
		BaseURL: p.BaseURL,
		Status:  snap.Status,
		Message: outcome.Message,
	})

	return o.report(snap, &outcome, snap.CanBeClaimed && !outcome.Success)
}

func (o *Orchestrator) claim(ctx context.Context, p Parameters) Outcome {
	req := Request{
		BaseURL: p.BaseURL,
		Token:   p.Token,
		Rooms:   p.RoomList(),
	}
	if o.settings != nil {
		req.Proxy = o.settings.Proxy()
		req.Insecure = o.settings.Insecure()
	}

	if err := o.claimer.Claim(ctx, req); err != nil {
		o.log.Warn("claim failed", zap.String("url", p.BaseURL), zap.Error(err))
		return Outcome{Success: false, Message: err.Error()}
	}

	status := o.reloader.ReloadAndWaitOnline(ctx)
	o.log.Info("claimed", zap.String("url", p.BaseURL), zap.Stringer("status", status))
	return Outcome{Success: true, Message: MessageOK}
}

func (o *Orchestrator) report(snap cloud.Snapshot, outcome *Outcome, canBeClaimed bool) Result {
	r := o.builder.Build(snap, outcome, canBeClaimed, o.now())
	if canBeClaimed && r.KeyFilename == "" {
		o.log.Warn("proof token file unavailable, verification instructions incomplete")
	}
	return Result{Code: http.StatusOK, Report: &r}
}

func (o *Orchestrator) observe(ctx context.Context, a Attempt) {
	if o.observer == nil {
		return
	}
	o.observer.Observe(context.WithoutCancel(ctx), a)
}
