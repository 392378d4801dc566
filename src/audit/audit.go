// Package audit records claim attempts to the configured sinks.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/stake-plus/claimd/src/claim"
)

const sinkTimeout = 5 * time.Second

// Event is the stored form of a claim attempt.
type Event struct {
	ID             string
	Kind           string
	Origin         string
	KeyFingerprint string
	URL            string
	Status         string
	Message        string
	At             time.Time
}

type Sink interface {
	Name() string
	Write(ctx context.Context, ev Event) error
}

// Recorder turns attempts into events and hands them to every sink. Sink
// failures are logged and otherwise ignored.
type Recorder struct {
	sinks []Sink
	log   *zap.Logger
	now   func() time.Time
}

func NewRecorder(log *zap.Logger, sinks ...Sink) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sinks: sinks, log: log.Named("audit"), now: time.Now}
}

func (r *Recorder) Observe(ctx context.Context, a claim.Attempt) {
	ev := Event{
		ID:             NewEventID(),
		Kind:           string(a.Kind),
		Origin:         a.Origin,
		KeyFingerprint: Fingerprint(a.Key),
		URL:            a.BaseURL,
		Status:         a.Status.String(),
		Message:        a.Message,
		At:             r.now().UTC(),
	}

	r.log.Info("claim attempt",
		zap.String("event", ev.ID),
		zap.String("kind", ev.Kind),
		zap.String("origin", ev.Origin),
		zap.String("key_fp", ev.KeyFingerprint),
		zap.String("status", ev.Status))

	for _, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := s.Write(sctx, ev); err != nil {
			r.log.Warn("audit sink failed", zap.String("sink", s.Name()), zap.Error(err))
		}
		cancel()
	}
}

// Fingerprint identifies a presented key without revealing it.
func Fingerprint(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.ChecksumString64(key))
}

// NewEventID returns a random base58 id.
func NewEventID() string {
	id := uuid.New()
	return base58.Encode(id[:])
}
