package audit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/stake-plus/claimd/src/data"
)

// DBSink stores events in the claim_attempts table.
type DBSink struct {
	DB *gorm.DB
}

func (DBSink) Name() string { return "db" }

func (s DBSink) Write(ctx context.Context, ev Event) error {
	return data.RecordAttempt(ctx, s.DB, &data.ClaimAttempt{
		EventID:        ev.ID,
		Kind:           ev.Kind,
		Origin:         data.Clip(ev.Origin, data.MaxOriginLen),
		KeyFingerprint: ev.KeyFingerprint,
		URL:            data.Clip(ev.URL, data.MaxURLLen),
		Status:         ev.Status,
		Message:        data.Clip(ev.Message, data.MaxMessageLen),
		CreatedAt:      ev.At,
	})
}

// StreamSink publishes events to the redis claim stream.
type StreamSink struct {
	RDB *redis.Client
}

func (StreamSink) Name() string { return "redis" }

func (s StreamSink) Write(ctx context.Context, ev Event) error {
	return data.PublishEvent(ctx, s.RDB, map[string]interface{}{
		"id":      ev.ID,
		"kind":    ev.Kind,
		"origin":  ev.Origin,
		"key_fp":  ev.KeyFingerprint,
		"url":     ev.URL,
		"status":  ev.Status,
		"message": ev.Message,
		"at":      ev.At.Format(time.RFC3339),
	})
}
