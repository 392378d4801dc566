package cloud

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanBeClaimed(t *testing.T) {
	cases := map[Status]bool{
		Available: true,
		Offline:   true,
		Indirect:  true,
		Online:    false,
		Banned:    false,
	}
	for status, want := range cases {
		assert.Equal(t, want, status.CanBeClaimed(), status.String())
	}
	assert.False(t, Status(42).CanBeClaimed())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Status
	}{
		{"never claimed", State{}, Available},
		{"claimed not connected", State{Claimed: true}, Offline},
		{"claimed and connected", State{Claimed: true, Connected: true}, Online},
		{"through parent", State{Claimed: true, ViaParent: true}, Indirect},
		{"parent link on unclaimed host", State{ViaParent: true}, Available},
		{"banned through parent", State{Claimed: true, ViaParent: true, Banned: true}, Banned},
		{"banned wins", State{Claimed: true, Connected: true, Banned: true}, Banned},
		{"connected but unclaimed", State{Connected: true}, Available},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.state))
		})
	}
}

type fixedSource State

func (f fixedSource) CloudState() State { return State(f) }

func TestEvaluate(t *testing.T) {
	since := time.Unix(1_700_000_000, 0)
	now := since.Add(90 * time.Second)

	snap := NewEvaluator(fixedSource{
		Claimed:   true,
		ClaimID:   "c-1",
		URL:       "https://cloud.example",
		Reason:    "connection refused",
		Since:     since,
		NextCheck: now.Add(time.Minute),
	}).Evaluate(now)

	assert.Equal(t, Offline, snap.Status)
	assert.True(t, snap.CanBeClaimed)
	assert.Equal(t, since.Unix(), snap.Since)
	assert.Equal(t, int64(90), snap.Age)
	assert.Equal(t, now.Add(time.Minute).Unix(), snap.NextCheck)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "offline",
		"since": 1700000000,
		"age": 90,
		"url": "https://cloud.example",
		"reason": "connection refused",
		"claim_id": "c-1",
		"next_check": 1700000150
	}`, string(raw))
}

func TestEvaluateZeroTimes(t *testing.T) {
	snap := NewEvaluator(fixedSource{}).Evaluate(time.Now())
	assert.Equal(t, Available, snap.Status)
	assert.Zero(t, snap.Since)
	assert.Zero(t, snap.Age)
	assert.Zero(t, snap.NextCheck)
}
