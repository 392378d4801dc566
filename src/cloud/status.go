// Package cloud derives the claim and connectivity status of this host.
package cloud

import "time"

type Status int

const (
	Available Status = iota
	Offline
	Indirect
	Online
	Banned
)

var statusNames = [...]string{
	Available: "available",
	Offline:   "offline",
	Indirect:  "indirect",
	Online:    "online",
	Banned:    "banned",
}

func (s Status) String() string {
	if s < Available || s > Banned {
		return "unknown"
	}
	return statusNames[s]
}

// CanBeClaimed is true for hosts that are not claimed yet, or claimed but
// not directly connected.
func (s Status) CanBeClaimed() bool {
	switch s {
	case Available, Offline, Indirect:
		return true
	default:
		return false
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is what the connectivity side knows at a point in time.
type State struct {
	Claimed   bool
	ClaimID   string
	URL       string
	Banned    bool
	Connected bool
	// ViaParent is set when a claimed host reaches the cloud through another
	// agent. Only meaningful together with Claimed.
	ViaParent bool
	Reason    string
	Since     time.Time
	NextCheck time.Time
}

// StateSource is implemented by whatever owns the live connection.
type StateSource interface {
	CloudState() State
}

// Compute maps a state onto exactly one status.
func Compute(st State) Status {
	switch {
	case st.Banned:
		return Banned
	case st.Claimed && st.Connected:
		return Online
	case st.Claimed && st.ViaParent:
		return Indirect
	case st.Claimed:
		return Offline
	default:
		return Available
	}
}
