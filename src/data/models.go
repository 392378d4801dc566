package data

import (
	"time"
	"unicode/utf8"

	"github.com/stake-plus/claimd/src/cloud"
)

// NodeIdentity is created once per host.
type NodeIdentity struct {
	ID          uint   `gorm:"primaryKey"`
	MachineGUID string `gorm:"size:36;not null;uniqueIndex"`
	NodeID      string `gorm:"size:36;not null;uniqueIndex"`
	CreatedAt   time.Time
}

// ClaimState is the single persisted claim record of this host.
type ClaimState struct {
	ID        uint   `gorm:"primaryKey"`
	Claimed   bool   `gorm:"default:false"`
	ClaimID   string `gorm:"size:64"`
	URL       string `gorm:"size:256"`
	Rooms     string `gorm:"size:1024"`
	Banned    bool   `gorm:"default:false"`
	Reason    string `gorm:"size:512"`
	UpdatedAt time.Time
}

// CloudState is the persisted part of the cloud state. Connectivity is not
// stored, so a claimed host comes back offline until it is probed.
func (st ClaimState) CloudState() cloud.State {
	return cloud.State{
		Claimed: st.Claimed,
		ClaimID: st.ClaimID,
		URL:     st.URL,
		Banned:  st.Banned,
		Reason:  st.Reason,
		Since:   st.UpdatedAt,
	}
}

// Column widths of the text fields below, in characters.
const (
	MaxOriginLen  = 64
	MaxURLLen     = 256
	MaxMessageLen = 512
	MaxReasonLen  = 512
)

// Clip shortens s to at most n characters.
func Clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ClaimAttempt is one audited claim request. KeyFingerprint never holds the
// key itself.
type ClaimAttempt struct {
	ID             uint64 `gorm:"primaryKey"`
	EventID        string `gorm:"size:32;uniqueIndex"`
	Kind           string `gorm:"size:16;index;not null"`
	Origin         string `gorm:"size:64"`
	KeyFingerprint string `gorm:"size:16"`
	URL            string `gorm:"size:256"`
	Status         string `gorm:"size:16"`
	Message        string `gorm:"size:512"`
	CreatedAt      time.Time
}

// Setting is a runtime override, e.g. proxy or insecure.
type Setting struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string `gorm:"size:512"`
}
