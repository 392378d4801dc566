package claim

import (
	"time"

	"github.com/stake-plus/claimd/src/cloud"
)

// Identity describes this host in every report.
type Identity struct {
	MachineGUID string `json:"mg"`
	NodeID      string `json:"nd"`
	Hostname    string `json:"nm"`
	Version     string `json:"version"`
}

type Agent struct {
	Identity
	Now int64 `json:"now"`
}

// Outcome is the result of a claim call that reached the remote service.
type Outcome struct {
	Success bool
	Message string
}

// Report is the document returned by the claim endpoint.
type Report struct {
	CloudStatus  cloud.Snapshot `json:"cloud_status"`
	CanBeClaimed bool           `json:"can_be_claimed"`
	Success      *bool          `json:"success,omitempty"`
	Message      *string        `json:"message,omitempty"`
	KeyFilename  string         `json:"key_filename,omitempty"`
	Cmd          string         `json:"cmd,omitempty"`
	Help         string         `json:"help,omitempty"`
	Agent        Agent          `json:"agent"`
}

// PathSource yields the proof file location.
type PathSource interface {
	Path() string
}

type Builder struct {
	identity Identity
	platform Platform
	paths    PathSource
}

func NewBuilder(identity Identity, platform Platform, paths PathSource) *Builder {
	return &Builder{identity: identity, platform: platform, paths: paths}
}

// Build renders a report. outcome is nil when no claim call was made.
// Verification instructions are added while the host can still be claimed.
func (b *Builder) Build(snap cloud.Snapshot, outcome *Outcome, canBeClaimed bool, now time.Time) Report {
	r := Report{
		CloudStatus:  snap,
		CanBeClaimed: canBeClaimed,
		Agent:        Agent{Identity: b.identity, Now: now.Unix()},
	}

	if outcome != nil {
		success, message := outcome.Success, outcome.Message
		r.Success = &success
		r.Message = &message
	}

	if canBeClaimed {
		r.Help = b.platform.Help
		if path := b.paths.Path(); path != "" {
			r.KeyFilename, r.Cmd = b.platform.Command(path)
		}
	}
	return r
}
