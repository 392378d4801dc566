package cloud

import "time"

// Snapshot is the evaluated status plus the fields reported to clients.
type Snapshot struct {
	Status       Status `json:"status"`
	CanBeClaimed bool   `json:"-"`
	Since        int64  `json:"since"`
	Age          int64  `json:"age"`
	URL          string `json:"url,omitempty"`
	Reason       string `json:"reason,omitempty"`
	ClaimID      string `json:"claim_id,omitempty"`
	NextCheck    int64  `json:"next_check,omitempty"`
}

type Evaluator struct {
	source StateSource
}

func NewEvaluator(source StateSource) *Evaluator {
	return &Evaluator{source: source}
}

// Evaluate reads the source once and projects it at now.
func (e *Evaluator) Evaluate(now time.Time) Snapshot {
	st := e.source.CloudState()
	status := Compute(st)

	snap := Snapshot{
		Status:       status,
		CanBeClaimed: status.CanBeClaimed(),
		URL:          st.URL,
		Reason:       st.Reason,
		ClaimID:      st.ClaimID,
	}
	if !st.Since.IsZero() {
		snap.Since = st.Since.Unix()
		if age := now.Sub(st.Since); age > 0 {
			snap.Age = int64(age / time.Second)
		}
	}
	if !st.NextCheck.IsZero() {
		snap.NextCheck = st.NextCheck.Unix()
	}
	return snap
}
