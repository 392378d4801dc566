package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stake-plus/claimd/src/cloud"
	"github.com/stake-plus/claimd/src/config"
	"github.com/stake-plus/claimd/src/data"
)

var statusAttempts int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted claim status as JSON",
	Long: `Reads the claim state from the database. Connectivity is only known to a
running service, so a claimed host shows as offline here.

With --attempts N the last N audited claim attempts are listed as well.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusAttempts, "attempts", 0, "Also list the N most recent claim attempts")
}

type attemptView struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Origin  string    `json:"origin,omitempty"`
	KeyFP   string    `json:"key_fp,omitempty"`
	URL     string    `json:"url,omitempty"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type statusView struct {
	cloud.Snapshot
	CanBeClaimed bool          `json:"can_be_claimed"`
	Attempts     []attemptView `json:"attempts,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := data.Open(cfg.DatabaseDSN, cfg.StateDir, zap.NewNop())
	if err != nil {
		return err
	}
	st, err := data.NewClaimStore(db).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load claim state: %w", err)
	}

	snap := cloud.NewEvaluator(st).Evaluate(time.Now())
	view := statusView{Snapshot: snap, CanBeClaimed: snap.CanBeClaimed}

	if statusAttempts > 0 {
		rows, err := data.RecentAttempts(cmd.Context(), db, statusAttempts)
		if err != nil {
			return err
		}
		for _, r := range rows {
			view.Attempts = append(view.Attempts, attemptView{
				ID:      r.EventID,
				Kind:    r.Kind,
				Origin:  r.Origin,
				KeyFP:   r.KeyFingerprint,
				URL:     r.URL,
				Status:  r.Status,
				Message: r.Message,
				At:      r.CreatedAt,
			})
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
