package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stake-plus/claimd/src/claim"
	"github.com/stake-plus/claimd/src/config"
	"github.com/stake-plus/claimd/src/prooftoken"
	"github.com/stake-plus/claimd/src/shared/fsx"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Show where the proof key lives and how to read it",
	Long: `Prints the proof key file of the running service and the command an
administrator runs to read it. The key itself is not rotated.`,
	Args: cobra.NoArgs,
	RunE: runKey,
}

func runKey(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path := fsx.StatePath(cfg.StateDir, prooftoken.Filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no proof key yet, is claimd serve running? (%w)", err)
	}

	platform := claim.PlatformFor(cfg.Platform)
	display, read := platform.Command(path)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key file: %s\n", display)
	fmt.Fprintf(out, "read it with: %s\n", read)
	return nil
}
