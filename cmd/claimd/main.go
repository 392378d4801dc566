package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "claimd",
	Short: "Serve the node claim endpoint",
	Long: `claimd links this host to a cloud space.

The claim endpoint (GET /api/v2/claim) only acts on requests that carry the
current proof key, which is readable from a file on this host by an
administrator. Settings come from CLAIMD_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, keyCmd, statusCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
