package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Expire leases held by unregistered agents",
	Long: `Force-expire live leases whose holder is not in the agent registry,
typically left behind by crashed agents or a wiped registry. Expired
rows are kept for audit.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	n, err := coord.CleanupOrphans()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]int{"expired": n})
	}
	if n == 0 {
		fmt.Println("no orphaned leases")
	} else {
		fmt.Printf("expired %d orphaned lease(s)\n", n)
	}
	return nil
}
