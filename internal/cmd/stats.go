package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/render"
	"github.com/beacon-works/beacon/internal/spec"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show project progress and coordination activity",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	stats, err := coord.CollectStats()
	if err != nil {
		return err
	}

	if jsonOutput {
		counts := make(map[string]int, len(stats.TaskCounts))
		for status, n := range stats.TaskCounts {
			counts[status.String()] = n
		}
		return printJSON(map[string]any{
			"project":       stats.Project,
			"task_counts":   counts,
			"claimable":     stats.Claimable,
			"active_leases": stats.ActiveLeases,
			"agents":        stats.Agents,
			"messages":      stats.Messages,
		})
	}

	fmt.Println(render.Header(stats.Project))
	fmt.Println(render.Rule(50))
	fmt.Println(stats.Summary)
	fmt.Println()
	for _, status := range []spec.Status{spec.StatusVerified, spec.StatusDone, spec.StatusReady, spec.StatusTodo, spec.StatusBlocked, spec.StatusDeleted} {
		if n := stats.TaskCounts[status]; n > 0 {
			fmt.Printf("  %s %d\n", render.Status(status), n)
		}
	}
	fmt.Println()
	fmt.Println(render.KeyValue("claimable now", fmt.Sprintf("%d", stats.Claimable)))
	fmt.Println(render.KeyValue("active leases", fmt.Sprintf("%d", stats.ActiveLeases)))
	fmt.Println(render.KeyValue("agents", fmt.Sprintf("%d", stats.Agents)))
	fmt.Println(render.KeyValue("messages", fmt.Sprintf("%d", stats.Messages)))
	return nil
}
