package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/render"
)

var taskClaimCmd = &cobra.Command{
	Use:   "claim [task-id]",
	Short: "Claim a task with a time-bounded lease",
	Long: `Lease a task for exclusive work. Without a task id the highest
priority claimable task is picked. Lock-pattern overlaps with other
actively leased tasks are printed as warnings but never block the
claim.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaskClaim,
}

var taskRenewCmd = &cobra.Command{
	Use:   "renew <task-id|lease-id>",
	Short: "Extend a live lease",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRenew,
}

var taskReleaseCmd = &cobra.Command{
	Use:   "release <task-id>",
	Short: "Give up a lease without finishing the task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRelease,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task done and release its lease",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskVerifyCmd = &cobra.Command{
	Use:   "verify <task-id>",
	Short: "Confirm a done task, unlocking its dependents",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskVerify,
}

var (
	claimAgent      string
	claimTTLSeconds int
	claimForce      bool
)

func init() {
	for _, c := range []*cobra.Command{taskClaimCmd, taskRenewCmd, taskReleaseCmd, taskDoneCmd, taskVerifyCmd} {
		c.Flags().StringVar(&claimAgent, "agent", "", "acting agent id (default $BEACON_AGENT_ID)")
	}
	taskClaimCmd.Flags().IntVar(&claimTTLSeconds, "ttl", 0, "lease ttl in seconds (default from config, clamped)")
	taskClaimCmd.Flags().BoolVar(&claimForce, "force", false, "skip the lock-pattern overlap check")
	taskRenewCmd.Flags().IntVar(&claimTTLSeconds, "ttl", 0, "new ttl in seconds (default from config, clamped)")

	taskCmd.AddCommand(taskClaimCmd)
	taskCmd.AddCommand(taskRenewCmd)
	taskCmd.AddCommand(taskReleaseCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskVerifyCmd)
}

func claimTTL() time.Duration {
	return time.Duration(claimTTLSeconds) * time.Second
}

func runTaskClaim(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(claimAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	taskID := ""
	if len(args) == 1 {
		taskID = args[0]
	}

	result, err := coord.Claim(taskID, agentID, claimTTL(), claimForce)
	if err != nil {
		return err
	}

	if jsonOutput {
		warnings := make([]map[string]string, 0, len(result.LockWarnings))
		for _, w := range result.LockWarnings {
			warnings = append(warnings, map[string]string{
				"task": w.TaskB, "pattern": w.PatternA, "other_pattern": w.PatternB,
			})
		}
		return printJSON(map[string]any{
			"task":          toTaskJSON(result.Task),
			"lease":         toLeaseJSON(result.Lease),
			"lock_warnings": warnings,
		})
	}

	remaining := result.Lease.Remaining(time.Now().UTC()).Round(time.Second)
	fmt.Printf("claimed %s: %s\n", result.Task.ID, result.Task.Title)
	fmt.Printf("lease %s expires in %s\n", result.Lease.ID, remaining)
	for _, w := range result.LockWarnings {
		fmt.Println(render.Warning(fmt.Sprintf("lock %q overlaps %q held by active task %s", w.PatternA, w.PatternB, w.TaskB)))
	}
	return nil
}

func runTaskRenew(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(claimAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	lease, err := coord.Renew(args[0], agentID, claimTTL())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(toLeaseJSON(lease))
	}
	remaining := lease.Remaining(time.Now().UTC()).Round(time.Second)
	fmt.Printf("renewed %s on %s, expires in %s\n", lease.ID, lease.TaskID, remaining)
	return nil
}

func runTaskRelease(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(claimAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	if err := coord.Release(args[0], agentID); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]string{"released": args[0]})
	}
	fmt.Printf("released %s\n", args[0])
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(claimAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	result, err := coord.MarkDone(args[0], agentID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{
			"task":     toTaskJSON(result.Task),
			"warnings": result.Warnings,
		})
	}
	fmt.Printf("%s is done, awaiting verification\n", result.Task.ID)
	for _, w := range result.Warnings {
		fmt.Println(render.Warning(w))
	}
	return nil
}

func runTaskVerify(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(claimAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	result, err := coord.Verify(args[0], agentID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{
			"task":      toTaskJSON(result.Task),
			"unblocked": result.Unblocked,
		})
	}
	fmt.Printf("%s verified\n", result.Task.ID)
	if len(result.Unblocked) > 0 {
		fmt.Printf("unblocked: %s\n", strings.Join(result.Unblocked, ", "))
	}
	return nil
}
