package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/render"
	"github.com/beacon-works/beacon/internal/spec"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect and manage the task graph",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskNextCmd = &cobra.Command{
	Use:   "next",
	Short: "List claimable tasks nobody holds a lease on",
	RunE:  runTaskNext,
}

var (
	taskListStatus  string
	taskListLabel   string
	taskListDeleted bool
	taskListLimit   int
	taskNextLimit   int
)

func init() {
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "filter by status")
	taskListCmd.Flags().StringVar(&taskListLabel, "label", "", "filter by label")
	taskListCmd.Flags().BoolVar(&taskListDeleted, "deleted", false, "include deleted tasks")
	taskListCmd.Flags().IntVar(&taskListLimit, "limit", 0, "show at most this many tasks")
	taskNextCmd.Flags().IntVar(&taskNextLimit, "limit", 0, "show at most this many tasks")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskNextCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	doc, err := coord.Specs().Load()
	if err != nil {
		return err
	}

	var filter spec.Status
	if taskListStatus != "" {
		filter, err = spec.ParseStatus(taskListStatus)
		if err != nil {
			return err
		}
	}

	ids := make([]string, 0, len(doc.Tasks))
	for id := range doc.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var tasks []*spec.Task
	for _, id := range ids {
		task := doc.Tasks[id]
		if task.Status == spec.StatusDeleted && !taskListDeleted {
			continue
		}
		if filter != "" && task.Status != filter {
			continue
		}
		if taskListLabel != "" && !task.HasLabel(taskListLabel) {
			continue
		}
		tasks = append(tasks, task)
	}
	if taskListLimit > 0 && len(tasks) > taskListLimit {
		tasks = tasks[:taskListLimit]
	}

	leases, err := coord.Runtime().ActiveLeases()
	if err != nil {
		return err
	}
	holders := make(map[string]string, len(leases))
	for _, l := range leases {
		holders[l.TaskID] = l.AgentID
	}

	if jsonOutput {
		out := make([]taskJSON, 0, len(tasks))
		for _, task := range tasks {
			j := toTaskJSON(task)
			j.LeasedBy = holders[task.ID]
			out = append(out, j)
		}
		return printJSON(out)
	}

	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			task.ID,
			string(task.Status),
			strconv.Itoa(task.Priority),
			strings.Join(task.DependsOn, ","),
			holders[task.ID],
			task.Title,
		})
	}
	fmt.Print(render.Table([]string{"ID", "STATUS", "PRI", "DEPS", "LEASE", "TITLE"}, rows))
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	doc, err := coord.Specs().Load()
	if err != nil {
		return err
	}
	task := doc.GetTask(args[0])
	if task == nil {
		return fmt.Errorf("task %s not found", args[0])
	}

	if jsonOutput {
		return printJSON(toTaskJSON(task))
	}

	claimable := false
	for _, t := range doc.ClaimableTasks() {
		if t.ID == task.ID {
			claimable = true
			break
		}
	}

	fmt.Printf("%s  %s\n", render.Header(task.ID), task.Title)
	fmt.Println(render.KeyValue("status", render.Status(task.Status)))
	fmt.Println(render.KeyValue("claimable", strconv.FormatBool(claimable)))
	fmt.Println(render.KeyValue("priority", strconv.Itoa(task.Priority)))
	if len(task.DependsOn) > 0 {
		fmt.Println(render.KeyValue("depends_on", strings.Join(task.DependsOn, ", ")))
	}
	if len(task.Labels) > 0 {
		fmt.Println(render.KeyValue("labels", strings.Join(task.Labels, ", ")))
	}
	if len(task.Locks) > 0 {
		fmt.Println(render.KeyValue("locks", strings.Join(task.Locks, ", ")))
	}
	if task.Description != "" {
		fmt.Printf("\n%s\n", task.Description)
	}
	if len(task.AcceptanceCriteria) > 0 {
		fmt.Printf("\n%s\n", render.Header("Acceptance criteria"))
		for _, ac := range task.AcceptanceCriteria {
			fmt.Printf("  - %s\n", ac)
		}
	}
	if deps := doc.Dependents(task.ID); len(deps) > 0 {
		fmt.Printf("\n%s\n", render.KeyValue("dependents", strings.Join(deps, ", ")))
	}

	lease, err := coord.Runtime().ActiveLease(task.ID)
	if err != nil {
		return err
	}
	if lease != nil {
		remaining := lease.Remaining(time.Now().UTC()).Round(time.Second)
		fmt.Printf("\n%s\n", render.KeyValue("leased_by", fmt.Sprintf("%s (%s, %s left)", lease.AgentID, lease.ID, remaining)))
	}

	if missing := doc.Validate().MissingDeps[task.ID]; len(missing) > 0 {
		fmt.Println(render.Warning(fmt.Sprintf("missing dependencies: %s", strings.Join(missing, ", "))))
	}
	return nil
}

func runTaskNext(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	open, err := coord.ClaimableTasks()
	if err != nil {
		return err
	}
	if taskNextLimit > 0 && len(open) > taskNextLimit {
		open = open[:taskNextLimit]
	}

	if jsonOutput {
		out := make([]taskJSON, 0, len(open))
		for _, task := range open {
			out = append(out, toTaskJSON(task))
		}
		return printJSON(out)
	}

	if len(open) == 0 {
		fmt.Println("no claimable tasks")
		return nil
	}
	rows := make([][]string, 0, len(open))
	for _, task := range open {
		rows = append(rows, []string{task.ID, strconv.Itoa(task.Priority), task.Title})
	}
	fmt.Print(render.Table([]string{"ID", "PRI", "TITLE"}, rows))
	return nil
}
