package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/spec"
)

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	RunE:  runTaskCreate,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update task fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Soft-delete a task",
	Long: `Mark a task deleted. A task with live dependents is refused unless
--cascade is given, which deletes the whole dependent closure too.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskDelete,
}

var (
	createTitle    string
	createDesc     string
	createID       string
	createPriority int
	createStatus   string
	createDeps     []string
	createLabels   []string
	createLocks    []string
	createCriteria []string

	updateTitle    string
	updateDesc     string
	updateStatus   string
	updatePriority int
	updateDeps     []string
	updateLabels   []string
	updateLocks    []string
	updateCriteria []string

	deleteCascade bool
)

func init() {
	taskCreateCmd.Flags().StringVar(&createTitle, "title", "", "task title (required)")
	taskCreateCmd.Flags().StringVar(&createDesc, "description", "", "task description")
	taskCreateCmd.Flags().StringVar(&createID, "id", "", "explicit task id (default autogenerated)")
	taskCreateCmd.Flags().IntVar(&createPriority, "priority", spec.DefaultPriority, "priority, lower is more urgent")
	taskCreateCmd.Flags().StringVar(&createStatus, "status", "", "initial status (default todo)")
	taskCreateCmd.Flags().StringSliceVar(&createDeps, "depends-on", nil, "dependency task ids")
	taskCreateCmd.Flags().StringSliceVar(&createLabels, "label", nil, "labels")
	taskCreateCmd.Flags().StringSliceVar(&createLocks, "lock", nil, "lock path patterns")
	taskCreateCmd.Flags().StringArrayVar(&createCriteria, "criterion", nil, "acceptance criterion (repeatable)")
	_ = taskCreateCmd.MarkFlagRequired("title")

	taskUpdateCmd.Flags().StringVar(&updateTitle, "title", "", "new title")
	taskUpdateCmd.Flags().StringVar(&updateDesc, "description", "", "new description")
	taskUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "new status")
	taskUpdateCmd.Flags().IntVar(&updatePriority, "priority", 0, "new priority")
	taskUpdateCmd.Flags().StringSliceVar(&updateDeps, "depends-on", nil, "replacement dependency list")
	taskUpdateCmd.Flags().StringSliceVar(&updateLabels, "label", nil, "replacement label list")
	taskUpdateCmd.Flags().StringSliceVar(&updateLocks, "lock", nil, "replacement lock list")
	taskUpdateCmd.Flags().StringArrayVar(&updateCriteria, "criterion", nil, "replacement acceptance criteria")

	taskDeleteCmd.Flags().BoolVar(&deleteCascade, "cascade", false, "also delete all dependent tasks")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDeleteCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	priority := createPriority
	task, err := coord.CreateTask(spec.CreateTaskParams{
		ID:                 createID,
		Title:              createTitle,
		Description:        createDesc,
		AcceptanceCriteria: createCriteria,
		DependsOn:          createDeps,
		Labels:             createLabels,
		Locks:              createLocks,
		Priority:           &priority,
		Status:             createStatus,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(toTaskJSON(task))
	}
	fmt.Printf("created %s: %s\n", task.ID, task.Title)
	return nil
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	// Only explicitly passed flags become updates.
	var p spec.UpdateTaskParams
	flags := cmd.Flags()
	if flags.Changed("title") {
		p.Title = &updateTitle
	}
	if flags.Changed("description") {
		p.Description = &updateDesc
	}
	if flags.Changed("status") {
		p.Status = &updateStatus
	}
	if flags.Changed("priority") {
		p.Priority = &updatePriority
	}
	if flags.Changed("depends-on") {
		p.DependsOn = &updateDeps
	}
	if flags.Changed("label") {
		p.Labels = &updateLabels
	}
	if flags.Changed("lock") {
		p.Locks = &updateLocks
	}
	if flags.Changed("criterion") {
		p.AcceptanceCriteria = &updateCriteria
	}

	task, err := coord.UpdateTask(args[0], p)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(toTaskJSON(task))
	}
	fmt.Printf("updated %s\n", task.ID)
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	deleted, err := coord.DeleteTask(args[0], deleteCascade)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"deleted": deleted})
	}
	fmt.Printf("deleted %s\n", strings.Join(deleted, ", "))
	return nil
}
