package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/lockcheck"
	"github.com/beacon-works/beacon/internal/render"
	"github.com/beacon-works/beacon/internal/spec"
)

var taskGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dependency graph in topological order",
	RunE:  runTaskGraph,
}

var taskValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the graph for missing dependencies, cycles, and lock overlaps",
	RunE:  runTaskValidate,
}

func init() {
	taskCmd.AddCommand(taskGraphCmd)
	taskCmd.AddCommand(taskValidateCmd)
}

func runTaskGraph(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	doc, err := coord.Specs().Load()
	if err != nil {
		return err
	}
	order, err := doc.TopologicalSort()
	if err != nil {
		return err
	}

	if jsonOutput {
		type node struct {
			ID         string   `json:"id"`
			Status     string   `json:"status"`
			DependsOn  []string `json:"depends_on,omitempty"`
			Dependents []string `json:"dependents,omitempty"`
		}
		nodes := make([]node, 0, len(order))
		for _, id := range order {
			task := doc.GetTask(id)
			nodes = append(nodes, node{
				ID:         id,
				Status:     task.Status.String(),
				DependsOn:  task.DependsOn,
				Dependents: doc.Dependents(id),
			})
		}
		return printJSON(nodes)
	}

	for _, id := range order {
		task := doc.GetTask(id)
		deps := ""
		if len(task.DependsOn) > 0 {
			deps = render.Dim(" <- " + strings.Join(task.DependsOn, ", "))
		}
		fmt.Printf("%s [%s] %s%s\n", id, render.Status(task.Status), task.Title, deps)
	}
	return nil
}

func runTaskValidate(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	doc, err := coord.Specs().Load()
	if err != nil {
		return err
	}
	result := doc.Validate()

	var live []*spec.Task
	for _, task := range doc.Tasks {
		if task.Status != spec.StatusDeleted {
			live = append(live, task)
		}
	}
	overlaps := lockcheck.Check(live)

	if jsonOutput {
		return printJSON(map[string]any{
			"ok":            result.OK(),
			"missing_deps":  result.MissingDeps,
			"cycles":        result.Cycles,
			"lock_overlaps": overlaps,
		})
	}

	if result.OK() && len(overlaps) == 0 {
		fmt.Println("graph is valid")
		return nil
	}
	for id, missing := range result.MissingDeps {
		fmt.Printf("%s references missing dependencies: %s\n", id, strings.Join(missing, ", "))
	}
	for _, cycle := range result.Cycles {
		fmt.Printf("dependency cycle: %s\n", strings.Join(cycle, " -> "))
	}
	for _, o := range overlaps {
		fmt.Println(render.Warning(fmt.Sprintf("%s lock %q overlaps %s lock %q", o.TaskA, o.PatternA, o.TaskB, o.PatternB)))
	}
	if !result.OK() {
		return fmt.Errorf("graph validation failed")
	}
	return nil
}
