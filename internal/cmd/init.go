package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/spec"
	"github.com/beacon-works/beacon/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init [project-name]",
	Short: "Initialize beacon in the current repository",
	Long: `Create the .beacon directory with an empty task graph and write an
AGENTS.md describing the coordination workflow for agents joining the
project. Safe to re-run: existing files are left alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initNoAgentsMD bool

func init() {
	initCmd.Flags().BoolVar(&initNoAgentsMD, "no-agents-md", false, "skip writing AGENTS.md")
	rootCmd.AddCommand(initCmd)
}

// agentsTemplate is the workflow primer dropped into new repositories.
var agentsTemplate = template.Must(template.New("agents").Parse(`# Working on {{.Project}}

This repository is coordinated with beacon. Before starting work:

1. Join: ` + "`beacon agent join --name <your-name>`" + ` and export the
   returned id as BEACON_AGENT_ID.
2. Find work: ` + "`beacon task next`" + ` lists tasks whose dependencies are
   verified and that nobody holds a lease on.
3. Claim it: ` + "`beacon task claim <task-id>`" + `. The claim is a lease that
   expires after {{.TTLMinutes}} minutes; renew with
   ` + "`beacon task renew <task-id>`" + ` while you are still working.
4. Finish: ` + "`beacon task done <task-id>`" + `. A reviewer then runs
   ` + "`beacon task verify <task-id>`" + ` which unlocks dependent tasks.
5. Communicate: ` + "`beacon msg send`" + ` posts to another agent or to a
   task thread; ` + "`beacon msg inbox`" + ` reads your mail.

Check lock warnings when claiming: overlapping lock patterns mean
another active task touches the same files.
`))

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	projectName := filepath.Base(cwd)
	if len(args) == 1 {
		projectName = args[0]
	}

	ws, err := workspace.Init(cwd)
	if err != nil {
		return err
	}

	store := spec.NewStore(ws.SpecPath())
	if store.Exists() {
		fmt.Printf("beacon already initialized at %s\n", ws.BeaconDir())
	} else {
		if _, err := store.CreateDefault(projectName); err != nil {
			return err
		}
		fmt.Printf("initialized beacon for %q at %s\n", projectName, ws.BeaconDir())
	}

	if initNoAgentsMD {
		return nil
	}
	agentsPath := filepath.Join(ws.Root, "AGENTS.md")
	if _, err := os.Stat(agentsPath); err == nil {
		return nil
	}
	f, err := os.Create(agentsPath)
	if err != nil {
		return fmt.Errorf("write AGENTS.md: %w", err)
	}
	defer f.Close()
	data := struct {
		Project    string
		TTLMinutes int
	}{projectName, 15}
	if err := agentsTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("render AGENTS.md: %w", err)
	}
	fmt.Printf("wrote %s\n", agentsPath)
	return nil
}
