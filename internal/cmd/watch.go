package cmd

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/render"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the task graph and report changes",
	Long: `Follow the spec document and print a fresh summary whenever another
process writes it. Saves are atomic renames, so the watcher observes
whole documents only, never partial writes.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// debounce coalesces the create+write event burst an atomic rename emits.
const watchDebounce = 200 * time.Millisecond

func runWatch(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: the rename replaces the inode.
	specPath := coord.Specs().Path()
	if err := watcher.Add(filepath.Dir(specPath)); err != nil {
		return err
	}

	printSummary := func() {
		doc, err := coord.Specs().Load()
		if err != nil {
			fmt.Println(render.Warning(err.Error()))
			return
		}
		result := doc.Validate()
		line := fmt.Sprintf("%s, %d claimable", doc.Summary(), len(doc.ClaimableTasks()))
		if !result.OK() {
			line += fmt.Sprintf("  (%d missing deps, %d cycles)", len(result.MissingDeps), len(result.Cycles))
		}
		fmt.Printf("%s %s\n", render.Dim(time.Now().Format("15:04:05")), line)
	}
	printSummary()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != specPath {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			printSummary()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Println(render.Warning(err.Error()))
		}
	}
}
