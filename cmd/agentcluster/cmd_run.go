package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"agentcluster/cmd/agentcluster/ui"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/campaign"
	"agentcluster/internal/console"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errClusterClosed = errors.New("orchestrator closed before the run finished")

var runCmd = &cobra.Command{
	Use:   "run [requirement]",
	Short: "Run one build and stream its log",
	Long: `Starts a build for the requirement and prints every build log entry as it
is appended. Ctrl-C stops the run; the stopped run is still journaled.

Example:
  agentcluster run "Build a Gmail client with Salesforce sync"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

var intentCmd = &cobra.Command{
	Use:   "intent [prompt]",
	Short: "Compile a free-text instruction into tool calls",
	Long: `Routes the prompt through the GodCodeRX agent and prints the compiled
tool-call list, or the fallback message when no rule matches.

Example:
  agentcluster intent "create a new file and lint it"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIntent,
}

func runBuild(cmd *cobra.Command, args []string) error {
	requirement := strings.Join(args, " ")

	flush := initTelemetry(cmd.Context())
	defer flush()

	o, release, err := newCluster()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	updates := o.Subscribe(subCtx)

	if err := o.Start(requirement); err != nil {
		return err
	}
	runID := o.Snapshot().RunID
	logger.Info("build started", zap.String("run_id", runID), zap.String("requirement", requirement))

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	final, err := followRun(ctx, o.Stop, updates, runID, func(e buildlog.Entry) {
		fmt.Fprintln(out, styles.FormatEntry(e))
	})
	if err != nil {
		return err
	}

	printSummary(out, styles, final)
	if final.Phase == campaign.PhaseFailed {
		return fmt.Errorf("build %s failed", runID)
	}
	return nil
}

// followRun emits each new entry of run runID until it reaches a terminal
// phase. Cancelling ctx calls stop once and keeps following until the
// stopped snapshot arrives.
func followRun(ctx context.Context, stop func(), updates <-chan campaign.Snapshot, runID string, emit func(buildlog.Entry)) (campaign.Snapshot, error) {
	var (
		lastID uint64
		last   campaign.Snapshot
	)
	done := ctx.Done()
	for {
		select {
		case <-done:
			stop()
			done = nil
		case snap, ok := <-updates:
			if !ok {
				return last, errClusterClosed
			}
			if snap.RunID != runID {
				continue
			}
			for _, e := range snap.BuildLog {
				if e.ID > lastID {
					emit(e)
					lastID = e.ID
				}
			}
			last = snap
			if !snap.Running && snap.Phase.Terminal() {
				return snap, nil
			}
		}
	}
}

func printSummary(out io.Writer, styles ui.Styles, s campaign.Snapshot) {
	m := s.Metrics
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", styles.Title.Render("Final phase:"), styles.PhaseBadge(s.Phase))
	fmt.Fprintf(out, "%s %d/%d lines, %d errors corrected, %d validation cycles, %d tools generated\n",
		styles.Title.Render("Metrics:"),
		m.LinesProcessed, campaign.TotalLines, m.ErrorsCorrected, m.ValidationCycles, m.ToolsGenerated)
	for _, t := range s.DynamicTools {
		fmt.Fprintf(out, "  %s %s [%s]\n", styles.Tool.Render("tool"), t.Name, t.Status)
	}
}

func runIntent(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	if strings.HasPrefix(strings.TrimSpace(prompt), "/") {
		return fmt.Errorf("directives are only available in the console: %s", prompt)
	}

	o, release, err := newCluster()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := console.New(o, 80)
	printLines(cmd.OutOrStdout(), ui.DefaultStyles(), c.Execute(ctx, prompt))
	return ctx.Err()
}
