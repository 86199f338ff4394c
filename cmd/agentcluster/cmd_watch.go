package main

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"agentcluster/cmd/agentcluster/ui"
	"agentcluster/internal/campaign"
	"agentcluster/internal/server"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchRemote string

var watchCmd = &cobra.Command{
	Use:   "watch [requirement]",
	Short: "Live dashboard for a build",
	Long: `Without --remote, starts a build for the requirement in-process and shows
the dashboard. With --remote, follows the build running on an agentcluster
server instead; s stops the remote build.

Examples:
  agentcluster watch "Build an e-commerce platform"
  agentcluster watch --remote http://127.0.0.1:8420`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRemote, "remote", "", "Base URL of a running agentcluster server")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		updates <-chan campaign.Snapshot
		onStop  func()
	)

	if watchRemote != "" {
		client := server.NewClient(watchRemote)
		var err error
		if updates, err = client.Stream(ctx); err != nil {
			return err
		}
		onStop = func() {
			if err := client.StopBuild(ctx); err != nil {
				logger.Warn("remote stop failed", zap.Error(err))
			}
		}
	} else {
		if len(args) == 0 {
			return errors.New("a requirement is needed unless --remote is set")
		}
		o, release, err := newCluster()
		if err != nil {
			return err
		}
		defer release()

		updates = o.Subscribe(ctx)
		if err := o.Start(strings.Join(args, " ")); err != nil {
			return err
		}
		onStop = o.Stop
	}

	p := tea.NewProgram(ui.NewDashboard(updates, onStop), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
