package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"agentcluster/cmd/agentcluster/ui"
	"agentcluster/internal/agents"
	"agentcluster/internal/campaign"
	"agentcluster/internal/journal"
	"agentcluster/internal/mcp"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List journaled runs, or show one run's log",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agent roster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printAgents(cmd.OutOrStdout(), ui.DefaultStyles(), agents.New().List())
		return nil
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the MCP server catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printServers(cmd.OutOrStdout(), ui.DefaultStyles(), mcp.Catalog())
		return nil
	},
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Journal.Enabled {
		return errors.New("the run journal is disabled (journal.enabled: false)")
	}
	store, err := journal.NewStore(journalPath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n%s\n\n", styles.Title.Render(rec.RunID), styles.PhaseBadge(rec.FinalPhase), rec.Requirement)
		for _, e := range rec.Entries {
			fmt.Fprintln(out, styles.FormatEntry(e))
		}
		return nil
	}

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	printHistory(out, styles, runs)
	return nil
}

func printHistory(out io.Writer, styles ui.Styles, runs []journal.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No runs journaled yet."))
		return
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %-12s %8s  %3d entries  %2d/%d lines  %s\n",
			styles.Muted.Render(r.FinishedAt.Local().Format(time.DateTime)),
			styles.PhaseBadge(r.FinalPhase),
			r.Duration().Round(time.Millisecond),
			r.EntryCount,
			r.Metrics.LinesProcessed, campaign.TotalLines,
			truncate(r.Requirement, 60),
		)
		fmt.Fprintf(out, "  %s\n", styles.Muted.Render(r.RunID))
	}
}

func printAgents(out io.Writer, styles ui.Styles, roster []agents.Agent) {
	for _, a := range roster {
		fmt.Fprintf(out, "%-18s %-28s %s\n", styles.Bold.Render(a.ID), a.Name, styles.Muted.Render(a.Specialty))
	}
}

func printServers(out io.Writer, styles ui.Styles, servers []mcp.Server) {
	for _, s := range servers {
		status := styles.Success.Render(string(s.Status))
		if s.Status != mcp.ServerStatusActive {
			status = styles.Muted.Render(string(s.Status))
		}
		fmt.Fprintf(out, "%-24s %s\n  %s\n", styles.Bold.Render(s.Name), status, strings.Join(s.Tools, ", "))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
