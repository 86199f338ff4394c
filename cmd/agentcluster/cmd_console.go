package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"agentcluster/cmd/agentcluster/ui"
	"agentcluster/internal/agents"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/campaign"
	"agentcluster/internal/console"

	"github.com/spf13/cobra"
)

var consoleFollow bool

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console for builds and intents",
	Long: `Reads one line at a time. Lines starting with / are directives
(/help, /status, /build, /stop, /clear); anything else is compiled as an
intent. /exit or end of input leaves the console.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().BoolVar(&consoleFollow, "follow", true, "Print build log entries as they arrive")
}

func runConsole(cmd *cobra.Command, args []string) error {
	o, release, err := newCluster()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	styles := ui.DefaultStyles()
	out := &lockedWriter{w: cmd.OutOrStdout()}
	c := console.New(o, 80)

	if consoleFollow {
		go followLog(ctx, o.Subscribe(ctx), func(e buildlog.Entry) {
			// intent traffic is already reported through the transcript
			if e.AgentID == agents.GodCodeRX {
				return
			}
			fmt.Fprintln(out, styles.FormatEntry(e))
		})
	}

	fmt.Fprintln(out, styles.Header.Render(" agentcluster console ")+styles.Muted.Render(" /help for directives"))
	return consoleLoop(ctx, cmd.InOrStdin(), out, styles, c)
}

func consoleLoop(ctx context.Context, in io.Reader, out io.Writer, styles ui.Styles, c *console.Console) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, styles.Muted.Render("agentcluster> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			fmt.Fprint(out, "\033[H\033[2J")
		}

		lines := c.Execute(ctx, line)
		if len(lines) > 0 {
			// first line echoes the input
			lines = lines[1:]
		}
		printLines(out, styles, lines)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// followLog emits entries with ids above the highest seen so far.
func followLog(ctx context.Context, updates <-chan campaign.Snapshot, emit func(buildlog.Entry)) {
	var lastID uint64
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			for _, e := range snap.BuildLog {
				if e.ID <= lastID {
					continue
				}
				lastID = e.ID
				// the initial snapshot only seeds the cursor
				if !first {
					emit(e)
				}
			}
			first = false
		}
	}
}

func printLines(out io.Writer, styles ui.Styles, lines []console.Line) {
	for _, l := range lines {
		var text string
		switch l.Role {
		case console.RoleSuccess:
			text = styles.Success.Render(l.Text)
		case console.RoleError:
			text = styles.Error.Render(l.Text)
		case console.RoleUser:
			text = styles.Bold.Render(l.Text)
		default:
			text = l.Text
		}
		fmt.Fprintln(out, text)
	}
}

// lockedWriter serialises the prompt loop with the log follower.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
