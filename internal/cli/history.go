package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadre-oss/storyline/internal/archive"
	"github.com/cadre-oss/storyline/internal/timeline"
)

var (
	historyLimit     int
	historySession   string
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List played turns",
	Long: `List turns recorded in the archive, newest first.

Examples:
  storyline history                   # Recent turns
  storyline history --session abc123  # One session, oldest first
  storyline history show <turn-id>    # A turn's timeline
  storyline history prune --older-than 720h`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <turn-id>",
	Short: "Show a recorded turn and its timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete finished turns older than a duration",
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of turns to list")
	historyCmd.Flags().StringVar(&historySession, "session", "", "list one session's turns")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "age of turns to delete")

	historyShowCmd.ValidArgsFunction = completeTurnIDs
	historyCmd.RegisterFlagCompletionFunc("session", completeSessionIDs)

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.openArchive()
	if err != nil {
		return err
	}

	var turns []*archive.TurnRecord
	if historySession != "" {
		turns, err = mgr.SessionTurns(historySession)
	} else {
		turns, err = mgr.ListTurns(historyLimit)
	}
	if err != nil {
		return fmt.Errorf("failed to list turns: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(turns) == 0 {
		fmt.Fprintln(out, "No turns found.")
		return nil
	}

	fmt.Fprintln(out, "Recent Turns:")
	fmt.Fprintln(out, "-------------")
	for _, t := range turns {
		printTurnSummary(out, t)
		fmt.Fprintln(out)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.openArchive()
	if err != nil {
		return err
	}
	t, err := mgr.GetTurn(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printTurnSummary(out, t)
	if t.Answer != "" {
		fmt.Fprintf(out, "   Answer: %s\n", t.Answer)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, a.renderer().Result(timeline.Result{Events: t.Events, Source: timeline.Source(t.Source)}))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.openArchive()
	if err != nil {
		return err
	}
	n, err := mgr.Prune(time.Now().Add(-historyOlderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d turns.\n", n)
	return nil
}

func printTurnSummary(w io.Writer, t *archive.TurnRecord) {
	fmt.Fprintf(w, "%s %s  %q  (%s)\n", getStatusIcon(t.Status), shortID(t.ID), t.Query, t.Status)
	fmt.Fprintf(w, "   Session: %s\n", t.SessionID)
	fmt.Fprintf(w, "   Started: %s\n", t.StartedAt.Format(time.RFC3339))
	if t.Done() {
		fmt.Fprintf(w, "   Finished: %s (duration: %s)\n",
			t.CompletedAt.Format(time.RFC3339),
			t.Duration().Round(time.Millisecond),
		)
	}
	if t.Source != "" {
		fmt.Fprintf(w, "   Timeline: %d steps from %s\n", len(t.Events), t.Source)
	}
}

func getStatusIcon(status archive.TurnStatus) string {
	switch status {
	case archive.TurnPlaying:
		return "◐"
	case archive.TurnCompleted:
		return "●"
	case archive.TurnSuperseded:
		return "◌"
	default:
		return "?"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
