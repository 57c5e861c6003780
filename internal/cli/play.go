package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	playQuery   string
	playSession string
	playNoSave  bool
)

var playCmd = &cobra.Command{
	Use:   "play [input.json]",
	Short: "Play a turn's timeline in the terminal",
	Long: `Play one turn the way a chat UI would: the status caption, then each
step in turn with the configured delays, then the final caption. The played
turn is recorded in the archive.

Examples:
  storyline play turn.json --query "cuantos movimientos tengo"
  storyline play turn.json --no-save`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVarP(&playQuery, "query", "q", "", "the user query that started the turn")
	playCmd.Flags().StringVar(&playSession, "session", "", "session ID (default: random)")
	playCmd.Flags().BoolVar(&playNoSave, "no-save", false, "do not record the turn in the archive")
}

func runPlay(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	if !playNoSave {
		if _, err := a.openArchive(); err != nil {
			return err
		}
	}

	sessionID := playSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	player, err := a.newPlayer(sessionID, a.archive)
	if err != nil {
		return err
	}
	defer player.Close()

	printer := newLivePrinter(a.renderer(), cmd.OutOrStdout())
	a.bus.Register(printer.Hook())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	turnID, err := player.StartTurn(playQuery)
	if err != nil {
		return err
	}
	if _, err := player.Deliver(in); err != nil {
		return err
	}

	select {
	case <-printer.Finished():
	case <-ctx.Done():
		return ctx.Err()
	}

	if !playNoSave {
		printer.Printf("\nRecorded turn %s\n", turnID)
	}
	return nil
}
