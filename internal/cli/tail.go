package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cadre-oss/storyline/internal/feed"
)

var (
	tailURL    string
	tailBuffer int
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow a live agent feed and narrate each turn",
	Long: `Connect to a websocket that streams agent frames, buffer each turn's
agent_* frames and play the timeline when its final answer arrives.

Examples:
  storyline tail --url ws://localhost:8090/ws
  STORYLINE_FEED_URL=ws://agents/ws storyline tail`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVar(&tailURL, "url", "", "websocket URL (default: feed.url)")
	tailCmd.Flags().IntVar(&tailBuffer, "buffer", 0, "frames kept per turn (default: feed.buffer_size)")
}

func runTail(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := feed.OptionsFromConfig(a.cfg.Feed)
	if err != nil {
		return err
	}
	if tailURL != "" {
		opts.URL = tailURL
	}
	if tailBuffer > 0 {
		opts.BufferSize = tailBuffer
	}
	opts.Bus = a.bus
	opts.Metrics = a.metrics
	opts.Logger = a.logger

	archiveMgr, err := a.openArchive()
	if err != nil {
		return err
	}
	player, err := a.newPlayer(uuid.NewString(), archiveMgr)
	if err != nil {
		return err
	}
	defer player.Close()

	printer := newLivePrinter(a.renderer(), cmd.OutOrStdout())
	a.bus.Register(printer.Hook())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := feed.Dial(ctx, opts)
	if err != nil {
		return err
	}
	defer client.Close()
	printer.Printf("Following %s\n", opts.URL)

	n, err := feed.Follow(ctx, client, player)
	if err != nil && ctx.Err() == nil {
		return err
	}

	// Let the last turn finish playing unless interrupted.
	select {
	case <-player.Done():
	case <-ctx.Done():
	}
	printer.Printf("\nFeed closed after %d turns\n", n)
	return nil
}
