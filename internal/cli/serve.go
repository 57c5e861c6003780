package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cadre-oss/storyline/internal/server"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storyline HTTP server",
	Long: `Start an HTTP server that builds timelines, plays session turns and
streams playback events to browsers over server-sent events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "host to bind to")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	archiveMgr, err := a.openArchive()
	if err != nil {
		return err
	}

	srv, err := server.New(a.cfg, archiveMgr, a.bus, a.metrics, a.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	host, port := a.cfg.Server.Host, a.cfg.Server.Port
	if cmd.Flags().Changed("host") || host == "" {
		host = serveHost
	}
	if cmd.Flags().Changed("port") || port == 0 {
		port = servePort
	}
	return srv.Start(ctx, fmt.Sprintf("%s:%d", host, port))
}
