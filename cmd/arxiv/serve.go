package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `serve exposes search_papers, download_paper, list_papers and read_paper
as MCP tools, plus stored papers as arxiv://<id> resources.

The stdio transport (default) reads requests on stdin and writes
responses on stdout; logs go to stderr. The http transport serves the
streamable HTTP transport on --addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(v)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport: stdio or http")
	cmd.Flags().String("addr", ":8080", "Listen address for the http transport")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.JobTTL > 0 {
		go a.sweepJobs(ctx, a.cfg.JobTTL)
	}

	s := newMCPServer(a.tools(), version)
	log := a.log.With().Str("transport", a.cfg.Transport).Logger()
	log.Info().
		Str("storage_path", a.cfg.StoragePath).
		Int("workers", a.cfg.Workers).
		Msg("starting server")

	if a.cfg.Transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", a.cfg.Addr).Msg("listening")
		if err := httpServer.Start(a.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// sweepJobs forgets finished jobs older than ttl until ctx is done.
func (a *app) sweepJobs(ctx context.Context, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.tracker.Sweep(now.Add(-ttl)); n > 0 {
				a.log.Debug().Int("evicted", n).Msg("swept finished jobs")
			}
		}
	}
}
