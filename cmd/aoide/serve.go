package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/aoide"
	httpadapter "github.com/aretw0/aoide/pkg/adapters/http"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/editor"
	"github.com/aretw0/aoide/pkg/ports"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the IDE backend",
	Long:  `Serves the process API, projects, editor groups, a status feed and a log event stream over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// The stream manager logs through the client logger, which exists
		// only after New; nothing is recorded before then.
		var streams *httpadapter.StreamManager
		client, err := aoide.New(cfg, aoide.WithSink(ports.EventSinkFunc(func(ctx context.Context, e domain.LogEvent) {
			streams.Record(ctx, e)
		})))
		if err != nil {
			return err
		}
		defer client.Close()
		streams = httpadapter.NewStreamManager(client.Logger)

		server := httpadapter.NewServer(client.Coordinator,
			httpadapter.WithProjects(client.Projects),
			httpadapter.WithEditors(editor.NewRegistry()),
			httpadapter.WithStreams(streams),
			httpadapter.WithStatus(func(ctx context.Context) httpadapter.Status {
				return httpadapter.Status(client.Status(ctx))
			}),
			httpadapter.WithGatherer(client.Registry),
			httpadapter.WithLogger(client.Logger),
		)

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serverErrors := make(chan error, 1)
		go func() {
			client.Logger.Info("aoide backend listening", "addr", addr, "endpoint", cfg.EndpointURL)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			client.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				client.Logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
