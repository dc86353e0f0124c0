// cmd/negotiator/serve.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/negotiator/internal/profile"
	"github.com/jason-s-yu/negotiator/internal/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveProfile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a negotiation party over websocket",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveProfile, "profile", "", "Preference profile (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	profilePath := cfg.Server.Profile
	if serveProfile != "" {
		profilePath = serveProfile
	}

	space, err := profile.LoadSpace(profilePath)
	if err != nil {
		return err
	}
	params, err := cfg.Strategy.Params()
	if err != nil {
		return err
	}

	srv := &server.Server{
		Space:       space,
		Params:      params,
		Secret:      []byte(cfg.Server.JWTSecret),
		ReadTimeout: cfg.GetTurnTimeout(),
		Seed:        cfg.Session.Seed,
		Deadline:    cfg.GetDeadline(),
	}
	if len(srv.Secret) == 0 {
		log.Warn("JWT_SECRET not set; negotiation endpoint is unauthenticated.")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Serving profile %s on %s.", profilePath, addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
