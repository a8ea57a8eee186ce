package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	qontak "github.com/agentdesk/qontak-console"
	"github.com/spf13/cobra"
)

var (
	serveListen string
	serveLogin  string
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (default from console.listen_addr)")
	serveCmd.Flags().StringVar(&serveLogin, "login", "", "Log in as this agent email at startup")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent console server",
	Long: `Run the console: an HTTP JSON API plus a WebSocket snapshot stream at /api/stream.

Rooms and the selected conversation are polled from Qontak while an agent is
logged in. When the API cannot be reached the console switches to demo data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		gw, err := newGateway(cfg)
		if err != nil {
			return err
		}
		interval, err := pollInterval(cfg)
		if err != nil {
			return err
		}
		addr := valueOrDefault(serveListen, listenAddr(cfg))

		store := qontak.NewStore(gw,
			qontak.WithLogger(logger.With().Str("component", "store").Logger()),
			qontak.WithSenderName(cfg.Console.AgentName),
		)
		poller := qontak.NewPoller(store, interval,
			qontak.WithPollerLogger(logger.With().Str("component", "poller").Logger()),
		)
		console := qontak.NewConsole(store, poller, logger)
		defer console.Logout()

		store.On(qontak.EventModeChanged, func(_ string, payload any) {
			if demo, _ := payload.(bool); demo {
				logger.Warn().Msg(modeLabel(qontak.ModeFallback))
			} else {
				logger.Info().Msg("Qontak API reachable again, live mode")
			}
		})

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           qontak.NewServer(console, logger.With().Str("component", "server").Logger()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", addr).Dur("poll_interval", interval).Msg("console listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		if serveLogin != "" {
			st := console.Login(context.Background(), serveLogin)
			logger.Info().Int("rooms", len(st.Rooms)).Bool("demo", st.DemoMode).Msg("initial room load done")
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		}

		console.Logout()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("http server shutdown error")
		}
		logger.Info().Msg("shutdown complete")
		return nil
	},
}
