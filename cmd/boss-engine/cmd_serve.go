package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spinyfin/mono/internal/config"
	"github.com/spinyfin/mono/internal/frontend"
	"github.com/spinyfin/mono/internal/logger"
	"github.com/spinyfin/mono/internal/registry"
	"github.com/spinyfin/mono/internal/wsgateway"
)

var (
	enableWSGateway bool
	wsGatewayAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the boss-engine broker in foreground",
	Long: `Run the broker: bind the frontend Unix socket, optionally
start the websocket gateway, and multiplex adapter agents until a
termination signal arrives.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&enableWSGateway, "ws-gateway", false, "also serve the frontend protocol over a local websocket")
	serveCmd.Flags().StringVar(&wsGatewayAddr, "ws-gateway-addr", "127.0.0.1:0", "address for the websocket gateway (only with --ws-gateway)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	l, err := logger.New(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to open log file, logging to stderr only: %v\n", err)
	} else {
		defer l.Close()
	}

	if err := cfg.Preflight(); err != nil {
		return err
	}

	logger.Info("boss-engine starting, adapter command: %s %v", cfg.ACPCommand, cfg.ACPArgs)

	reg := registry.New(cfg)

	srv := &frontend.Server{
		SocketPath: cfg.SocketPath,
		PIDPath:    cfg.PIDPath,
		Registry:   reg,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.ListenAndServe() }()

	if enableWSGateway {
		gw := &wsgateway.Gateway{Addr: wsGatewayAddr, Registry: reg}
		go func() { errCh <- gw.ListenAndServe() }()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal %s, shutting down", sig)
		return nil
	case err := <-errCh:
		if err != nil {
			logger.Error("broker transport exited: %v", err)
			return err
		}
		return nil
	}
}
