package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tablewire/rummy/internal/matchmaking"
	"github.com/tablewire/rummy/internal/server"
	"github.com/tablewire/rummy/internal/store"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"rummyd.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Store    string `short:"s" long:"store" help:"Store backend: memory or nats (overrides config)"`
	NATSURL  string `long:"nats-url" help:"NATS server URL (overrides config)"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		kctx.Exit(1)
	}

	// Apply command line overrides
	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Store != "" {
		cfg.Store.Backend = CLI.Store
	}
	if CLI.NATSURL != "" {
		cfg.Store.NATSURL = CLI.NATSURL
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		kctx.Exit(1)
	}

	// Setup logging
	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		kctx.Exit(1)
	}
	defer func() { _ = st.Close() }()

	logger.Info("Starting rummy server",
		"addr", cfg.Address(),
		"store", cfg.Store.Backend,
		"decks", cfg.Game.NumDecks,
		"jokers", cfg.Game.NumJokers)

	wsServer := server.NewServer(cfg.Address(), logger)
	queue := matchmaking.New(st, logger)
	manager := server.NewRoomManager(st, queue, wsServer, cfg.GameConfig(), logger)
	wsServer.SetManager(manager)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(wsServer.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		return wsServer.Stop()
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		kctx.Exit(1)
	}
}

func openStore(cfg *server.Config, logger *log.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "nats":
		return store.OpenNATS(cfg.Store.NATSURL, cfg.TTLs(), logger)
	default:
		return store.NewMemory(cfg.TTLs(), nil), nil
	}
}
