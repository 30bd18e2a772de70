package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/mafwalk/internal/config"
	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/mcp"
	"github.com/claude/mafwalk/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	remote := flag.String("remote", "", "MAF Walk server URL; when set, data is read over the REST API instead of local storage")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("mafwalk-mcp", Version)
		return
	}

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	policy := maf.Policy{ZoneWidth: cfg.Policy.ZoneWidthBPM}

	var ds mcp.DataSource
	if *remote != "" {
		ds = mcp.NewHTTPClient(*remote)
		log.Info("mcp using remote data source", "url", *remote)
	} else {
		backend, err := storage.Open(context.Background(), cfg.Storage.Driver, cfg.Storage.DSN())
		if err != nil {
			log.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
			os.Exit(1)
		}
		defer func() { _ = backend.Close() }()
		ds = storage.NewStore(backend, log)
		log.Info("mcp using local storage", "driver", cfg.Storage.Driver)
	}

	s := mcp.New(ds, policy, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
