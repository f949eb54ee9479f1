package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/npezzotti/pomochat/internal/api"
	"github.com/npezzotti/pomochat/internal/config"
	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/feed"
	"github.com/npezzotti/pomochat/internal/realtime"
	"github.com/npezzotti/pomochat/internal/server"
	"github.com/npezzotti/pomochat/internal/session"
	"github.com/npezzotti/pomochat/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	migrations     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "", "database connection string (falls back to POMOCHAT_DATABASE_URL, DATABASE_URL, .env)")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.StringVar(&migrations, "migrations", "", "migration source URL, e.g. file://migrations (empty skips migrations)")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[pomochat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, config.DiscoverDSN(dsn), signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	// repo stays a nil interface without a DSN so every store operation
	// degrades to a distinct "unconfigured" failure instead of a crash
	var repo database.PomochatRepository
	var feedEvents <-chan database.FeedEvent

	if cfg.Configured() {
		dbConn, err := database.NewPgPomochatRepository(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("db open:", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Println("db close:", err)
			}
		}()

		if migrations != "" {
			if err := dbConn.Migrate(migrations); err != nil {
				logger.Fatal("migrate:", err)
			}
		}

		feedListener, err := database.NewFeedListener(cfg.DatabaseDSN, logger)
		if err != nil {
			logger.Fatal("feed listener:", err)
		}
		defer feedListener.Close()

		repo = dbConn
		feedEvents = feedListener.Events()
	} else {
		logger.Println("no database configured, running in degraded mode")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	syncer := realtime.NewSyncer(repo, feedEvents, statsUpdater, logger)
	fd := feed.NewFeed(repo, statsUpdater, logger)

	gateway, err := session.NewGateway(repo, logger)
	if err != nil {
		logger.Fatal("new gateway:", err)
	}

	sessionServer, err := server.NewSessionServer(logger, syncer, fd, statsUpdater, clockwork.NewRealClock())
	if err != nil {
		logger.Fatal("new session server:", err)
	}

	srv := api.NewPomochatApp(mux, logger, sessionServer, gateway, fd, repo, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go syncer.Run()
	go sessionServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down session server...")
	if err := sessionServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("session server shutdown:", err)
	}

	syncer.Stop()

	logger.Println("shutdown complete")
}
