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

	"github.com/npezzotti/go-relay/internal/api"
	"github.com/npezzotti/go-relay/internal/config"
	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/identity"
	"github.com/npezzotti/go-relay/internal/server"
	"github.com/npezzotti/go-relay/internal/stats"
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
	addr            string
	dsn             string
	signingKey      string
	redisURL        string
	tokenTTL        time.Duration
	eventsPerSecond int
	allowedOrigins  stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.StringVar(&redisURL, "redis-url", "", "redis URL for the user cache, disabled when empty")
	flag.DurationVar(&tokenTTL, "token-ttl", config.DefaultTokenTTL, "lifetime of issued session tokens")
	flag.IntVar(&eventsPerSecond, "events-per-second", config.DefaultEventsPerSecond, "maximum inbound events per second per connection")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[go-relay] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	if cfg, err = cfg.WithTokenTTL(tokenTTL); err != nil {
		logger.Fatal("config:", err)
	}
	if cfg, err = cfg.WithEventsPerSecond(eventsPerSecond); err != nil {
		logger.Fatal("config:", err)
	}
	cfg.WithRedisURL(redisURL)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	dbConn, err := database.NewPgRelayRepository(startCtx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	var repo database.RelayRepository = dbConn
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(startCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis open:", err)
		}

		cached := database.NewCachedRepository(dbConn, redisClient, 0, logger)
		defer func() {
			if err := cached.Close(); err != nil {
				logger.Println("redis close:", err)
			}
		}()

		repo = cached
		logger.Println("user cache enabled")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	idp := identity.NewJwtProvider(cfg.SigningKey, cfg.TokenTTL)

	chatServer, err := server.NewChatServer(logger, repo, idp, statsUpdater, cfg.EventsPerSecond)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewRelayApp(mux, logger, chatServer, repo, idp, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

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
		logger.Println("HTTP server shutdown:", err)
	}

	// Connection cleanup still writes presence and stats, so the chat server
	// must finish before the deferred stats and store teardown runs.
	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
