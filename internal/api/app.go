package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-relay/internal/config"
	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/identity"
	"github.com/npezzotti/go-relay/internal/server"
)

type RelayApp struct {
	log            *log.Logger
	db             database.RelayRepository
	mux            *http.Server
	cs             *server.ChatServer
	identity       identity.Provider
	allowedOrigins []string
}

func NewRelayApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.RelayRepository, idp identity.Provider, cfg *config.Config) *RelayApp {
	s := &RelayApp{
		log:            logger,
		db:             db,
		cs:             cs,
		identity:       idp,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/online", s.authMiddleware(s.onlineUsers))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *RelayApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *RelayApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
