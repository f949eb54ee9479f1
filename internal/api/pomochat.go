package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/pomochat/internal/config"
	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/feed"
	"github.com/npezzotti/pomochat/internal/server"
	"github.com/npezzotti/pomochat/internal/session"
)

type PomochatApp struct {
	log            *log.Logger
	db             database.PomochatRepository
	gw             *session.Gateway
	feed           *feed.Feed
	cs             *server.SessionServer
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewPomochatApp(mux *http.ServeMux, logger *log.Logger, cs *server.SessionServer, gw *session.Gateway, fd *feed.Feed, db database.PomochatRepository, cfg *config.Config) *PomochatApp {
	s := &PomochatApp{
		log:            logger,
		db:             db,
		gw:             gw,
		feed:           fd,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/rooms", s.createRoom)
	mux.HandleFunc("POST /api/rooms/join", s.joinRoom)
	mux.Handle("GET /api/rooms", s.sessionMiddleware(s.getRoom))
	mux.Handle("GET /api/messages", s.sessionMiddleware(s.getMessages))
	mux.Handle("GET /api/session/leave", s.sessionMiddleware(s.leaveRoom))
	mux.Handle("GET /ws", s.sessionMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *PomochatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PomochatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
