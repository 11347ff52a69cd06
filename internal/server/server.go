package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jotapp/jot/internal/handler"
	"github.com/jotapp/jot/internal/middleware"
	"github.com/jotapp/jot/internal/store"
	ws "github.com/jotapp/jot/internal/websocket"
)

// Server wires the note API together: the sqlite-backed store, the note
// handlers, the websocket hub, and the auth/logging middleware.
type Server struct {
	db     *sql.DB
	hub    *ws.Hub
	noteH  *handler.NoteHandler
	token  string
	logger *slog.Logger
}

// New creates a server over db. token guards the API; empty disables auth.
func New(db *sql.DB, token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := ws.NewHub(logger.With("component", "websocket"))
	noteStore := store.NewNoteStore(db)

	return &Server{
		db:     db,
		hub:    hub,
		noteH:  handler.NewNoteHandler(noteStore, hub, logger.With("component", "note")),
		token:  token,
		logger: logger,
	}
}

// Hub returns the websocket hub, mainly for tests and the backup status feed.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// The API and the change stream require the bearer token when configured
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/notes", s.noteH.List)
	protectedMux.HandleFunc("GET /api/notes/{id}", s.noteH.Get)
	protectedMux.HandleFunc("POST /api/notes", s.noteH.Create)
	protectedMux.HandleFunc("PUT /api/notes/{id}", s.noteH.Replace)
	protectedMux.HandleFunc("GET /ws", ws.Handle(s.hub))

	authMiddleware := middleware.RequireToken(s.token)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
