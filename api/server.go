package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/coinkick/coinkick/game/room"
	"github.com/coinkick/coinkick/transport/websocket"
)

// Server is the HTTP surface: the admin REST API plus the WebSocket upgrade
// path.
type Server struct {
	registry *room.Registry
	gateway  *websocket.Gateway
	wsPath   string
	router   *mux.Router
}

// NewServer creates the HTTP server over a registry and its gateway. wsPath
// is where the upgrade is mounted; "" selects /ws.
func NewServer(registry *room.Registry, gateway *websocket.Gateway, wsPath string) *Server {
	if wsPath == "" {
		wsPath = "/ws"
	}
	s := &Server{
		registry: registry,
		gateway:  gateway,
		wsPath:   wsPath,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{code}", s.handleCloseRoom).Methods("DELETE")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc(s.wsPath, s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.registry.List()

	// Newest activity first; the list is for operators eyeballing load.
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastActivity.After(rooms[j].LastActivity)
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["code"]

	info, ok := s.registry.Get(code)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("room %s not found", room.NormalizeCode(code)))
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["code"]

	if err := s.registry.Delete(code); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Room %s closed", room.NormalizeCode(code)),
	})
}

// Health check

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"rooms":  s.registry.Count(),
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.gateway.ServeWS(w, r)
}
