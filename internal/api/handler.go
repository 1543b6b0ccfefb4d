package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/service"
)

// commandExecutor runs an invocation and waits for the reply
type commandExecutor interface {
	Execute(ctx context.Context, inv domain.Invocation) (domain.Reply, error)
}

// Server provides the local admin HTTP API
type Server struct {
	prefixRepo repo.PrefixRepo
	commands   commandExecutor
	log        *slog.Logger

	server *http.Server
	port   int
}

// PrefixRequest is the body of PUT /api/prefixes/{channel}
type PrefixRequest struct {
	Prefix string `json:"prefix"`
}

// CommandRequest is the body of POST /api/commands
type CommandRequest struct {
	ChannelID   string `json:"channel_id"`
	RequesterID string `json:"requester_id"`
	Command     string `json:"command"`
	Text        string `json:"text"`
}

// NewServer creates a new API server
func NewServer(prefixRepo repo.PrefixRepo, commands commandExecutor, port int, log *slog.Logger) *Server {
	return &Server{
		prefixRepo: prefixRepo,
		commands:   commands,
		port:       port,
		log:        log.With("component", "api"),
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Prefix management
	mux.HandleFunc("/api/prefixes", s.handlePrefixes)
	mux.HandleFunc("/api/prefixes/", s.handlePrefixItem)

	// Command execution
	mux.HandleFunc("/api/commands", s.handleCommands)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("starting HTTP server", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Prefix Handlers ============

func (s *Server) handlePrefixes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	prefixes, err := s.prefixRepo.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if prefixes == nil {
		prefixes = []domain.ChannelPrefix{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"prefixes": prefixes})
}

func (s *Server) handlePrefixItem(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/prefixes/{channel_id}
	channelID := strings.TrimPrefix(r.URL.Path, "/api/prefixes/")
	if channelID == "" || strings.Contains(channelID, "/") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefix, found, err := s.prefixRepo.Get(r.Context(), channelID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, http.StatusOK, domain.ChannelPrefix{ChannelID: channelID, Prefix: prefix})

	case http.MethodPut:
		var req PrefixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		prefix, err := domain.NormalizePrefix(req.Prefix)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.prefixRepo.Set(r.Context(), channelID, prefix); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.log.Info("prefix set via api", "channel_id", channelID, "prefix", prefix)
		s.writeJSON(w, http.StatusOK, domain.ChannelPrefix{ChannelID: channelID, Prefix: prefix})

	case http.MethodDelete:
		if err := s.prefixRepo.Delete(r.Context(), channelID); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.log.Info("prefix deleted via api", "channel_id", channelID)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ============ Command Handlers ============

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	inv := domain.Invocation{
		ID:          uuid.NewString(),
		ChannelID:   req.ChannelID,
		RequesterID: req.RequesterID,
		CommandName: req.Command,
		RawText:     req.Text,
		ReceivedAt:  time.Now(),
	}

	reply, err := s.commands.Execute(r.Context(), inv)
	switch {
	case errors.Is(err, service.ErrPoolFull):
		s.writeJSON(w, http.StatusServiceUnavailable, reply)
	case err != nil:
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.writeJSON(w, http.StatusOK, reply)
	}
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
