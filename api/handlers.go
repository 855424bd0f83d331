// Package api is the HTTP trigger for digest runs.
package api

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"book-digest/pipeline"
	"book-digest/utils"
)

// StartFunc launches a run in the background and returns immediately.
type StartFunc func(rc pipeline.RunConfig)

// Server answers publisher listings and subscription requests.
type Server struct {
	publishers func() []string
	start      StartFunc
	defaults   pipeline.RunConfig
	logger     *utils.Logger
}

// NewServer creates a Server. defaults supplies the cap and concurrency of
// runs started by POST /subscribe.
func NewServer(publishers func() []string, start StartFunc, defaults pipeline.RunConfig, logger *utils.Logger) *Server {
	return &Server{publishers: publishers, start: start, defaults: defaults, logger: logger}
}

// Router wires the endpoints. allowedOrigins enables CORS for a form hosted
// elsewhere; nil allows any origin.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/publishers", s.handlePublishers)
	r.Post("/subscribe", s.handleSubscribe)

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

type errorResponse struct {
	Error string `json:"error"`
}

type subscribeRequest struct {
	Email      string   `json:"email"`
	Publishers []string `json:"publishers"`
}

type subscribeResponse struct {
	Message    string   `json:"message"`
	Publishers []string `json:"publishers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePublishers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"publishers": s.publishers()})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email required"})
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid email"})
		return
	}

	publishers := parseNames(req.Publishers)
	if len(publishers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "please select at least one publisher"})
		return
	}

	rc := s.defaults
	rc.Recipient = addr.Address
	rc.Publishers = publishers
	s.start(rc)

	s.logger.Info("[api] %s subscribed to %s (request %s)", addr.Address,
		strings.Join(publishers, ", "), middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusAccepted, subscribeResponse{
		Message:    "Subscription accepted. Scraping started.",
		Publishers: publishers,
	})
}

func parseNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
