package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sendlater/internal/constants"
	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
	"sendlater/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server is the HTTP surface consumed by display-layer collaborators. It is
// a thin shell over the queue facade.
type Server struct {
	router *mux.Router
	logger *apperrors.Logger
	queue  *service.QueueService
	server *http.Server
	port   int
}

func NewServer(port int, queue *service.QueueService, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: &apperrors.Logger{Logger: logger},
		queue:  queue,
		port:   port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/messages", s.handleAddMessage()).Methods(http.MethodPost)
	api.HandleFunc("/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleClearMessages()).Methods(http.MethodDelete)
	api.HandleFunc("/messages/{id}", s.handleGetMessage()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}", s.handleUpdateMessage()).Methods(http.MethodPatch)
	api.HandleFunc("/messages/{id}", s.handleDeleteMessage()).Methods(http.MethodDelete)
	api.HandleFunc("/stats", s.handleStats()).Methods(http.MethodGet)
	api.HandleFunc("/sync", s.handleTriggerSync()).Methods(http.MethodPost)
	api.HandleFunc("/sync", s.handleSyncState()).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleGetSettings()).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings()).Methods(http.MethodPut)
	api.HandleFunc("/export", s.handleExport()).Methods(http.MethodGet)
	api.HandleFunc("/opens", s.handleRecordOpen()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeout * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type addMessageRequest struct {
	SenderID      string    `json:"senderId"`
	RecipientName string    `json:"recipientName"`
	Text          string    `json:"text"`
	DeliverAfter  time.Time `json:"deliverAfter"`
	Delay         string    `json:"delay"`
}

func (s *Server) handleAddMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "invalid JSON body"))
			return
		}

		delay := models.DelayClass(req.Delay)
		if req.Delay == "" {
			delay = models.DelayScheduled
		}

		msg, err := s.queue.AddMessage(r.Context(), req.SenderID, req.RecipientName, req.Text, req.DeliverAfter, delay)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, msg)
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID := r.URL.Query().Get("senderId")
		filter := models.MessageFilter(r.URL.Query().Get("filter"))

		messages, err := s.queue.ListMessages(r.Context(), senderID, filter)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if messages == nil {
			messages = []models.Message{}
		}

		s.writeJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		msg, err := s.queue.GetMessage(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, msg)
	}
}

func (s *Server) handleUpdateMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var update models.MessageUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "invalid JSON body"))
			return
		}

		if err := s.queue.UpdateMessage(r.Context(), id, update); err != nil {
			s.writeError(w, err)
			return
		}

		msg, err := s.queue.GetMessage(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, msg)
	}
}

func (s *Server) handleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := s.queue.DeleteMessage(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleClearMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID := r.URL.Query().Get("senderId")
		if senderID == "" {
			s.writeError(w, apperrors.NewValidationError("senderId", "sender is required"))
			return
		}

		removed, err := s.queue.ClearMessages(r.Context(), senderID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID := r.URL.Query().Get("senderId")

		stats, err := s.queue.GetStats(r.Context(), senderID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleTriggerSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := s.queue.TriggerManualSync(r.Context())
		s.writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleSyncState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.queue.SyncState())
	}
}

func (s *Server) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID := r.URL.Query().Get("senderId")

		settings, err := s.queue.GetSettings(r.Context(), senderID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, settings)
	}
}

func (s *Server) handleUpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID := r.URL.Query().Get("senderId")
		if senderID == "" {
			s.writeError(w, apperrors.NewValidationError("senderId", "sender is required"))
			return
		}

		var settings models.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "invalid JSON body"))
			return
		}

		if err := s.queue.UpdateSettings(r.Context(), senderID, settings); err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, settings)
	}
}

func (s *Server) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID := r.URL.Query().Get("senderId")
		if senderID == "" {
			s.writeError(w, apperrors.NewValidationError("senderId", "sender is required"))
			return
		}

		export, err := s.queue.ExportMessages(r.Context(), senderID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, export)
	}
}

func (s *Server) handleRecordOpen() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.queue.RecordAppOpen(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Debug("Failed to write health response")
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.LogRetryableError(err, "Request failed")
	} else {
		s.logger.WithError(err).Debug("Request rejected")
	}

	s.writeJSON(w, status, apperrors.ToHTTPResponse(err))
}
