// Package webserver exposes the supervisor-facing HTTP API: the pending
// queue, answer submission, history, the learned corpus, and the SSE event
// stream.
package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/frontdesk/frontdesk/internal/escalate"
	"github.com/frontdesk/frontdesk/internal/lifecycle"
	"github.com/frontdesk/frontdesk/internal/notify"
	"github.com/frontdesk/frontdesk/internal/store"
)

type Server struct {
	store      *store.Store
	lifecycle  *lifecycle.Manager
	escalation *escalate.Service
	broker     *notify.Broker
	call       http.Handler
	now        func() time.Time
}

// New wires the API against its collaborators. call may be nil when no
// voice gateway is mounted.
func New(st *store.Store, lm *lifecycle.Manager, esc *escalate.Service, broker *notify.Broker, call http.Handler) *Server {
	return &Server{
		store:      st,
		lifecycle:  lm,
		escalation: esc,
		broker:     broker,
		call:       call,
		now:        time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/requests", s.handleListPending)
	mux.HandleFunc("GET /api/requests/{id}", s.handleGetRequest)
	mux.HandleFunc("POST /api/requests/{id}/respond", s.handleRespond)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/learned", s.handleLearned)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("POST /api/escalate", s.handleEscalate)
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("OPTIONS /api/", handleCORS)

	if s.call != nil {
		mux.Handle("GET /call", s.call)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleListPending returns actionable pending requests, newest first.
// Lapsed requests are expired as a side effect of this read.
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	requests := s.lifecycle.ListActionable(s.now())
	if requests == nil {
		requests = []store.HelpRequest{}
	}
	writeJSON(w, requests)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	req, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, req)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var body struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	req, err := s.lifecycle.Resolve(id, body.Answer)
	switch {
	case err == nil:
		writeJSON(w, req)
	case errors.Is(err, lifecycle.ErrEmptyAnswer):
		http.Error(w, "answer is required", http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.ListHistory()
	if err != nil {
		// Read failures degrade; the dashboard recovers on next poll.
		log.Printf("warning: failed to list history: %v", err)
		writeJSON(w, []store.HelpRequest{})
		return
	}
	writeJSON(w, history)
}

func (s *Server) handleLearned(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	learned, err := s.store.ListLearned(limit)
	if err != nil {
		log.Printf("warning: failed to list learned answers: %v", err)
		writeJSON(w, []store.LearnedAnswer{})
		return
	}
	writeJSON(w, learned)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.store.ListNotifications(0)
	if err != nil {
		log.Printf("warning: failed to list notifications: %v", err)
		writeJSON(w, []store.Notification{})
		return
	}
	writeJSON(w, notifications)
}

// handleEscalate lets non-voice callers (tests, remote integrations) file a
// help request directly.
func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question string `json:"question"`
		CallerID string `json:"caller_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Question == "" || body.CallerID == "" {
		http.Error(w, "question and caller_id are required", http.StatusBadRequest)
		return
	}

	id, _, err := s.escalation.Escalate(body.Question, body.CallerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// HTTP escalations have no live caller to call back; the answer is
	// picked up from history or the learned corpus instead.
	s.escalation.Forget(id)
	writeJSON(w, map[string]interface{}{"id": id})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(ch)

	fmt.Fprintf(w, ": keepalive\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

func parseID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
