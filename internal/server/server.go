// Package server exposes the question bank over HTTP. Serving is
// read-mostly: list and random-pick hit the bank directly, and only an
// empty bank falls back to on-demand generation.
package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pmprep/interview-cli/internal/assemble"
	"github.com/pmprep/interview-cli/internal/gateway"
	"github.com/pmprep/interview-cli/internal/model"
	"github.com/pmprep/interview-cli/internal/store"
)

// Server handles question API requests.
type Server struct {
	st  store.Store
	asm *assemble.Assembler
}

func New(st store.Store, asm *assemble.Assembler) *Server {
	return &Server{st: st, asm: asm}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", s.handleListQuestions)
		r.Get("/questions/random", s.handleRandomQuestion)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	questions, err := s.st.QueryQuestions(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: question query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "question query failed")
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"count":     len(questions),
	})
}

// handleRandomQuestion serves one question matching the filter. Bank hits
// are the fast path; an empty bank triggers a single on-demand generation
// against a cached episode, so a fresh deployment is usable before the
// first assembly run completes.
func (s *Server) handleRandomQuestion(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	questions, err := s.st.QueryQuestions(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: question query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "question query failed")
		return
	}
	if len(questions) > 0 {
		writeJSON(w, http.StatusOK, questions[rand.Intn(len(questions))])
		return
	}

	q, err := s.generateFallback(r, filter)
	if err != nil {
		status, msg := fallbackError(err)
		zap.L().Warn("server: on-demand generation failed", zap.Error(err))
		writeError(w, status, msg)
		return
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "no questions available and no cached episodes to generate from")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) generateFallback(r *http.Request, filter store.QuestionFilter) (*model.Question, error) {
	recs, err := s.st.ListIntelligence(r.Context())
	if err != nil {
		return nil, err
	}

	typ := filter.Type
	if typ == "" {
		typ = model.TypeProductSense
	}
	diff := filter.Difficulty
	if diff == "" {
		diff = model.DifficultyMedium
	}

	for i := range recs {
		if recs[i].RichestCompany() == nil {
			continue
		}
		return s.asm.GenerateOne(r.Context(), &recs[i], typ, diff)
	}
	return nil, nil
}

// fallbackError maps gateway failures onto user-facing responses. Billing
// and credential problems are operator-actionable, so they get a distinct
// status from transient upstream trouble.
func fallbackError(err error) (int, string) {
	switch gateway.KindOf(err) {
	case gateway.KindNoCredential:
		return http.StatusServiceUnavailable, "no model credential configured"
	case gateway.KindPaymentRequired:
		return http.StatusServiceUnavailable, "model provider billing issue"
	case gateway.KindRateLimited:
		return http.StatusServiceUnavailable, "model provider rate limited, try again shortly"
	}
	return http.StatusInternalServerError, "question generation failed"
}

func parseFilter(w http.ResponseWriter, r *http.Request) (store.QuestionFilter, bool) {
	q := r.URL.Query()
	filter := store.QuestionFilter{
		Type:       model.InterviewType(q.Get("type")),
		Difficulty: model.Difficulty(q.Get("difficulty")),
		Company:    q.Get("company"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown interview type")
		return filter, false
	}
	if filter.Difficulty != "" && !filter.Difficulty.Valid() {
		writeError(w, http.StatusBadRequest, "unknown difficulty")
		return filter, false
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return filter, false
		}
		filter.Limit = n
	}
	return filter, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
