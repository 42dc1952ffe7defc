package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain/nickname"
	"live-quiz-service/internal/domain/scoring"
	"live-quiz-service/pkg/logger"
	"live-quiz-service/pkg/metrics"
)

// LiveQuizLister reports quizzes that currently have a session.
type LiveQuizLister interface {
	LiveQuizzes(ctx context.Context) ([]string, error)
}

// APIHandler serves the host/admin HTTP endpoints.
type APIHandler struct {
	service   *app.QuizService
	engine    *scoring.Engine
	nicknames nickname.Validator
	metrics   *metrics.Manager
	log       logger.Logger
	live      LiveQuizLister
}

func NewAPIHandler(service *app.QuizService, engine *scoring.Engine, nicknames nickname.Validator, m *metrics.Manager, log logger.Logger) *APIHandler {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &APIHandler{service: service, engine: engine, nicknames: nicknames, metrics: m, log: log}
}

// WithLiveQuizzes enables GET /api/quizzes/live.
func (h *APIHandler) WithLiveQuizzes(l LiveQuizLister) *APIHandler {
	h.live = l
	return h
}

// Register mounts the API routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	if h.live != nil {
		h.handle(mux, "GET /api/quizzes/live", h.liveQuizzes)
	}
	h.handle(mux, "POST /api/quizzes/{quizId}/questions/{questionId}/start", h.startQuestion)
	h.handle(mux, "GET /api/quizzes/{quizId}/leaderboard", h.leaderboard)
	h.handle(mux, "GET /api/nicknames/validate", h.validateNickname)
	h.handle(mux, "GET /api/score", h.score)
}

func (h *APIHandler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, Instrument(pattern, h.metrics, h.log, fn))
}

type questionStarted struct {
	QuizID     string    `json:"quizId"`
	QuestionID string    `json:"questionId"`
	StartedAt  time.Time `json:"startedAt"`
}

func (h *APIHandler) startQuestion(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizId")
	questionID := r.PathValue("questionId")
	startedAt, err := h.service.StartQuestion(r.Context(), quizID, questionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questionStarted{QuizID: quizID, QuestionID: questionID, StartedAt: startedAt})
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), r.PathValue("quizId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

type liveQuizzes struct {
	QuizIDs []string `json:"quizIds"`
}

func (h *APIHandler) liveQuizzes(w http.ResponseWriter, r *http.Request) {
	ids, err := h.live.LiveQuizzes(r.Context())
	if err != nil {
		h.log.Error(r.Context(), "list live quizzes failed", logger.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liveQuizzes{QuizIDs: ids})
}

type nicknameCheck struct {
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
	Valid      bool   `json:"valid"`
}

func (h *APIHandler) validateNickname(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	normalized := nickname.Normalize(name)
	writeJSON(w, http.StatusOK, nicknameCheck{
		Name:       name,
		Normalized: normalized,
		Valid:      h.nicknames.IsValid(normalized),
	})
}

func (h *APIHandler) score(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base, err := strconv.Atoi(q.Get("base"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "INVALID_INPUT", Message: "base must be an integer"})
		return
	}
	speed := 0.0
	if raw := q.Get("speed"); raw != "" {
		if speed, err = strconv.ParseFloat(raw, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Code: "INVALID_INPUT", Message: "speed must be a number"})
			return
		}
	}
	streak := 0
	if raw := q.Get("streak"); raw != "" {
		if streak, err = strconv.Atoi(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Code: "INVALID_INPUT", Message: "streak must be an integer"})
			return
		}
	}

	b, err := h.engine.Breakdown(base, speed, streak)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	payload, status := toErrorPayload(err)
	writeJSON(w, status, payload)
}
