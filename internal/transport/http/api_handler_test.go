package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"live-quiz-service/internal/domain/nickname"
	"live-quiz-service/internal/domain/scoring"
	"live-quiz-service/pkg/metrics"
)

func newAPIMux(t *testing.T) (*http.ServeMux, *metrics.Manager) {
	t.Helper()
	service := newTestService()
	if _, err := service.Join(context.Background(), "quiz-1", "u1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	m := metrics.NewManager()
	mux := http.NewServeMux()
	NewAPIHandler(service, scoring.NewEngine(), nickname.NewValidator(2, 20), m, nil).Register(mux)
	return mux, m
}

func do(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestScoreEndpoint(t *testing.T) {
	mux, _ := newAPIMux(t)

	rec := do(mux, http.MethodGet, "/api/score?base=100&speed=0.5&streak=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var b scoring.Breakdown
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.TotalPoints != 170 || b.SpeedBonus != 50 || b.StreakBonus != 20 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}

	for _, target := range []string{
		"/api/score?base=0",
		"/api/score?base=abc",
		"/api/score?base=10&speed=NaN",
		"/api/score?base=10&speed=2",
		"/api/score?base=10&streak=-1",
	} {
		rec := do(mux, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
		var p errorPayload
		_ = json.NewDecoder(rec.Body).Decode(&p)
		if p.Code != "INVALID_INPUT" {
			t.Fatalf("%s: expected INVALID_INPUT, got %+v", target, p)
		}
	}
}

func TestNicknameEndpoint(t *testing.T) {
	mux, _ := newAPIMux(t)

	cases := map[string]bool{
		"a":                     false,
		"ab":                    true,
		"%20ab%20":              true,
		"abcdefghijklmnopqrstu": false,
	}
	for name, want := range cases {
		rec := do(mux, http.MethodGet, "/api/nicknames/validate?name="+name)
		var got nicknameCheck
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Valid != want {
			t.Fatalf("name %q: expected valid=%v, got %+v", name, want, got)
		}
	}
}

func TestStartQuestionEndpoint(t *testing.T) {
	mux, _ := newAPIMux(t)

	rec := do(mux, http.MethodPost, "/api/quizzes/quiz-1/questions/q1/start")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var started questionStarted
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.QuizID != "quiz-1" || started.QuestionID != "q1" || started.StartedAt.IsZero() {
		t.Fatalf("unexpected response: %+v", started)
	}

	if rec := do(mux, http.MethodPost, "/api/quizzes/quiz-1/questions/q9/start"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown question, got %d", rec.Code)
	}
	if rec := do(mux, http.MethodPost, "/api/quizzes/quiz-2/questions/q1/start"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
	if rec := do(mux, http.MethodGet, "/api/quizzes/quiz-1/questions/q1/start"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	mux, m := newAPIMux(t)

	rec := do(mux, http.MethodGet, "/api/quizzes/quiz-1/leaderboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var lb struct {
		QuizID  string `json:"quizId"`
		Entries []struct {
			DisplayName string `json:"displayName"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&lb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lb.QuizID != "quiz-1" || len(lb.Entries) != 1 || lb.Entries[0].DisplayName != "Alice" {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}

	metricsRec := httptest.NewRecorder()
	m.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if metricsRec.Code != http.StatusOK || len(metricsRec.Body.String()) == 0 {
		t.Fatalf("expected metrics output")
	}
}

func TestErrorPayloadMapping(t *testing.T) {
	payload, status := toErrorPayload(context.Canceled)
	if status != http.StatusInternalServerError || payload.Code != "INTERNAL" {
		t.Fatalf("expected internal error mapping, got %d %+v", status, payload)
	}
}

type staticLister []string

func (l staticLister) LiveQuizzes(context.Context) ([]string, error) { return l, nil }

func TestLiveQuizzesEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	NewAPIHandler(newTestService(), nil, nickname.NewValidator(0, 0), nil, nil).
		WithLiveQuizzes(staticLister{"quiz-1", "quiz-2"}).
		Register(mux)

	rec := do(mux, http.MethodGet, "/api/quizzes/live")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body liveQuizzes
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.QuizIDs) != 2 || body.QuizIDs[0] != "quiz-1" {
		t.Fatalf("unexpected body %+v", body)
	}

	plain := http.NewServeMux()
	NewAPIHandler(newTestService(), nil, nickname.NewValidator(0, 0), nil, nil).Register(plain)
	if rec := do(plain, http.MethodGet, "/api/quizzes/live"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected route to be absent without a lister, got %d", rec.Code)
	}
}
