package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/domain/nickname"
	"live-quiz-service/internal/domain/scoring"
	"live-quiz-service/internal/infra/memory"
)

func TestJoinAndScoring(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()

	if _, err := service.Join(ctx, "quiz-1", "u1", "Alice"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := service.Join(ctx, "quiz-1", "u2", "Bob"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	clock.Advance(5 * time.Second)

	result, lb, err := service.SubmitAnswer(ctx, "quiz-1", "u2", domain.AnswerSubmission{
		QuestionID: "q1",
		OptionID:   "o2", // correct
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Correct || result.SpeedBonus != 50 || result.StreakBonus != 0 || result.Awarded != 150 {
		t.Fatalf("expected 100 base + 50 speed, got %+v", result)
	}
	if result.ElapsedMs != 5000 {
		t.Fatalf("expected 5000ms elapsed, got %d", result.ElapsedMs)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].UserID != "u2" || lb.Entries[0].Score != 150 {
		t.Fatalf("expected Bob to lead with 150 points, got %+v", lb.Entries[0])
	}
}

func TestStreakBonusAccumulates(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()
	mustJoin(t, service, "u1", "Alice")

	want := []int{150, 160, 170}
	total := 0
	for i, qid := range []string{"q1", "q2", "q3"} {
		if _, err := service.StartQuestion(ctx, "quiz-1", qid); err != nil {
			t.Fatalf("start %s: %v", qid, err)
		}
		clock.Advance(5 * time.Second)
		result, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: qid, OptionID: "o2"})
		if err != nil {
			t.Fatalf("submit %s: %v", qid, err)
		}
		total += want[i]
		if result.Streak != i+1 || result.Awarded != want[i] || result.TotalScore != total {
			t.Fatalf("%s: expected streak %d awarded %d total %d, got %+v", qid, i+1, want[i], total, result)
		}
	}

	if _, err := service.StartQuestion(ctx, "quiz-1", "q4"); err != nil {
		t.Fatalf("start q4: %v", err)
	}
	result, lb, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q4", OptionID: "o1"})
	if err != nil {
		t.Fatalf("submit q4: %v", err)
	}
	if result.Correct || result.Awarded != 0 || result.Streak != 0 || result.TotalScore != total {
		t.Fatalf("expected wrong answer to reset streak without points, got %+v", result)
	}
	if lb.Entries[0].Streak != 0 || lb.Entries[0].Score != total {
		t.Fatalf("expected leaderboard to reflect reset streak, got %+v", lb.Entries[0])
	}
}

func TestLateAnswerEarnsBaseOnly(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()
	mustJoin(t, service, "u1", "Alice")

	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(time.Minute)

	result, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.SpeedBonus != 0 || result.Awarded != 100 {
		t.Fatalf("expected base points only, got %+v", result)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	mustJoin(t, service, "u1", "Alice")

	ch, cancel, err := service.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{
		QuestionID: "q1",
		OptionID:   "o2",
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	update := <-ch
	if len(update.Entries) != 1 || update.Entries[0].Score != 200 {
		t.Fatalf("expected updated score 200, got %+v", update.Entries)
	}
}

func TestSubmitRequiresParticipant(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	_, _, err := service.SubmitAnswer(ctx, "quiz-unknown", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o1"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}

	mustJoin(t, service, "u1", "Alice")
	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, _, err = service.SubmitAnswer(ctx, "quiz-1", "u2", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"})
	if !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant error, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	mustJoin(t, service, "u1", "Alice")

	_, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"})
	if !errors.Is(err, domain.ErrQuestionNotStarted) {
		t.Fatalf("expected not started error, got %v", err)
	}

	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, _, err = service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "nope", OptionID: "o2"})
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question error, got %v", err)
	}
	_, _, err = service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "nope"})
	if !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option error, got %v", err)
	}

	if _, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o1"}); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	_, _, err = service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"})
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered error, got %v", err)
	}
}

func TestStartQuestionErrors(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	mustJoin(t, service, "u1", "Alice")
	if _, err := service.StartQuestion(ctx, "quiz-1", "q9"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question error, got %v", err)
	}
}

func TestJoinValidatesNickname(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	for _, name := range []string{"", "a", "   b   ", strings.Repeat("x", 21)} {
		if _, err := service.Join(ctx, "quiz-1", "u1", name); !errors.Is(err, domain.ErrInvalidNickname) {
			t.Fatalf("Join(%q): expected invalid nickname, got %v", name, err)
		}
	}

	lb, err := service.Join(ctx, "quiz-1", "u1", "  Al  ")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if lb.Entries[0].DisplayName != "Al" {
		t.Fatalf("expected trimmed nickname, got %q", lb.Entries[0].DisplayName)
	}

	if _, err := service.Join(ctx, "quiz-missing", "u1", "Alice"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz error, got %v", err)
	}
}

func TestRecordersReceiveResults(t *testing.T) {
	ctx := context.Background()
	ok := &fakeRecorder{name: "ok"}
	failing := &fakeRecorder{name: "failing", err: errors.New("boom")}
	service, _ := newTestService(app.WithRecorders(failing, ok))
	mustJoin(t, service, "u1", "Alice")

	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"}); err != nil {
		t.Fatalf("expected recorder failure to be tolerated, got %v", err)
	}

	got := ok.results()
	if len(got) != 1 || got[0].QuizID != "quiz-1" || got[0].UserID != "u1" || got[0].Awarded != 200 {
		t.Fatalf("unexpected recorded results: %+v", got)
	}
	if len(failing.results()) != 1 {
		t.Fatalf("expected failing recorder to be called")
	}
}

func TestCustomStreakStep(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.WithScoringEngine(scoring.NewEngine(scoring.WithStreakStep(0.5))))
	mustJoin(t, service, "u1", "Alice")

	var last domain.AnswerResult
	for _, qid := range []string{"q1", "q2"} {
		if _, err := service.StartQuestion(ctx, "quiz-1", qid); err != nil {
			t.Fatalf("start: %v", err)
		}
		result, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: qid, OptionID: "o2"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		last = result
	}
	if last.StreakBonus != 50 {
		t.Fatalf("expected 50 streak bonus, got %+v", last)
	}
}

func TestLeaveDropsEmptySession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	mustJoin(t, service, "u1", "Alice")

	service.Leave(ctx, "quiz-1", "u1")
	if _, _, err := service.Subscribe(ctx, "quiz-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session to be dropped, got %v", err)
	}
}

func TestJoinReportsConfiguredNicknameBounds(t *testing.T) {
	service, _ := newTestService(app.WithNicknameValidator(nickname.NewValidator(3, 8)))

	_, err := service.Join(context.Background(), "quiz-1", "u1", "Al")
	if !errors.Is(err, domain.ErrInvalidNickname) {
		t.Fatalf("expected invalid nickname, got %v", err)
	}
	if !strings.Contains(err.Error(), "3 to 8 characters") {
		t.Fatalf("expected configured bounds in %q", err.Error())
	}
}

func TestRejoinKeepsAnsweredQuestions(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()
	mustJoin(t, service, "u1", "Alice")
	mustJoin(t, service, "u2", "Bob")

	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start q1: %v", err)
	}
	clock.Advance(5 * time.Second)
	if _, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"}); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if _, err := service.StartQuestion(ctx, "quiz-1", "q2"); err != nil {
		t.Fatalf("start q2: %v", err)
	}
	result, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q2", OptionID: "o1"})
	if err != nil || result.Awarded != 0 {
		t.Fatalf("expected wrong answer to award nothing, got %+v (%v)", result, err)
	}

	service.Leave(ctx, "quiz-1", "u1")
	lb, err := service.Leaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u2" {
		t.Fatalf("expected departed participant hidden, got %+v", lb.Entries)
	}
	if _, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q2", OptionID: "o2"}); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected departed participant to be rejected, got %v", err)
	}

	lb, err = service.Join(ctx, "quiz-1", "u1", "Alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if lb.Entries[0].UserID != "u1" || lb.Entries[0].Score != 150 {
		t.Fatalf("expected score restored on rejoin, got %+v", lb.Entries)
	}
	_, _, err = service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q2", OptionID: "o2"})
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered after rejoin, got %v", err)
	}
}

func TestLeaderboardTieBreaksByTime(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()
	mustJoin(t, service, "u1", "Zed")
	mustJoin(t, service, "u2", "Amy")

	if _, err := service.StartQuestion(ctx, "quiz-1", "q1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Both answer at the limit so both earn exactly base points.
	clock.Advance(10 * time.Second)
	if _, _, err := service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"}); err != nil {
		t.Fatalf("submit u1: %v", err)
	}
	clock.Advance(time.Second)
	_, lb, err := service.SubmitAnswer(ctx, "quiz-1", "u2", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"})
	if err != nil {
		t.Fatalf("submit u2: %v", err)
	}
	if lb.Entries[0].UserID != "u1" {
		t.Fatalf("expected earlier scorer first, got %+v", lb.Entries)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeRecorder struct {
	name string
	err  error

	mu   sync.Mutex
	seen []domain.AnswerResult
}

func (r *fakeRecorder) Name() string { return r.name }

func (r *fakeRecorder) RecordAnswer(_ context.Context, result domain.AnswerResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, result)
	return r.err
}

func (r *fakeRecorder) results() []domain.AnswerResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AnswerResult(nil), r.seen...)
}

func mustJoin(t *testing.T, service *app.QuizService, userID, name string) {
	t.Helper()
	if _, err := service.Join(context.Background(), "quiz-1", userID, name); err != nil {
		t.Fatalf("join %s: %v", userID, err)
	}
}

func newTestService(opts ...app.Option) (*app.QuizService, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sessionStore := memory.NewSessionStoreWithClock(clock.Now)
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				testQuestion("q1"),
				testQuestion("q2"),
				testQuestion("q3"),
				testQuestion("q4"),
			},
		},
	}), 5*time.Minute)
	return app.NewQuizService(sessionStore, quizRepo, opts...), clock
}

func testQuestion(id string) domain.Question {
	return domain.Question{
		ID:     id,
		Prompt: "Select the right option",
		Options: []domain.Option{
			{ID: "o1", Text: "Wrong", Correct: false},
			{ID: "o2", Text: "Right", Correct: true},
		},
		Points:      100,
		TimeLimitMs: 10000,
	}
}
