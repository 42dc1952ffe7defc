package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/domain/nickname"
	"live-quiz-service/internal/domain/scoring"
	"live-quiz-service/pkg/logger"
	"live-quiz-service/pkg/metrics"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(quizID string) *Session
	Get(quizID string) (*Session, bool)
	DeleteIfEmpty(quizID string)
	// Touch records activity on a live session.
	Touch(ctx context.Context, quizID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizLoader fetches quiz content from a backing store (static file, Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AnswerRecorder persists scored answers outside the session (scoreboards, history).
type AnswerRecorder interface {
	Name() string
	RecordAnswer(ctx context.Context, result domain.AnswerResult) error
}

// Option configures a QuizService.
type Option func(*QuizService)

// WithScoringEngine replaces the default scoring engine.
func WithScoringEngine(engine *scoring.Engine) Option {
	return func(s *QuizService) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithNicknameValidator replaces the default nickname bounds.
func WithNicknameValidator(v nickname.Validator) Option {
	return func(s *QuizService) { s.nicknames = v }
}

// WithDefaultTimeLimit sets the answer window for questions without their own.
func WithDefaultTimeLimit(d time.Duration) Option {
	return func(s *QuizService) {
		if d > 0 {
			s.defaultTimeLimit = d
		}
	}
}

// WithRecorders adds answer recorders, called after every scored answer.
func WithRecorders(recorders ...AnswerRecorder) Option {
	return func(s *QuizService) { s.recorders = append(s.recorders, recorders...) }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *QuizService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *QuizService) { s.metrics = m }
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions         SessionRepository
	quizzes          QuizRepository
	engine           *scoring.Engine
	nicknames        nickname.Validator
	defaultTimeLimit time.Duration
	recorders        []AnswerRecorder
	log              logger.Logger
	metrics          *metrics.Manager
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:         store,
		quizzes:          quizzes,
		engine:           scoring.NewEngine(),
		nicknames:        nickname.NewValidator(nickname.DefaultMinLength, nickname.DefaultMaxLength),
		defaultTimeLimit: domain.DefaultTimeLimit,
		log:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return newSession(id)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return newSessionWithClock(id, now)
}

// Join registers or refreshes a participant in a quiz session.
func (s *QuizService) Join(ctx context.Context, quizID, userID, displayName string) (domain.Leaderboard, error) {
	name := nickname.Normalize(displayName)
	if !s.nicknames.IsValid(name) {
		s.metrics.RecordNicknameRejected()
		return domain.Leaderboard{}, fmt.Errorf("%w: must be %d to %d characters", domain.ErrInvalidNickname, s.nicknames.MinLength(), s.nicknames.MaxLength())
	}

	// Preload quiz into cache; users cannot join unknown quizzes.
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}

	session := s.sessions.GetOrCreate(quizID)
	lb := session.join(userID, name)
	s.metrics.RecordJoin()
	s.log.Debug(ctx, "participant joined", logger.String("quizId", quizID), logger.String("userId", userID))
	return lb, nil
}

// StartQuestion opens a question for answers and starts its speed clock.
func (s *QuizService) StartQuestion(ctx context.Context, quizID, questionID string) (time.Time, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return time.Time{}, domain.ErrSessionNotFound
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return time.Time{}, err
	}
	if _, ok := quiz.FindQuestion(questionID); !ok {
		return time.Time{}, domain.ErrQuestionNotFound
	}

	startedAt := session.startQuestion(questionID)
	s.sessions.Touch(ctx, quizID)
	s.metrics.RecordQuestionStarted()
	s.log.Info(ctx, "question started", logger.String("quizId", quizID), logger.String("questionId", questionID))
	return startedAt, nil
}

// SubmitAnswer scores an answer for a participant and updates the leaderboard.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID, userID string, submission domain.AnswerSubmission) (domain.AnswerResult, domain.Leaderboard, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		s.metrics.RecordRejectedAnswer()
		return domain.AnswerResult{}, domain.Leaderboard{}, domain.ErrSessionNotFound
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AnswerResult{}, domain.Leaderboard{}, err
	}

	question, correct, err := checkSubmission(quiz, submission)
	if err != nil {
		s.metrics.RecordRejectedAnswer()
		return domain.AnswerResult{}, domain.Leaderboard{}, err
	}

	result, lb, err := session.applyAnswer(s.engine, userID, question, submission.OptionID, correct, question.TimeLimit(s.defaultTimeLimit))
	if err != nil {
		s.metrics.RecordRejectedAnswer()
		return domain.AnswerResult{}, domain.Leaderboard{}, err
	}

	s.sessions.Touch(ctx, quizID)
	s.metrics.RecordAnswer(result.Correct, result.Awarded)
	s.log.Debug(ctx, "answer scored",
		logger.String("quizId", quizID),
		logger.String("userId", userID),
		logger.String("questionId", question.ID),
		logger.Bool("correct", result.Correct),
		logger.Int("awarded", result.Awarded),
		logger.Int("streak", result.Streak),
	)
	s.record(ctx, result)
	return result, lb, nil
}

// record fans the result out to recorders. Failures are logged, not returned:
// the in-session score is authoritative.
func (s *QuizService) record(ctx context.Context, result domain.AnswerResult) {
	for _, r := range s.recorders {
		if err := r.RecordAnswer(ctx, result); err != nil {
			s.metrics.RecordRecorderError(r.Name())
			s.log.Warn(ctx, "record answer failed",
				logger.String("recorder", r.Name()),
				logger.String("quizId", result.QuizID),
				logger.String("userId", result.UserID),
				logger.Error(err),
			)
		}
	}
}

// Subscribe returns a channel that receives leaderboard updates for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	s.metrics.AddSubscribers(1)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancel()
			s.metrics.AddSubscribers(-1)
		})
	}, nil
}

// Leaderboard returns the current standings of a live session.
func (s *QuizService) Leaderboard(_ context.Context, quizID string) (domain.Leaderboard, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Leave removes a participant from the session and drops the session if empty.
func (s *QuizService) Leave(ctx context.Context, quizID, userID string) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return
	}
	session.leave(userID)
	if session.isEmpty() {
		s.sessions.DeleteIfEmpty(quizID)
		s.log.Debug(ctx, "session closed", logger.String("quizId", quizID))
	}
}

// Session is an in-memory representation of a quiz.
type Session struct {
	id             string
	createdAt      time.Time
	now            func() time.Time
	mu             sync.RWMutex
	participants   map[string]*domain.Participant
	departed       map[string]*domain.Participant
	questionStarts map[string]time.Time
	subscribers    map[chan domain.Leaderboard]struct{}
}

func newSession(id string) *Session {
	return newSessionWithClock(id, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:             id,
		createdAt:      now(),
		now:            now,
		participants:   make(map[string]*domain.Participant),
		departed:       make(map[string]*domain.Participant),
		questionStarts: make(map[string]time.Time),
		subscribers:    make(map[chan domain.Leaderboard]struct{}),
	}
}

func (s *Session) join(userID, displayName string) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if participant, ok := s.participants[userID]; ok {
		participant.DisplayName = displayName
		participant.LastUpdated = now
	} else if participant, ok := s.departed[userID]; ok {
		// Rejoining restores score, streak and answered questions.
		delete(s.departed, userID)
		participant.DisplayName = displayName
		s.participants[userID] = participant
	} else {
		s.participants[userID] = &domain.Participant{
			UserID:      userID,
			DisplayName: displayName,
			Answered:    make(map[string]struct{}),
			LastUpdated: now,
		}
	}
	return s.broadcastLocked()
}

// startQuestion (re)opens questionID. Restarting clears nothing: participants who
// already answered stay locked out of it.
func (s *Session) startQuestion(questionID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	startedAt := s.now()
	s.questionStarts[questionID] = startedAt
	return startedAt
}

func (s *Session) applyAnswer(engine *scoring.Engine, userID string, question domain.Question, optionID string, correct bool, limit time.Duration) (domain.AnswerResult, domain.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	participant, ok := s.participants[userID]
	if !ok {
		return domain.AnswerResult{}, domain.Leaderboard{}, domain.ErrParticipantNotFound
	}
	startedAt, ok := s.questionStarts[question.ID]
	if !ok {
		return domain.AnswerResult{}, domain.Leaderboard{}, domain.ErrQuestionNotStarted
	}
	if _, done := participant.Answered[question.ID]; done {
		return domain.AnswerResult{}, domain.Leaderboard{}, domain.ErrAlreadyAnswered
	}

	elapsed := now.Sub(startedAt)
	result := domain.AnswerResult{
		QuizID:     s.id,
		UserID:     userID,
		QuestionID: question.ID,
		OptionID:   optionID,
		Correct:    correct,
		ElapsedMs:  elapsed.Milliseconds(),
		AnsweredAt: now,
	}

	streak := 0
	if correct {
		streak = participant.Streak + 1
		b, err := engine.Breakdown(question.BasePoints(), scoring.SpeedMultiplier(elapsed, limit), streak)
		if err != nil {
			return domain.AnswerResult{}, domain.Leaderboard{}, fmt.Errorf("score answer: %w", err)
		}
		result.BasePoints = b.BasePoints
		result.SpeedBonus = b.SpeedBonus
		result.StreakBonus = b.StreakBonus
		result.Awarded = b.TotalPoints
		participant.Score += b.TotalPoints
	}

	participant.Streak = streak
	participant.Answered[question.ID] = struct{}{}
	participant.LastUpdated = now

	result.Streak = streak
	result.TotalScore = participant.Score
	return result, s.broadcastLocked(), nil
}

// leave hides a participant from the leaderboard. Their record is kept for the
// life of the session so a reconnect cannot answer the same question twice.
func (s *Session) leave(userID string) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if participant, ok := s.participants[userID]; ok {
		delete(s.participants, userID)
		s.departed[userID] = participant
	}
	return s.broadcastLocked()
}

func (s *Session) isEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// IsEmpty reports whether the session has no participants.
func (s *Session) IsEmpty() bool {
	return s.isEmpty()
}

// Snapshot returns the current leaderboard without notifying subscribers.
func (s *Session) Snapshot() domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.Leaderboard {
	lb := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

func (s *Session) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.participants))
	for _, participant := range s.participants {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      participant.UserID,
			DisplayName: participant.DisplayName,
			Score:       participant.Score,
			Streak:      participant.Streak,
		})
	}

	// Score desc, then whoever reached it first, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := s.participants[entries[i].UserID]
		pj := s.participants[entries[j].UserID]
		if pi != nil && pj != nil && !pi.LastUpdated.Equal(pj.LastUpdated) {
			return pi.LastUpdated.Before(pj.LastUpdated)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})

	return domain.Leaderboard{
		QuizID:    s.id,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}

// checkSubmission resolves the question and reports whether the chosen option is correct.
func checkSubmission(quiz domain.Quiz, submission domain.AnswerSubmission) (domain.Question, bool, error) {
	question, ok := quiz.FindQuestion(submission.QuestionID)
	if !ok {
		return domain.Question{}, false, domain.ErrQuestionNotFound
	}
	for _, opt := range question.Options {
		if opt.ID == submission.OptionID {
			return question, opt.Correct, nil
		}
	}
	return domain.Question{}, false, domain.ErrOptionNotFound
}
