package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// liveQuizzesKey indexes quizzes with a live session on any instance.
	liveQuizzesKey = "quiz:sessions"

	defaultMarkerTimeout = 500 * time.Millisecond
)

// SessionStore keeps sessions and their broadcast fan-out in process and
// publishes a liveness marker per quiz to Redis:
//
//	SET  quiz:session:{quizID} {createdAt} EX ttl
//	SADD quiz:sessions {quizID}
//
// The marker is refreshed on join, question start and answer. Marker writes
// are best effort, bounded by a short timeout and made outside the store lock,
// so a Redis outage never blocks a game.
type SessionStore struct {
	client        *redis.Client
	ttl           time.Duration
	markerTimeout time.Duration
	now           func() time.Time
	log           logger.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithSessionClock makes new sessions read time from now.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// WithSessionLogger reports failed marker writes to l.
func WithSessionLogger(l logger.Logger) SessionOption {
	return func(s *SessionStore) { s.log = l }
}

// WithMarkerTimeout bounds each liveness marker write.
func WithMarkerTimeout(d time.Duration) SessionOption {
	return func(s *SessionStore) {
		if d > 0 {
			s.markerTimeout = d
		}
	}
}

func NewSessionStore(client *redis.Client, ttl time.Duration, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		client:        client,
		ttl:           ttl,
		markerTimeout: defaultMarkerTimeout,
		now:           time.Now,
		log:           logger.Nop(),
		sessions:      make(map[string]*app.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) GetOrCreate(quizID string) *app.Session {
	s.mu.Lock()
	session, ok := s.sessions[quizID]
	if !ok {
		session = app.NewSessionWithClock(quizID, s.now)
		s.sessions[quizID] = session
	}
	s.mu.Unlock()

	s.mark(context.Background(), quizID, session)
	return session
}

// Touch refreshes the liveness marker of a session that still exists in process.
// A marker that already expired is written again.
func (s *SessionStore) Touch(ctx context.Context, quizID string) {
	session, ok := s.Get(quizID)
	if !ok {
		return
	}
	s.mark(ctx, quizID, session)
}

func (s *SessionStore) mark(ctx context.Context, quizID string, session *app.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.markerTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(quizID), session.CreatedAt().UTC().Format(time.RFC3339), s.ttl)
	pipe.SAdd(ctx, liveQuizzesKey, quizID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn(ctx, "mark session live failed", logger.String("quizId", quizID), logger.Error(err))
	}
}

func (s *SessionStore) Get(quizID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[quizID]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(quizID string) {
	s.mu.Lock()
	session, ok := s.sessions[quizID]
	if !ok || !session.IsEmpty() {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, quizID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.markerTimeout)
	defer cancel()
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(quizID))
	pipe.SRem(ctx, liveQuizzesKey, quizID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn(ctx, "clear session marker failed", logger.String("quizId", quizID), logger.Error(err))
	}
}

// LiveQuizzes lists quizzes whose liveness marker has not expired, across all
// instances sharing the Redis. Index entries with an expired marker are pruned.
func (s *SessionStore) LiveQuizzes(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, liveQuizzesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list live quizzes: %w", err)
	}
	live := make([]string, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		n, err := s.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check session marker: %w", err)
		}
		if n == 0 {
			stale = append(stale, id)
			continue
		}
		live = append(live, id)
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, liveQuizzesKey, stale...).Err()
	}
	sort.Strings(live)
	return live, nil
}

func sessionKey(quizID string) string {
	return "quiz:session:" + quizID
}
