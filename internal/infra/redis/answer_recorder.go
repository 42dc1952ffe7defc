package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"live-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AnswerRecorder mirrors scores into Redis so a quiz's standings survive a
// process restart and can be read by other instances:
//
//	ZINCRBY quiz:{quizID}:scoreboard {awarded} {userID}
//	HSET    quiz:{quizID}:streaks {userID} {streak}
type AnswerRecorder struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerRecorder(client *redis.Client, ttl time.Duration) *AnswerRecorder {
	return &AnswerRecorder{client: client, ttl: ttl}
}

func (r *AnswerRecorder) Name() string { return "redis" }

func (r *AnswerRecorder) RecordAnswer(ctx context.Context, result domain.AnswerResult) error {
	board := scoreboardKey(result.QuizID)
	streaks := streaksKey(result.QuizID)

	pipe := r.client.TxPipeline()
	pipe.ZIncrBy(ctx, board, float64(result.Awarded), result.UserID)
	pipe.HSet(ctx, streaks, result.UserID, result.Streak)
	if r.ttl > 0 {
		pipe.Expire(ctx, board, r.ttl)
		pipe.Expire(ctx, streaks, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record answer in redis: %w", err)
	}
	return nil
}

// TopScores returns up to n scoreboard entries, highest first.
func (r *AnswerRecorder) TopScores(ctx context.Context, quizID string, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := r.client.ZRevRangeWithScores(ctx, scoreboardKey(quizID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read scoreboard: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	userIDs := make([]string, len(members))
	for i, m := range members {
		userIDs[i] = fmt.Sprint(m.Member)
	}
	streaks, err := r.client.HMGet(ctx, streaksKey(quizID), userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("read streaks: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(members))
	for i, m := range members {
		entries[i] = domain.LeaderboardEntry{
			UserID: userIDs[i],
			Score:  int(m.Score),
		}
		if raw, ok := streaks[i].(string); ok {
			entries[i].Streak, _ = strconv.Atoi(raw)
		}
	}
	return entries, nil
}

func scoreboardKey(quizID string) string {
	return "quiz:" + quizID + ":scoreboard"
}

func streaksKey(quizID string) string {
	return "quiz:" + quizID + ":streaks"
}
