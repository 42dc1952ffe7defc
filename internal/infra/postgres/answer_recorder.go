package postgres

import (
	"context"
	"fmt"
	"time"

	"live-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// answerRow is the quiz_answers table model.
type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	QuizID      string    `bun:"quiz_id,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	QuestionID  string    `bun:"question_id,notnull"`
	OptionID    string    `bun:"option_id,notnull"`
	Correct     bool      `bun:"correct,notnull"`
	ElapsedMs   int64     `bun:"elapsed_ms,notnull"`
	Streak      int       `bun:"streak,notnull"`
	BasePoints  int       `bun:"base_points,notnull"`
	SpeedBonus  int       `bun:"speed_bonus,notnull"`
	StreakBonus int       `bun:"streak_bonus,notnull"`
	Awarded     int       `bun:"awarded,notnull"`
	TotalScore  int       `bun:"total_score,notnull"`
	AnsweredAt  time.Time `bun:"answered_at,notnull"`
}

// AnswerRecorder keeps an append-only answer history in Postgres.
type AnswerRecorder struct {
	db    *bun.DB
	newID func() uuid.UUID
}

func NewAnswerRecorder(db *bun.DB) *AnswerRecorder {
	return &AnswerRecorder{db: db, newID: uuid.New}
}

func (r *AnswerRecorder) Name() string { return "postgres" }

func (r *AnswerRecorder) RecordAnswer(ctx context.Context, result domain.AnswerResult) error {
	row := toRow(r.newID(), result)
	if _, err := r.db.NewInsert().Model(&row).On("CONFLICT (quiz_id, user_id, question_id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// History returns a participant's answers for a quiz, oldest first.
func (r *AnswerRecorder) History(ctx context.Context, quizID, userID string) ([]domain.AnswerResult, error) {
	var rows []answerRow
	err := r.db.NewSelect().Model(&rows).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	out := make([]domain.AnswerResult, len(rows))
	for i, row := range rows {
		out[i] = row.toResult()
	}
	return out, nil
}

func toRow(id uuid.UUID, r domain.AnswerResult) answerRow {
	return answerRow{
		ID:          id,
		QuizID:      r.QuizID,
		UserID:      r.UserID,
		QuestionID:  r.QuestionID,
		OptionID:    r.OptionID,
		Correct:     r.Correct,
		ElapsedMs:   r.ElapsedMs,
		Streak:      r.Streak,
		BasePoints:  r.BasePoints,
		SpeedBonus:  r.SpeedBonus,
		StreakBonus: r.StreakBonus,
		Awarded:     r.Awarded,
		TotalScore:  r.TotalScore,
		AnsweredAt:  r.AnsweredAt.UTC(),
	}
}

func (row answerRow) toResult() domain.AnswerResult {
	return domain.AnswerResult{
		QuizID:      row.QuizID,
		UserID:      row.UserID,
		QuestionID:  row.QuestionID,
		OptionID:    row.OptionID,
		Correct:     row.Correct,
		ElapsedMs:   row.ElapsedMs,
		Streak:      row.Streak,
		BasePoints:  row.BasePoints,
		SpeedBonus:  row.SpeedBonus,
		StreakBonus: row.StreakBonus,
		Awarded:     row.Awarded,
		TotalScore:  row.TotalScore,
		AnsweredAt:  row.AnsweredAt,
	}
}
