package domain

import "time"

const (
	// DefaultQuestionPoints is used when a question does not set Points.
	DefaultQuestionPoints = 1
	// DefaultTimeLimit is used when a question does not set TimeLimitMs.
	DefaultTimeLimit = 20 * time.Second
)

// Participant represents a quiz participant and their accumulated score.
type Participant struct {
	UserID      string
	DisplayName string
	Score       int
	Streak      int
	Answered    map[string]struct{}
	LastUpdated time.Time
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Streak      int    `json:"streak"`
}

// Leaderboard captures the ordered scoreboard for a quiz session.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AnswerSubmission models the scoring signal from clients.
type AnswerSubmission struct {
	QuestionID string
	OptionID   string
}

// AnswerResult summarizes the outcome of a submission for a single user.
type AnswerResult struct {
	QuizID      string    `json:"quizId"`
	UserID      string    `json:"userId"`
	QuestionID  string    `json:"questionId"`
	OptionID    string    `json:"optionId"`
	Correct     bool      `json:"correct"`
	ElapsedMs   int64     `json:"elapsedMs"`
	Streak      int       `json:"streak"`
	BasePoints  int       `json:"basePoints"`
	SpeedBonus  int       `json:"speedBonus"`
	StreakBonus int       `json:"streakBonus"`
	Awarded     int       `json:"awarded"`
	TotalScore  int       `json:"totalScore"`
	AnsweredAt  time.Time `json:"answeredAt"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id" yaml:"id"`
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID          string   `json:"id" yaml:"id"`
	Prompt      string   `json:"prompt" yaml:"prompt"`
	Options     []Option `json:"options" yaml:"options"`
	Points      int      `json:"points" yaml:"points"`           // defaults to 1 if zero
	TimeLimitMs int      `json:"timeLimitMs" yaml:"timeLimitMs"` // defaults to DefaultTimeLimit if zero
}

// BasePoints returns the configured points or the default.
func (q Question) BasePoints() int {
	if q.Points <= 0 {
		return DefaultQuestionPoints
	}
	return q.Points
}

// TimeLimit returns the answer window for the question, falling back to fallback
// and then DefaultTimeLimit when unset.
func (q Question) TimeLimit(fallback time.Duration) time.Duration {
	if q.TimeLimitMs > 0 {
		return time.Duration(q.TimeLimitMs) * time.Millisecond
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeLimit
}

// Quiz is a collection of questions.
type Quiz struct {
	ID        string     `json:"id" yaml:"id"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// FindQuestion returns the question with the given ID.
func (q Quiz) FindQuestion(questionID string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == questionID {
			return question, true
		}
	}
	return Question{}, false
}
