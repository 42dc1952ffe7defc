// Package scoring computes the points awarded for a single correct answer.
//
// Total points are base points plus a speed bonus and a streak bonus:
//
//	speedBonus  = floor(base * speedMultiplier)
//	streakBonus = floor(base * streakStep * (streak - 1))   when streak > 1
//	total       = base + speedBonus + streakBonus
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultStreakStep is the fraction of base points added per consecutive correct
// answer beyond the first.
const DefaultStreakStep = 0.1

// MaxTotalPoints bounds any computed total. Inputs whose score could exceed it
// are rejected so the integer result never wraps.
const MaxTotalPoints = 1 << 53

// ErrInvalidInput is returned for inputs outside the scoring domain.
var ErrInvalidInput = errors.New("invalid scoring input")

// Breakdown itemizes a computed score.
type Breakdown struct {
	BasePoints  int `json:"basePoints"`
	SpeedBonus  int `json:"speedBonus"`
	StreakBonus int `json:"streakBonus"`
	TotalPoints int `json:"totalPoints"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithStreakStep overrides the per-streak bonus fraction. Negative or NaN values are ignored.
func WithStreakStep(step float64) Option {
	return func(e *Engine) {
		if step >= 0 && !math.IsInf(step, 0) {
			e.streakStep = step
		}
	}
}

// Engine is a stateless scorer and is safe for concurrent use.
type Engine struct {
	streakStep float64
}

// NewEngine creates an Engine with defaults and applies opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{streakStep: DefaultStreakStep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Score returns total points using the default engine.
func Score(basePoints int, speedBonusMultiplier float64, streakCount int) (int, error) {
	return defaultEngine.Score(basePoints, speedBonusMultiplier, streakCount)
}

// Score returns total points for one correct answer.
func (e *Engine) Score(basePoints int, speedBonusMultiplier float64, streakCount int) (int, error) {
	b, err := e.Breakdown(basePoints, speedBonusMultiplier, streakCount)
	if err != nil {
		return 0, err
	}
	return b.TotalPoints, nil
}

// Breakdown validates the input and returns each component of the score.
func (e *Engine) Breakdown(basePoints int, speedBonusMultiplier float64, streakCount int) (Breakdown, error) {
	if err := validate(basePoints, speedBonusMultiplier, streakCount); err != nil {
		return Breakdown{}, err
	}
	if bound := e.upperBound(basePoints, speedBonusMultiplier, streakCount); bound > MaxTotalPoints || bound > float64(math.MaxInt) {
		return Breakdown{}, fmt.Errorf("%w: score for base %d and streak %d exceeds %d", ErrInvalidInput, basePoints, streakCount, int64(MaxTotalPoints))
	}

	base := float64(basePoints)
	speed := int(math.Floor(base * speedBonusMultiplier))
	streak := 0
	if streakCount > 1 {
		streak = int(math.Floor(base * e.streakStep * float64(streakCount-1)))
	}

	return Breakdown{
		BasePoints:  basePoints,
		SpeedBonus:  speed,
		StreakBonus: streak,
		TotalPoints: basePoints + speed + streak,
	}, nil
}

func validate(basePoints int, multiplier float64, streakCount int) error {
	switch {
	case basePoints < 1:
		return fmt.Errorf("%w: base points %d must be at least 1", ErrInvalidInput, basePoints)
	case math.IsNaN(multiplier) || multiplier < 0 || multiplier > 1:
		return fmt.Errorf("%w: speed multiplier %v must be within [0,1]", ErrInvalidInput, multiplier)
	case streakCount < 0:
		return fmt.Errorf("%w: streak count %d must not be negative", ErrInvalidInput, streakCount)
	}
	return nil
}

// upperBound is the unfloored total in float64, which cannot wrap.
func (e *Engine) upperBound(basePoints int, multiplier float64, streakCount int) float64 {
	base := float64(basePoints)
	bound := base * (1 + multiplier)
	if streakCount > 1 {
		bound += base * e.streakStep * float64(streakCount-1)
	}
	return bound
}

// SpeedMultiplier maps answer latency to [0,1]: 1 for an instant answer, decaying
// linearly to 0 at the time limit.
func SpeedMultiplier(elapsed, limit time.Duration) float64 {
	if limit <= 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := float64(limit-elapsed) / float64(limit)
	return math.Max(0, math.Min(1, ratio))
}
