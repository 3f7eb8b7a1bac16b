package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	MoodHappy    Mood = "happy"
	MoodNeutral  Mood = "neutral"
	MoodStressed Mood = "stressed"
	MoodTired    Mood = "tired"
)

// Health score thresholds for the derived mood mapping. MoodTired is only
// reachable through a direct SetMood call, never through the mapping.
const (
	HealthHappyAbove    = 80
	HealthStressedBelow = 40
)

// Penalty schedule applied on every added transaction: a flat step function
// on a single fixed cut point, independent of currency magnitude.
const (
	PenaltyThreshold = 50.0
	PenaltyLarge     = 5
	PenaltySmall     = 1
)

const (
	HealthScoreFloor = 0
	HealthScoreCeil  = 100
	DefaultHealth    = 85
	DefaultBalance   = 1250.00
)

type (
	Mood string

	Transaction struct {
		ID          string    `json:"id"`
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		Date        time.Time `json:"date"`
		IsRecurring bool      `json:"isRecurring,omitempty"`
	}

	Goal struct {
		ID            string     `json:"id"`
		Name          string     `json:"name"`
		TargetAmount  float64    `json:"targetAmount"`
		CurrentAmount float64    `json:"currentAmount"`
		Deadline      *time.Time `json:"deadline,omitempty"`
		Color         string     `json:"color"`
	}

	User struct {
		Username            string  `json:"username"`
		Email               string  `json:"email"`
		FullName            string  `json:"fullName,omitempty"`
		MonthlyIncome       float64 `json:"monthlyIncome,omitempty"`
		SpendingPersonality string  `json:"spendingPersonality,omitempty"`
	}

	// Snapshot is the full Financial Profile state. It is also the exact
	// shape persisted to local storage: balance, healthScore, mood,
	// transactions, goals, monthlyExpenditure, token and user, nothing more.
	Snapshot struct {
		Balance            float64       `json:"balance"`
		HealthScore        int           `json:"healthScore"`
		Mood               Mood          `json:"mood"`
		Transactions       []Transaction `json:"transactions"`
		Goals              []Goal        `json:"goals"`
		MonthlyExpenditure float64       `json:"monthlyExpenditure"`
		Token              string        `json:"token,omitempty"`
		User               *User         `json:"user,omitempty"`
	}
)

var (
	ErrNonFiniteAmount = errors.New("amount is not a finite number")
	ErrEmptyGoalName   = errors.New("empty goal name")
	ErrInvalidMood     = errors.New("invalid mood")
)

// Validate rejects transactions whose amount would corrupt the derived
// metrics. Negative amounts are legal and behave as credits; free-text
// category and description are accepted as-is.
func (t Transaction) Validate() error {
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return ErrNonFiniteAmount
	}
	return nil
}

func (g Goal) Validate() error {
	if len(strings.TrimSpace(g.Name)) == 0 {
		return ErrEmptyGoalName
	}
	if math.IsNaN(g.TargetAmount) || math.IsInf(g.TargetAmount, 0) {
		return ErrNonFiniteAmount
	}
	if math.IsNaN(g.CurrentAmount) || math.IsInf(g.CurrentAmount, 0) {
		return ErrNonFiniteAmount
	}
	return nil
}

func (m Mood) Validate() error {
	switch m {
	case MoodHappy, MoodNeutral, MoodStressed, MoodTired:
		return nil
	}
	return ErrInvalidMood
}

// MoodForHealth derives a mood from a health score. Stressed wins below 40,
// happy above 80, neutral covers everything in between including both
// boundaries.
func MoodForHealth(score int) Mood {
	switch {
	case score < HealthStressedBelow:
		return MoodStressed
	case score > HealthHappyAbove:
		return MoodHappy
	default:
		return MoodNeutral
	}
}

// ClampHealth bounds a score to the valid [0, 100] range.
func ClampHealth(score int) int {
	if score < HealthScoreFloor {
		return HealthScoreFloor
	}
	if score > HealthScoreCeil {
		return HealthScoreCeil
	}
	return score
}

// Penalty returns the health deduction for a transaction amount.
func Penalty(amount float64) int {
	if amount > PenaltyThreshold {
		return PenaltyLarge
	}
	return PenaltySmall
}

// Clone returns a deep copy of the snapshot so callers can hand it out
// without exposing internal slices to mutation.
func (s Snapshot) Clone() Snapshot {
	out := s
	// Slices are always allocated so a fresh profile marshals as [] rather
	// than null.
	out.Transactions = make([]Transaction, len(s.Transactions))
	copy(out.Transactions, s.Transactions)
	out.Goals = make([]Goal, len(s.Goals))
	copy(out.Goals, s.Goals)
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
