// Package profile implements the Financial Profile store: the single place
// where client state (balance, health score, mood, transactions, goals,
// session) is read and mutated.
//
// The store is an explicitly owned, dependency-injected object. Every
// mutation recomputes the derived metrics under the same rules the product
// has always used, publishes the full new snapshot to subscribers, and never
// touches the wall clock directly (a core.Clock is injected so the
// current-month rule is testable).
package profile

import (
	"sync"

	"finpal/internal/core"
)

// Subscriber receives the full new snapshot after every mutation.
// Notifications are not coalesced: a burst of mutations fires one call per
// mutation, in mutation order, after the store lock has been released. When
// mutations race, a snapshot may be delivered on another mutator's
// goroutine.
type Subscriber func(core.Snapshot)

// Store holds the Financial Profile for one app session. All access goes
// through its methods; the zero value is not usable, construct with New.
type Store struct {
	mu         sync.Mutex
	clock      core.Clock
	state      core.Snapshot
	subs       []Subscriber
	pending    []core.Snapshot
	delivering bool
}

// New returns a store seeded with the default session profile.
func New(clock core.Clock) *Store {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Store{
		clock: clock,
		state: core.Snapshot{
			Balance:     core.DefaultBalance,
			HealthScore: core.DefaultHealth,
			Mood:        core.MoodNeutral,
		},
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn for post-mutation notifications. There is no
// unsubscribe; subscribers live as long as the store.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// AddTransaction prepends tx and recomputes the derived metrics:
//
//	balance            -= amount
//	monthlyExpenditure += amount, iff tx month index == current month index
//	healthScore         = clamp(prev - penalty, 0, 100)
//	mood                = derived from the new score (overwrites any
//	                      externally set mood, last writer wins)
//
// The month comparison deliberately ignores the year; the monthly figure is
// reset only by a full profile replace, never by a calendar rollover.
// Negative amounts are credits: they raise the balance and lower the
// monthly figure. Only non-finite amounts are rejected.
func (s *Store) AddTransaction(tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.Transactions = append([]core.Transaction{tx}, s.state.Transactions...)
	s.state.Balance -= tx.Amount
	if tx.Date.Month() == s.clock.Now().Month() {
		s.state.MonthlyExpenditure += tx.Amount
	}
	s.state.HealthScore = core.ClampHealth(s.state.HealthScore - core.Penalty(tx.Amount))
	s.state.Mood = core.MoodForHealth(s.state.HealthScore)
	s.notifyLocked()
	return nil
}

// SetMood overrides the mood directly. This is the external-signal path
// (chat responses, explicit UI calls) and the only way to reach "tired".
func (s *Store) SetMood(m core.Mood) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Mood = m
	s.notifyLocked()
	return nil
}

// UpdateHealth overrides the health score and re-derives the mood from it.
// No transaction penalty is applied; the score is clamped to keep the
// [0, 100] invariant.
func (s *Store) UpdateHealth(score int) {
	s.mu.Lock()
	s.state.HealthScore = core.ClampHealth(score)
	s.state.Mood = core.MoodForHealth(s.state.HealthScore)
	s.notifyLocked()
}

// AddGoal appends g. Duplicate ids are permitted and not reconciled.
func (s *Store) AddGoal(g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Goals = append(s.state.Goals, g)
	s.notifyLocked()
	return nil
}

// UpdateGoalProgress adds delta to the goal's current amount. An unknown id
// is a silent no-op. The stored amount is never clamped to the target;
// presentation clamps percentages on its own.
func (s *Store) UpdateGoalProgress(id string, delta float64) {
	s.mu.Lock()
	for i := range s.state.Goals {
		if s.state.Goals[i].ID == id {
			s.state.Goals[i].CurrentAmount += delta
			break
		}
	}
	s.notifyLocked()
}

// Login sets the token and user together. Observers never see one without
// the other.
func (s *Store) Login(token string, user core.User) {
	s.mu.Lock()
	s.state.Token = token
	u := user
	s.state.User = &u
	s.notifyLocked()
}

// Logout clears the token and user together.
func (s *Store) Logout() {
	s.mu.Lock()
	s.state.Token = ""
	s.state.User = nil
	s.notifyLocked()
}

// Replace swaps the whole profile wholesale. Used for the startup restore
// from persistence and for demo seeding; this is the only operation that
// can reset the monthly expenditure.
func (s *Store) Replace(snap core.Snapshot) {
	s.mu.Lock()
	s.state = snap.Clone()
	s.notifyLocked()
}

// notifyLocked enqueues the current snapshot and drains the queue. It must
// be called with the lock held and takes over releasing it.
//
// Snapshots are delivered in mutation order by a single draining goroutine:
// mutators arriving while a drain is in flight enqueue and return. Without
// the queue a subscriber that persists snapshots could receive an older one
// after a newer one and write back stale state. Mutations issued from inside
// a callback also just enqueue, so subscribers may read or mutate the store.
func (s *Store) notifyLocked() {
	s.pending = append(s.pending, s.state.Clone())
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		snap := s.pending[0]
		s.pending = s.pending[1:]
		subs := make([]Subscriber, len(s.subs))
		copy(subs, s.subs)
		s.mu.Unlock()

		for _, fn := range subs {
			fn(snap.Clone())
		}
		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}
