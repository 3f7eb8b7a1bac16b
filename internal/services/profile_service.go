package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finpal/internal/amqp"
	"finpal/internal/api"
	"finpal/internal/core"
	"finpal/internal/profile"
	"finpal/internal/storage"
)

// chatFallbackText is returned when the companion backend is unreachable.
const chatFallbackText = "Sorry, I'm having trouble connecting to my brain right now."

const checkpointTimeout = 5 * time.Second

// ProfileService orchestrates profile mutations across the in-memory store,
// SQLite and AMQP, and proxies auth and chat to the companion backend.
type ProfileService struct {
	store      *profile.Store
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	backend    *api.Client
	clock      core.Clock
}

func NewProfileService(store *profile.Store, repo *storage.SQLiteRepository, amqpClient *amqp.Client, backend *api.Client, clock core.Clock) *ProfileService {
	if clock == nil {
		clock = core.SystemClock()
	}
	s := &ProfileService{
		store:      store,
		storage:    repo,
		amqpClient: amqpClient,
		backend:    backend,
		clock:      clock,
	}

	// Every mutation checkpoints the scalar state so a restart restores the
	// derived metrics without replaying transactions.
	if repo != nil {
		store.Subscribe(s.checkpoint)
	}

	return s
}

func (s *ProfileService) checkpoint(snap core.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	if err := s.storage.SaveScalars(ctx, snap); err != nil {
		slog.Error("Failed to checkpoint profile scalars", "error", err)
	}
}

// Snapshot returns the current profile state.
func (s *ProfileService) Snapshot() core.Snapshot {
	return s.store.Snapshot()
}

// Restore loads the persisted profile into the store. A missing or empty
// database leaves the seeded defaults in place.
func (s *ProfileService) Restore(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	snap, found, err := s.storage.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return nil
	}

	s.store.Replace(snap)
	return nil
}

// AddTransaction applies a transaction to the profile, persists it and
// publishes a sync message. Persistence and publishing failures are logged
// but do not roll back the in-memory state.
func (s *ProfileService) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Date.IsZero() {
		tx.Date = s.clock.Now()
	}

	if err := s.store.AddTransaction(tx); err != nil {
		return core.Transaction{}, err
	}

	if s.storage == nil {
		return tx, nil
	}

	seq, err := s.storage.InsertTransaction(ctx, tx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to persist transaction",
			"transaction_id", tx.ID, "error", err)
		return tx, nil
	}

	if err := s.publishSyncMessage(ctx, seq, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"seq", seq, "error", err)
		// Don't fail the request - the transaction is saved locally
	}

	return tx, nil
}

// SetMood overrides the avatar mood directly.
func (s *ProfileService) SetMood(ctx context.Context, m core.Mood) error {
	return s.store.SetMood(m)
}

// UpdateHealth overrides the health score without applying any penalty.
func (s *ProfileService) UpdateHealth(ctx context.Context, score int) {
	s.store.UpdateHealth(score)
}

// AddGoal registers a savings goal and persists it.
func (s *ProfileService) AddGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	if err := s.store.AddGoal(g); err != nil {
		return core.Goal{}, err
	}

	if s.storage != nil {
		if err := s.storage.InsertGoal(ctx, g); err != nil {
			slog.ErrorContext(ctx, "Failed to persist goal",
				"goal_id", g.ID, "error", err)
		}
	}

	return g, nil
}

// UpdateGoalProgress adjusts a goal's saved amount. An unknown id is a
// silent no-op.
func (s *ProfileService) UpdateGoalProgress(ctx context.Context, id string, delta float64) {
	s.store.UpdateGoalProgress(id, delta)

	if s.storage != nil {
		if err := s.storage.AddGoalProgress(ctx, id, delta); err != nil {
			slog.ErrorContext(ctx, "Failed to persist goal progress",
				"goal_id", id, "error", err)
		}
	}
}

// LoadDemoProfile replaces the whole profile with generated demo data.
func (s *ProfileService) LoadDemoProfile(ctx context.Context, gen DemoProfiler) (core.Snapshot, error) {
	snap := gen.Profile()
	s.store.Replace(snap)

	if s.storage != nil {
		if err := s.storage.ReplaceAll(ctx, snap); err != nil {
			return snap, fmt.Errorf("persist demo profile: %w", err)
		}
	}

	return s.store.Snapshot(), nil
}

// DemoProfiler produces a complete demo profile snapshot.
type DemoProfiler interface {
	Profile() core.Snapshot
}

// Login authenticates against the companion backend and stores the session.
func (s *ProfileService) Login(ctx context.Context, username, password string) (core.Snapshot, error) {
	if s.backend == nil {
		return core.Snapshot{}, api.ErrLoginFailed
	}

	token, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return core.Snapshot{}, err
	}

	s.store.Login(token, core.User{Username: username, Email: username})
	return s.store.Snapshot(), nil
}

// Register creates an account on the companion backend and, on success,
// logs the new user in.
func (s *ProfileService) Register(ctx context.Context, username, email, password string) (core.Snapshot, error) {
	if s.backend == nil {
		return core.Snapshot{}, api.ErrLoginFailed
	}

	if err := s.backend.Register(ctx, username, email, password); err != nil {
		return core.Snapshot{}, err
	}

	token, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return core.Snapshot{}, err
	}

	s.store.Login(token, core.User{Username: username, Email: email})
	return s.store.Snapshot(), nil
}

// Logout clears the session.
func (s *ProfileService) Logout(ctx context.Context) {
	s.store.Logout()
}

// Chat forwards a message to the companion assistant. A backend failure is
// absorbed into a static fallback reply so the conversation never errors
// out; an attached log_expense action is applied as a regular transaction.
func (s *ProfileService) Chat(ctx context.Context, message string) (api.ChatResponse, error) {
	snap := s.store.Snapshot()

	if s.backend == nil {
		return s.chatFallback(snap), nil
	}

	resp, err := s.backend.Chat(ctx, message, snap.HealthScore)
	if err != nil {
		slog.ErrorContext(ctx, "Chat backend call failed", "error", err)
		return s.chatFallback(snap), nil
	}

	if resp.ShouldLogExpense() {
		tx := core.Transaction{
			Amount:      resp.Action.Amount,
			Category:    resp.Action.Category,
			Description: resp.Action.Description,
			Date:        s.clock.Now(),
		}
		if tx.Category == "" {
			tx.Category = "General"
		}
		if tx.Description == "" {
			tx.Description = "Expense from chat"
		}
		if _, err := s.AddTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to apply chat expense action",
				"amount", tx.Amount, "error", err)
		}
	}

	return resp, nil
}

func (s *ProfileService) chatFallback(snap core.Snapshot) api.ChatResponse {
	return api.ChatResponse{
		Text: chatFallbackText,
		Mood: string(snap.Mood),
	}
}

func (s *ProfileService) publishSyncMessage(ctx context.Context, seq, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}

	return s.amqpClient.PublishTransactionSync(ctx, seq, version)
}

// Close closes the storage and AMQP connections.
func (s *ProfileService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close profile service: %v", errs)
	}

	return nil
}
