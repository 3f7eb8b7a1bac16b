package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"finpal/internal/api"
	"finpal/internal/core"
	"finpal/internal/demo"
	"finpal/internal/profile"
	"finpal/internal/storage"
)

var fixedNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() core.Clock {
	return core.ClockFunc(func() time.Time { return fixedNow })
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAddTransactionAssignsIDAndDate(t *testing.T) {
	svc := NewProfileService(profile.New(fixedClock()), nil, nil, nil, fixedClock())

	tx, err := svc.AddTransaction(context.Background(), core.Transaction{Amount: 25, Category: "Food"})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if tx.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !tx.Date.Equal(fixedNow) {
		t.Fatalf("date = %v, want %v", tx.Date, fixedNow)
	}

	snap := svc.Snapshot()
	if snap.Balance != core.DefaultBalance-25 {
		t.Fatalf("balance = %v", snap.Balance)
	}
}

func TestAddTransactionPersistsPendingSync(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewProfileService(profile.New(fixedClock()), repo, nil, nil, fixedClock())

	if _, err := svc.AddTransaction(context.Background(), core.Transaction{Amount: 60, Category: "Transport"}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	pending, err := repo.GetPendingSync(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetPendingSync: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewProfileService(profile.New(fixedClock()), repo, nil, nil, fixedClock())

	if _, err := svc.AddTransaction(context.Background(), core.Transaction{Amount: 51, Category: "Rent", Date: fixedNow}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	want := svc.Snapshot()

	restored := NewProfileService(profile.New(fixedClock()), repo, nil, nil, fixedClock())
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got := restored.Snapshot()
	if got.Balance != want.Balance || got.HealthScore != want.HealthScore || got.Mood != want.Mood {
		t.Fatalf("restored scalars = %v/%d/%s, want %v/%d/%s",
			got.Balance, got.HealthScore, got.Mood, want.Balance, want.HealthScore, want.Mood)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Category != "Rent" {
		t.Fatalf("restored transactions = %+v", got.Transactions)
	}
}

func TestRestoreEmptyDatabaseKeepsDefaults(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewProfileService(profile.New(fixedClock()), repo, nil, nil, fixedClock())

	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	snap := svc.Snapshot()
	if snap.Balance != core.DefaultBalance || snap.HealthScore != core.DefaultHealth {
		t.Fatalf("defaults overwritten: %v/%d", snap.Balance, snap.HealthScore)
	}
}

func TestChatFallbackOnBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewProfileService(profile.New(fixedClock()), nil, nil, api.New(server.URL), fixedClock())

	resp, err := svc.Chat(context.Background(), "how am I doing?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != chatFallbackText {
		t.Fatalf("text = %q", resp.Text)
	}
	if resp.Mood != string(core.MoodNeutral) {
		t.Fatalf("mood = %q", resp.Mood)
	}
}

func TestChatAppliesExpenseAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ChatResponse{
			Text: "Logged it for you.",
			Mood: "neutral",
			Action: &api.ChatAction{
				Type:   api.ActionLogExpense,
				Amount: 42.5,
			},
		})
	}))
	defer server.Close()

	svc := NewProfileService(profile.New(fixedClock()), nil, nil, api.New(server.URL), fixedClock())

	if _, err := svc.Chat(context.Background(), "I bought lunch"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(snap.Transactions))
	}
	tx := snap.Transactions[0]
	if tx.Amount != 42.5 || tx.Category != "General" || tx.Description != "Expense from chat" {
		t.Fatalf("tx = %+v", tx)
	}
	if snap.Balance != core.DefaultBalance-42.5 {
		t.Fatalf("balance = %v", snap.Balance)
	}
}

func TestLoginStoresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}))
	defer server.Close()

	svc := NewProfileService(profile.New(fixedClock()), nil, nil, api.New(server.URL), fixedClock())

	snap, err := svc.Login(context.Background(), "dana@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if snap.Token != "tok-123" {
		t.Fatalf("token = %q", snap.Token)
	}
	if snap.User == nil || snap.User.Email != "dana@example.com" {
		t.Fatalf("user = %+v", snap.User)
	}

	svc.Logout(context.Background())
	snap = svc.Snapshot()
	if snap.Token != "" || snap.User != nil {
		t.Fatalf("logout left session: %q %+v", snap.Token, snap.User)
	}
}

func TestLoadDemoProfile(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewProfileService(profile.New(fixedClock()), repo, nil, nil, fixedClock())

	gen := demo.NewGenerator(rand.New(rand.NewSource(7)), fixedClock())
	snap, err := svc.LoadDemoProfile(context.Background(), gen)
	if err != nil {
		t.Fatalf("LoadDemoProfile: %v", err)
	}
	if snap.HealthScore != 62 {
		t.Fatalf("health = %d, want 62", snap.HealthScore)
	}
	if len(snap.Goals) != 2 {
		t.Fatalf("goals = %d, want 2", len(snap.Goals))
	}

	// The demo profile survives a restart.
	restored := NewProfileService(profile.New(fixedClock()), repo, nil, nil, fixedClock())
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got := restored.Snapshot()
	if len(got.Transactions) != len(snap.Transactions) {
		t.Fatalf("restored %d transactions, want %d", len(got.Transactions), len(snap.Transactions))
	}
}

func TestCloseWithNilComponents(t *testing.T) {
	svc := NewProfileService(profile.New(fixedClock()), nil, nil, nil, nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
