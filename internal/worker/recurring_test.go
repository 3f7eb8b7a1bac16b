package worker

import (
	"context"
	"testing"
	"time"

	"finpal/internal/core"
	"finpal/internal/profile"
	"finpal/internal/services"
)

func fixedClock(now time.Time) core.Clock {
	return core.ClockFunc(func() time.Time { return now })
}

func TestProcessDueAppliesTemplates(t *testing.T) {
	now := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	repo := newTestRepo(t)
	store := profile.New(fixedClock(now))
	svc := services.NewProfileService(store, repo, nil, nil, fixedClock(now))

	template := core.Transaction{
		ID:          "rent-template",
		Amount:      700,
		Category:    "Rent",
		Description: "Monthly rent",
		Date:        now.AddDate(0, -1, 0),
		IsRecurring: true,
	}
	insertTx(t, repo, template)

	p := NewRecurringProcessor(repo, svc, fixedClock(now))
	n, err := p.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	snap := svc.Snapshot()
	if len(snap.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(snap.Transactions))
	}
	applied := snap.Transactions[0]
	if applied.Amount != 700 || applied.Category != "Rent" || !applied.Date.Equal(now) {
		t.Fatalf("applied = %+v", applied)
	}
	if applied.IsRecurring {
		t.Fatalf("applied copy must not become a new template")
	}
	if snap.Balance != core.DefaultBalance-700 {
		t.Fatalf("balance = %v", snap.Balance)
	}
}

func TestProcessDueDoesNotMultiplyTemplates(t *testing.T) {
	now := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	repo := newTestRepo(t)
	store := profile.New(fixedClock(now))
	svc := services.NewProfileService(store, repo, nil, nil, fixedClock(now))

	insertTx(t, repo, core.Transaction{
		ID:          "sub-template",
		Amount:      15,
		Category:    "Entertainment",
		Date:        now.AddDate(0, -1, 0),
		IsRecurring: true,
	})

	p := NewRecurringProcessor(repo, svc, fixedClock(now))
	for i := 0; i < 2; i++ {
		if _, err := p.ProcessDue(context.Background()); err != nil {
			t.Fatalf("ProcessDue run %d: %v", i+1, err)
		}
	}

	templates, err := repo.ListRecurring(context.Background())
	if err != nil {
		t.Fatalf("ListRecurring: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("templates = %d, want 1", len(templates))
	}
}

func TestProcessDueCheckpointsLiveScalars(t *testing.T) {
	now := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	repo := newTestRepo(t)
	store := profile.New(fixedClock(now))
	svc := services.NewProfileService(store, repo, nil, nil, fixedClock(now))

	// Mutations land before the cron fires; the recurring run must
	// checkpoint the balance including them, not a stale restore.
	if _, err := svc.AddTransaction(context.Background(), core.Transaction{
		ID: "coffee", Amount: 40, Category: "Food", Date: now,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	insertTx(t, repo, core.Transaction{
		ID:          "rent-template",
		Amount:      700,
		Category:    "Rent",
		Date:        now.AddDate(0, -1, 0),
		IsRecurring: true,
	})

	p := NewRecurringProcessor(repo, svc, fixedClock(now))
	if _, err := p.ProcessDue(context.Background()); err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}

	persisted, found, err := repo.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !found {
		t.Fatalf("no persisted profile")
	}
	live := svc.Snapshot()
	if persisted.Balance != live.Balance {
		t.Fatalf("persisted balance = %v, live balance = %v", persisted.Balance, live.Balance)
	}
	if want := core.DefaultBalance - 40 - 700; persisted.Balance != want {
		t.Fatalf("persisted balance = %v, want %v", persisted.Balance, want)
	}
	if persisted.MonthlyExpenditure != live.MonthlyExpenditure {
		t.Fatalf("persisted monthly = %v, live monthly = %v",
			persisted.MonthlyExpenditure, live.MonthlyExpenditure)
	}
}

func TestProcessDueUninitialized(t *testing.T) {
	p := NewRecurringProcessor(nil, nil, nil)
	if _, err := p.ProcessDue(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	repo := newTestRepo(t)
	store := profile.New(fixedClock(time.Now()))
	svc := services.NewProfileService(store, repo, nil, nil, nil)

	p := NewRecurringProcessor(repo, svc, nil)
	if err := p.Run(context.Background(), "not a schedule"); err == nil {
		t.Fatalf("expected schedule parse error")
	}
}
