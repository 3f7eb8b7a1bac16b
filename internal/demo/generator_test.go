package demo

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"finpal/internal/core"
)

var testNow = time.Date(2025, time.June, 20, 10, 0, 0, 0, time.UTC)

func newTestGenerator(seed int64) *Generator {
	return NewGenerator(
		rand.New(rand.NewSource(seed)),
		core.ClockFunc(func() time.Time { return testNow }),
	)
}

func TestCategoryTotalsReconcileExactly(t *testing.T) {
	// The one property worth testing precisely: for any random source, the
	// sum of generated amounts per category equals the seeded total exactly,
	// spikes excluded.
	for seed := int64(0); seed < 20; seed++ {
		g := newTestGenerator(seed)
		txs := g.Transactions(DefaultSeeds)

		sums := make(map[string]float64)
		counts := make(map[string]int)
		for _, tx := range txs {
			if strings.HasPrefix(tx.ID, "spike-") {
				continue
			}
			sums[tx.Category] += tx.Amount
			counts[tx.Category]++
		}

		for _, cs := range DefaultSeeds {
			if sums[cs.Name] != cs.Total {
				t.Fatalf("seed %d: category %s sums to %v, want exactly %v", seed, cs.Name, sums[cs.Name], cs.Total)
			}
			if counts[cs.Name] != cs.Count {
				t.Fatalf("seed %d: category %s has %d transactions, want %d", seed, cs.Name, counts[cs.Name], cs.Count)
			}
		}
	}
}

func TestImpulseSpikes(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		g := newTestGenerator(seed)
		txs := g.Transactions(DefaultSeeds)

		var spikes int
		for _, tx := range txs {
			if !strings.HasPrefix(tx.ID, "spike-") {
				continue
			}
			spikes++
			if tx.Amount < 500 || tx.Amount >= 1500 {
				t.Fatalf("seed %d: spike amount %v outside [500, 1500)", seed, tx.Amount)
			}
			if tx.Category != spikeCategory {
				t.Fatalf("seed %d: spike category %q", seed, tx.Category)
			}
		}
		if spikes < 2 || spikes > 3 {
			t.Fatalf("seed %d: %d spikes, want 2 or 3", seed, spikes)
		}
	}
}

func TestDatesWithinTrailingWindowSortedDescending(t *testing.T) {
	g := newTestGenerator(7)
	txs := g.Transactions(DefaultSeeds)

	oldest := testNow.AddDate(0, 0, -trailingDays)
	for i, tx := range txs {
		if tx.Date.After(testNow) || tx.Date.Before(oldest) {
			t.Fatalf("transaction %d dated %v outside trailing window", i, tx.Date)
		}
		if i > 0 && txs[i-1].Date.Before(tx.Date) {
			t.Fatalf("transactions not sorted descending at index %d", i)
		}
	}
}

func TestProfileDerivedFigures(t *testing.T) {
	g := newTestGenerator(3)
	snap := g.Profile()

	var spent float64
	for _, cs := range DefaultSeeds {
		spent += cs.Total
	}

	if snap.MonthlyExpenditure != spent {
		t.Errorf("monthlyExpenditure = %v, want %v", snap.MonthlyExpenditure, spent)
	}
	if snap.Balance != demoIncome-spent {
		t.Errorf("balance = %v, want %v", snap.Balance, demoIncome-spent)
	}
	if snap.HealthScore != demoHealth {
		t.Errorf("healthScore = %d, want %d", snap.HealthScore, demoHealth)
	}
	if snap.Mood != core.MoodNeutral {
		t.Errorf("mood = %q, want neutral", snap.Mood)
	}
	if len(snap.Goals) != 2 {
		t.Errorf("goals = %d, want 2", len(snap.Goals))
	}
	if snap.User == nil || snap.User.MonthlyIncome != demoIncome {
		t.Errorf("demo user not seeded: %+v", snap.User)
	}
}
