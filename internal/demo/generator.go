// Package demo fabricates a synthetic Financial Profile for sessions that
// have no real income data.
//
// The generator has deterministic structure and randomized magnitude: each
// seeded category's total is split across a fixed number of transactions
// with randomized proportions, but the per-category sum always reconciles
// exactly to the seeded total. A handful of "impulse spike" transactions are
// layered on top as additive extras.
package demo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"finpal/internal/core"
)

// CategorySeed fixes the shape of one generated category.
type CategorySeed struct {
	Name  string
	Total float64
	Count int
}

// DefaultSeeds is the stock demo spending profile.
var DefaultSeeds = []CategorySeed{
	{Name: "Food", Total: 6200, Count: 12},
	{Name: "Transport", Total: 2100, Count: 8},
	{Name: "Rent", Total: 7000, Count: 1},
	{Name: "Entertainment", Total: 1800, Count: 4},
	{Name: "Misc", Total: 1350, Count: 5},
}

const (
	demoHealth        = 62
	demoIncome        = 35000
	spikeCategory     = "Entertainment"
	spikeDescription  = "Impulse Buy"
	trailingDays      = 30
	splitFactorBase   = 0.8
	splitFactorSpread = 0.4
)

// Generator produces synthetic transactions. Both the random source and the
// clock are injected so tests can pin them.
type Generator struct {
	rng   *rand.Rand
	clock core.Clock
}

func NewGenerator(rng *rand.Rand, clock core.Clock) *Generator {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Generator{rng: rng, clock: clock}
}

// Transactions generates the full synthetic list for the given seeds:
// per-category proportional splits, then 2-3 impulse spikes, sorted newest
// first.
func (g *Generator) Transactions(seeds []CategorySeed) []core.Transaction {
	now := g.clock.Now()
	var out []core.Transaction

	id := 1
	for _, seed := range seeds {
		remaining := seed.Total
		for i := 0; i < seed.Count; i++ {
			var amount float64
			if i == seed.Count-1 {
				// Remainder goes to the final transaction so the category
				// total reconciles exactly.
				amount = remaining
			} else {
				left := float64(seed.Count - i + 1)
				factor := splitFactorBase + g.rng.Float64()*splitFactorSpread
				amount = math.Floor(remaining / left * factor)
			}
			remaining -= amount

			out = append(out, core.Transaction{
				ID:          fmt.Sprintf("demo-%d", id),
				Amount:      amount,
				Category:    seed.Name,
				Description: seed.Name + " Expense",
				Date:        now.AddDate(0, 0, -g.rng.Intn(trailingDays)),
			})
			id++
		}
	}

	spikes := 2 + g.rng.Intn(2)
	for i := 0; i < spikes; i++ {
		out = append(out, core.Transaction{
			ID:          fmt.Sprintf("spike-%d", i),
			Amount:      math.Floor(500 + g.rng.Float64()*1000),
			Category:    spikeCategory,
			Description: spikeDescription,
			Date:        now.AddDate(0, 0, -g.rng.Intn(trailingDays)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Profile builds the complete demo Financial Profile: seeded transactions,
// two starter goals, and derived figures (monthly expenditure equals the
// seeded category totals; spikes are additive extras and deliberately
// excluded, matching the seeded figure the transactions reconcile to).
func (g *Generator) Profile() core.Snapshot {
	var spent float64
	for _, seed := range DefaultSeeds {
		spent += seed.Total
	}

	return core.Snapshot{
		Balance:            demoIncome - spent,
		HealthScore:        demoHealth,
		Mood:               core.MoodNeutral,
		MonthlyExpenditure: spent,
		Transactions:       g.Transactions(DefaultSeeds),
		Goals: []core.Goal{
			{ID: "g1", Name: "New Phone", TargetAmount: 70000, CurrentAmount: 12000, Color: "blue"},
			{ID: "g2", Name: "Beach Trip", TargetAmount: 25000, CurrentAmount: 18000, Color: "green"},
		},
		User: &core.User{
			Username:            "demo",
			Email:               "demo@example.com",
			FullName:            "Demo User",
			MonthlyIncome:       demoIncome,
			SpendingPersonality: "Tries to save but slips sometimes",
		},
	}
}
