package core

import (
	"testing"
	"time"
)

func TestBuildMonthOverviewDailyTrend(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Balance:            1000,
		MonthlyExpenditure: 75,
		User:               &User{MonthlyIncome: 3000},
		Transactions: []Transaction{
			{Amount: 50, Category: "Food", Date: now},
			{Amount: 25, Category: "Food", Date: now.AddDate(0, 0, -1)},
			{Amount: 99, Category: "Rent", Date: now.AddDate(0, 0, -40)}, // outside window
		},
	}

	ov := BuildMonthOverview(snap, now)

	if len(ov.Daily) != 30 {
		t.Fatalf("daily = %d days, want 30", len(ov.Daily))
	}
	last := ov.Daily[29]
	if last.Date != "2025-03-15" || last.Amount != 50 {
		t.Fatalf("last day = %+v", last)
	}
	if ov.Daily[28].Amount != 25 {
		t.Fatalf("previous day amount = %v", ov.Daily[28].Amount)
	}
	if ov.Daily[0].Amount != 0 {
		t.Fatalf("out-of-window transaction leaked into trend")
	}
	if last.Income != 100 {
		t.Fatalf("daily income = %v, want 100", last.Income)
	}
	if ov.TotalSpent != 75 || ov.Balance != 1000 {
		t.Fatalf("scalars = %v/%v", ov.TotalSpent, ov.Balance)
	}
}

func TestBuildMonthOverviewCategories(t *testing.T) {
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Transactions: []Transaction{
			{Amount: 10, Category: "Food", Date: now},
			{Amount: 30, Category: "Rent", Date: now.AddDate(0, 0, -60)},
			{Amount: 15, Category: "Food", Date: now},
		},
	}

	ov := BuildMonthOverview(snap, now)

	// Category totals span all transactions, also outside the daily window.
	want := []CategorySpend{{Name: "Rent", Value: 30}, {Name: "Food", Value: 25}}
	if len(ov.Categories) != len(want) {
		t.Fatalf("categories = %+v", ov.Categories)
	}
	for i, c := range want {
		if ov.Categories[i] != c {
			t.Fatalf("categories[%d] = %+v, want %+v", i, ov.Categories[i], c)
		}
	}
}

func TestBuildMonthOverviewNoUser(t *testing.T) {
	ov := BuildMonthOverview(Snapshot{}, time.Now())
	for _, d := range ov.Daily {
		if d.Income != 0 {
			t.Fatalf("income without user = %v", d.Income)
		}
	}
}
