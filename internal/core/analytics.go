package core

import (
	"sort"
	"time"
)

const overviewWindowDays = 30

type (
	// DailySpend is one day in the trailing spending trend.
	DailySpend struct {
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
		Income float64 `json:"income"`
	}

	// CategorySpend is the all-time total for one category.
	CategorySpend struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	MonthOverview struct {
		TotalSpent float64         `json:"totalSpent"`
		Balance    float64         `json:"balance"`
		Daily      []DailySpend    `json:"daily"`
		Categories []CategorySpend `json:"categories"`
	}
)

// BuildMonthOverview aggregates a snapshot into the analytics overview: a
// 30-day daily trend ending today and per-category totals sorted by spend.
// Days are bucketed by calendar date in the transaction's own location.
func BuildMonthOverview(snap Snapshot, now time.Time) MonthOverview {
	var dailyIncome float64
	if snap.User != nil && snap.User.MonthlyIncome > 0 {
		dailyIncome = snap.User.MonthlyIncome / overviewWindowDays
	}

	daily := make([]DailySpend, overviewWindowDays)
	index := make(map[string]int, overviewWindowDays)
	for i := 0; i < overviewWindowDays; i++ {
		day := now.AddDate(0, 0, i-overviewWindowDays+1).Format("2006-01-02")
		daily[i] = DailySpend{Date: day, Income: dailyIncome}
		index[day] = i
	}

	byCategory := make(map[string]float64)
	for _, tx := range snap.Transactions {
		if i, ok := index[tx.Date.Format("2006-01-02")]; ok {
			daily[i].Amount += tx.Amount
		}
		byCategory[tx.Category] += tx.Amount
	}

	categories := make([]CategorySpend, 0, len(byCategory))
	for name, value := range byCategory {
		categories = append(categories, CategorySpend{Name: name, Value: value})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Value != categories[j].Value {
			return categories[i].Value > categories[j].Value
		}
		return categories[i].Name < categories[j].Name
	})

	return MonthOverview{
		TotalSpent: snap.MonthlyExpenditure,
		Balance:    snap.Balance,
		Daily:      daily,
		Categories: categories,
	}
}
