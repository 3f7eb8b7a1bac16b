package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"finpal/internal/core"
	"finpal/internal/services"
	"finpal/internal/storage"
)

// RecurringProcessor re-applies transactions flagged as recurring on a cron
// schedule. Each run creates fresh copies dated now, so the usual balance
// and health-score rules apply to them. It runs inside the server process,
// against the live store, so the persisted profile scalars keep a single
// writer.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
	profile *services.ProfileService
	clock   core.Clock
}

func NewRecurringProcessor(repo *storage.SQLiteRepository, profile *services.ProfileService, clock core.Clock) *RecurringProcessor {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &RecurringProcessor{
		storage: repo,
		profile: profile,
		clock:   clock,
	}
}

// ProcessDue applies every recurring template once. Failures on individual
// templates are logged and skipped so one bad row cannot stall the rest.
func (p *RecurringProcessor) ProcessDue(ctx context.Context) (int, error) {
	if p.storage == nil || p.profile == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.storage.ListRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"templates", len(templates))

	processed := 0
	for _, tmpl := range templates {
		tx := core.Transaction{
			Amount:      tmpl.Amount,
			Category:    tmpl.Category,
			Description: tmpl.Description,
			Date:        p.clock.Now(),
		}

		if _, err := p.profile.AddTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to apply recurring transaction",
				"template_id", tmpl.ID,
				"description", tmpl.Description,
				"error", err)
			continue
		}

		processed++
		slog.InfoContext(ctx, "Applied recurring transaction",
			"template_id", tmpl.ID,
			"amount", tmpl.Amount,
			"category", tmpl.Category)
	}

	return processed, nil
}

// Run schedules ProcessDue on the given cron expression and blocks until the
// context is cancelled.
func (p *RecurringProcessor) Run(ctx context.Context, schedule string) error {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		if _, err := p.ProcessDue(ctx); err != nil {
			slog.ErrorContext(ctx, "Recurring processing run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid recurring schedule %q: %w", schedule, err)
	}

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()

	return ctx.Err()
}
