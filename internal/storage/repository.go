// Package storage is the persistence adapter: it checkpoints the Financial
// Profile to a local SQLite database and restores it at startup. Only the
// documented snapshot fields are persisted (balance, health score, mood,
// transactions, goals, monthly expenditure, token, user).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finpal/internal/core"

	_ "modernc.org/sqlite"
)

const dateFormat = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

// PendingSyncTransaction identifies a transaction row not yet mirrored to
// the sheets ledger.
type PendingSyncTransaction struct {
	Seq       int64
	CreatedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveScalars upserts the single profile row: every snapshot field except
// the transaction and goal lists, which have their own tables.
func (r *SQLiteRepository) SaveScalars(ctx context.Context, snap core.Snapshot) error {
	userJSON := ""
	if snap.User != nil {
		raw, err := json.Marshal(snap.User)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		userJSON = string(raw)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profile (id, balance, health_score, mood, monthly_expenditure, token, user_json, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			balance = excluded.balance,
			health_score = excluded.health_score,
			mood = excluded.mood,
			monthly_expenditure = excluded.monthly_expenditure,
			token = excluded.token,
			user_json = excluded.user_json,
			updated_at = CURRENT_TIMESTAMP`,
		snap.Balance, snap.HealthScore, string(snap.Mood), snap.MonthlyExpenditure, snap.Token, userJSON)
	if err != nil {
		return fmt.Errorf("save profile scalars: %w", err)
	}
	return nil
}

// InsertTransaction appends a transaction row and returns its local
// sequence number, which the sync pipeline uses as the message id.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, category, description, date, is_recurring)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Amount, tx.Category, tx.Description, tx.Date.Format(dateFormat), boolToInt(tx.IsRecurring))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction seq: %w", err)
	}

	slog.InfoContext(ctx, "Transaction persisted",
		"seq", seq,
		"transaction_id", tx.ID,
		"amount", tx.Amount,
		"category", tx.Category)
	return seq, nil
}

func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.Goal) error {
	var deadline any
	if g.Deadline != nil {
		deadline = g.Deadline.Format(dateFormat)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, name, target_amount, current_amount, deadline, color)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.TargetAmount, g.CurrentAmount, deadline, g.Color)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// AddGoalProgress mirrors the store's delta rule: only the oldest row with
// the external id is touched, an unknown id updates nothing.
func (r *SQLiteRepository) AddGoalProgress(ctx context.Context, id string, delta float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE goals SET current_amount = current_amount + ?
		WHERE seq = (SELECT MIN(seq) FROM goals WHERE id = ?)`,
		delta, id)
	if err != nil {
		return fmt.Errorf("add goal progress: %w", err)
	}
	return nil
}

// ReplaceAll rewrites the whole persisted profile in one database
// transaction. Used for demo seeding and any other wholesale replace.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, snap core.Snapshot) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	if _, err := dbtx.ExecContext(ctx, `DELETE FROM goals`); err != nil {
		return fmt.Errorf("clear goals: %w", err)
	}

	// Insert oldest first so seq order matches display order on restore.
	for i := len(snap.Transactions) - 1; i >= 0; i-- {
		tx := snap.Transactions[i]
		if _, err := dbtx.ExecContext(ctx, `
			INSERT INTO transactions (id, amount, category, description, date, is_recurring, synced)
			VALUES (?, ?, ?, ?, ?, ?, 1)`,
			tx.ID, tx.Amount, tx.Category, tx.Description, tx.Date.Format(dateFormat), boolToInt(tx.IsRecurring)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	for _, g := range snap.Goals {
		var deadline any
		if g.Deadline != nil {
			deadline = g.Deadline.Format(dateFormat)
		}
		if _, err := dbtx.ExecContext(ctx, `
			INSERT INTO goals (id, name, target_amount, current_amount, deadline, color)
			VALUES (?, ?, ?, ?, ?, ?)`,
			g.ID, g.Name, g.TargetAmount, g.CurrentAmount, deadline, g.Color); err != nil {
			return fmt.Errorf("insert goal %s: %w", g.ID, err)
		}
	}

	userJSON := ""
	if snap.User != nil {
		raw, err := json.Marshal(snap.User)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		userJSON = string(raw)
	}
	if _, err := dbtx.ExecContext(ctx, `
		INSERT INTO profile (id, balance, health_score, mood, monthly_expenditure, token, user_json, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			balance = excluded.balance,
			health_score = excluded.health_score,
			mood = excluded.mood,
			monthly_expenditure = excluded.monthly_expenditure,
			token = excluded.token,
			user_json = excluded.user_json,
			updated_at = CURRENT_TIMESTAMP`,
		snap.Balance, snap.HealthScore, string(snap.Mood), snap.MonthlyExpenditure, snap.Token, userJSON); err != nil {
		return fmt.Errorf("replace profile scalars: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	slog.InfoContext(ctx, "Profile replaced in storage",
		"transactions", len(snap.Transactions),
		"goals", len(snap.Goals))
	return nil
}

// LoadSnapshot restores the persisted profile. The second return value is
// false when nothing has been persisted yet.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error) {
	var (
		snap     core.Snapshot
		mood     string
		userJSON string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT balance, health_score, mood, monthly_expenditure, token, user_json
		FROM profile WHERE id = 1`).
		Scan(&snap.Balance, &snap.HealthScore, &mood, &snap.MonthlyExpenditure, &snap.Token, &userJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("load profile scalars: %w", err)
	}
	snap.Mood = core.Mood(mood)
	if userJSON != "" {
		var u core.User
		if err := json.Unmarshal([]byte(userJSON), &u); err != nil {
			return core.Snapshot{}, false, fmt.Errorf("unmarshal user: %w", err)
		}
		snap.User = &u
	}

	txs, err := r.listTransactions(ctx)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	snap.Transactions = txs

	goals, err := r.listGoals(ctx)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	snap.Goals = goals

	return snap, true, nil
}

func (r *SQLiteRepository) listTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, category, description, date, is_recurring
		FROM transactions ORDER BY date DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx        core.Transaction
			date      string
			recurring int
		)
		if err := rows.Scan(&tx.ID, &tx.Amount, &tx.Category, &tx.Description, &date, &recurring); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Date, err = time.Parse(dateFormat, date)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", date, err)
		}
		tx.IsRecurring = recurring != 0
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) listGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, target_amount, current_amount, deadline, color
		FROM goals ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g        core.Goal
			deadline sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &deadline, &g.Color); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if deadline.Valid && deadline.String != "" {
			d, err := time.Parse(dateFormat, deadline.String)
			if err != nil {
				return nil, fmt.Errorf("parse goal deadline %q: %w", deadline.String, err)
			}
			g.Deadline = &d
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetTransaction fetches one row by local sequence number.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, seq int64) (core.Transaction, error) {
	var (
		tx        core.Transaction
		date      string
		recurring int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, amount, category, description, date, is_recurring
		FROM transactions WHERE seq = ?`, seq).
		Scan(&tx.ID, &tx.Amount, &tx.Category, &tx.Description, &date, &recurring)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", seq, err)
	}
	tx.Date, err = time.Parse(dateFormat, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	tx.IsRecurring = recurring != 0
	return tx, nil
}

// GetPendingSync lists transactions not yet mirrored to the ledger.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, created_at FROM transactions
		WHERE synced = 0 ORDER BY seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncTransaction
	for rows.Next() {
		var (
			p       PendingSyncTransaction
			created string
		)
		if err := rows.Scan(&p.Seq, &created); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		// CURRENT_TIMESTAMP is stored as UTC text.
		if ts, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			p.CreatedAt = ts
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced flags a transaction as mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, seq int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET synced = 1 WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "seq", seq)
	return nil
}

// ListRecurring returns the recurring transaction templates for the monthly
// re-application schedule.
func (r *SQLiteRepository) ListRecurring(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, category, description, date, is_recurring
		FROM transactions WHERE is_recurring = 1 ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list recurring: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx        core.Transaction
			date      string
			recurring int
		)
		if err := rows.Scan(&tx.ID, &tx.Amount, &tx.Category, &tx.Description, &date, &recurring); err != nil {
			return nil, fmt.Errorf("scan recurring: %w", err)
		}
		tx.Date, err = time.Parse(dateFormat, date)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", date, err)
		}
		tx.IsRecurring = recurring != 0
		out = append(out, tx)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
