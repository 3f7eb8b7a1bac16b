package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"finpal/internal/amqp"
	"finpal/internal/core"
	"finpal/internal/storage"
)

type fakeWriter struct {
	appended []core.Transaction
	err      error
}

func (f *fakeWriter) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.appended = append(f.appended, tx)
	return fmt.Sprintf("Ledger!A%d", len(f.appended)), nil
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

func insertTx(t *testing.T, repo *storage.SQLiteRepository, tx core.Transaction) int64 {
	t.Helper()
	seq, err := repo.InsertTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	return seq
}

func TestHandleSyncMessage(t *testing.T) {
	repo := newTestRepo(t)
	writer := &fakeWriter{}
	w := NewSyncWorker(repo, writer, 10)

	seq := insertTx(t, repo, core.Transaction{
		ID:       "tx-1",
		Amount:   42,
		Category: "Food",
		Date:     time.Now().UTC(),
	})

	msg := amqp.NewTransactionSyncMessage(seq, 1)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	if len(writer.appended) != 1 || writer.appended[0].ID != "tx-1" {
		t.Fatalf("appended = %+v", writer.appended)
	}

	pending, err := repo.GetPendingSync(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetPendingSync: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestHandleSyncMessageMissingTransaction(t *testing.T) {
	repo := newTestRepo(t)
	w := NewSyncWorker(repo, &fakeWriter{}, 10)

	msg := amqp.NewTransactionSyncMessage(999, 1)
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatalf("expected error for unknown seq")
	}
}

func TestDrainPending(t *testing.T) {
	repo := newTestRepo(t)
	writer := &fakeWriter{}
	w := NewSyncWorker(repo, writer, 2) // small batch forces multiple rounds

	for i := 0; i < 5; i++ {
		insertTx(t, repo, core.Transaction{
			ID:     fmt.Sprintf("tx-%d", i),
			Amount: float64(i + 1),
			Date:   time.Now().UTC(),
		})
	}

	n, err := w.DrainPending(context.Background())
	if err != nil {
		t.Fatalf("DrainPending: %v", err)
	}
	if n != 5 {
		t.Fatalf("processed = %d, want 5", n)
	}
	if len(writer.appended) != 5 {
		t.Fatalf("appended = %d, want 5", len(writer.appended))
	}
}

func TestDrainPendingStopsOnWriterError(t *testing.T) {
	repo := newTestRepo(t)
	writer := &fakeWriter{err: errors.New("quota exceeded")}
	w := NewSyncWorker(repo, writer, 10)

	insertTx(t, repo, core.Transaction{ID: "tx-1", Amount: 10, Date: time.Now().UTC()})

	if _, err := w.DrainPending(context.Background()); err == nil {
		t.Fatalf("expected error")
	}

	// The row stays pending for the next drain.
	pending, err := repo.GetPendingSync(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetPendingSync: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
}
