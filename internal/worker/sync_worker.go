package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finpal/internal/amqp"
	"finpal/internal/sheets"
	"finpal/internal/storage"
)

// SyncWorker mirrors locally persisted transactions to the external ledger.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.TransactionWriter
	batchSize int
}

func NewSyncWorker(repo *storage.SQLiteRepository, writer sheets.TransactionWriter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   repo,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"seq", msg.Seq,
		"version", msg.Version)

	return w.syncTransaction(ctx, msg.Seq)
}

func (w *SyncWorker) syncTransaction(ctx context.Context, seq int64) error {
	tx, err := w.storage.GetTransaction(ctx, seq)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	rowRef, err := w.writer.Append(ctx, tx)
	if err != nil {
		return fmt.Errorf("append transaction to ledger: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, seq); err != nil {
		// The row already landed in the ledger; a retry would duplicate it,
		// so surface the error without re-appending.
		return fmt.Errorf("mark transaction synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction mirrored to ledger",
		"seq", seq,
		"transaction_id", tx.ID,
		"sheets_ref", rowRef)

	return nil
}

// DrainPending mirrors transactions that were persisted while the worker was
// down. It runs at startup before the AMQP consumer takes over.
func (w *SyncWorker) DrainPending(ctx context.Context) (int, error) {
	processed := 0

	for {
		pending, err := w.storage.GetPendingSync(ctx, w.batchSize)
		if err != nil {
			return processed, fmt.Errorf("list pending sync: %w", err)
		}
		if len(pending) == 0 {
			return processed, nil
		}

		for _, p := range pending {
			if err := w.syncTransaction(ctx, p.Seq); err != nil {
				return processed, err
			}
			processed++
		}

		if len(pending) < w.batchSize {
			return processed, nil
		}
	}
}
