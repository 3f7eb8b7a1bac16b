package sheets

import (
	"context"

	"finpal/internal/core"
)

// Ports for outbound ledger adapters.
type (
	// TransactionWriter mirrors a transaction to an external ledger.
	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
