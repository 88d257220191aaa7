package escrow

import (
	"context"
	"log/slog"

	"poolpay/pkg/domain"
)

//go:generate mockgen -source=transfer.go -destination=mocks/transfer_mock.go -package=mocks Transferer

// Transferer moves value out of escrow to a recipient. Implementations wrap
// whatever payment rail the deployment settles on; the recipient's side may
// run arbitrary code before Transfer returns, so callers must finalize all
// bookkeeping first.
type Transferer interface {
	Transfer(ctx context.Context, to domain.Account, amount uint64) error
}

// TransferFunc adapts a function to the Transferer interface.
type TransferFunc func(ctx context.Context, to domain.Account, amount uint64) error

func (f TransferFunc) Transfer(ctx context.Context, to domain.Account, amount uint64) error {
	return f(ctx, to, amount)
}

// LogTransferer acknowledges transfers and logs them. It backs deployments
// where the actual payout rail is reconciled downstream from the audit trail.
type LogTransferer struct {
	logger *slog.Logger
}

func NewLogTransferer(logger *slog.Logger) *LogTransferer {
	return &LogTransferer{logger: logger}
}

func (t *LogTransferer) Transfer(ctx context.Context, to domain.Account, amount uint64) error {
	t.logger.InfoContext(ctx, "outbound transfer",
		"to", to.String(),
		"amount", amount,
	)
	return nil
}
