package quota

import (
	"context"
	"fmt"
	"log/slog"

	"ytarchive/internal/logging"
	"ytarchive/internal/services"
	"ytarchive/internal/store"
)

// Store is the persistence surface the ledger needs.
type Store interface {
	ReserveUnits(ctx context.Context, name string, units int) error
	QualifyingAccounts(ctx context.Context, role store.Role, units int) ([]*store.QuotaAccount, error)
}

// Ledger reserves cost units against durable per-account counters. It never waits;
// callers own retry policy.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// NewLedger wraps a store.
func NewLedger(st Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: st, logger: logging.NewComponentLogger(logger, "quota")}
}

// Reserve adds units to account when the result stays within its cap. A reservation
// that would overshoot fails with store.ErrQuotaExceeded and leaves the account as is.
func (l *Ledger) Reserve(ctx context.Context, account string, units int) error {
	if units <= 0 {
		return services.Wrap(services.ErrValidation, "quota", "reserve",
			fmt.Sprintf("units must be positive, got %d", units), nil)
	}
	if err := l.store.ReserveUnits(ctx, account, units); err != nil {
		return err
	}
	l.logger.Debug("quota reserved",
		logging.String(logging.FieldAccount, account),
		logging.Int("units", units),
	)
	return nil
}

// Candidates lists accounts of role that can absorb units, ordered by name.
func (l *Ledger) Candidates(ctx context.Context, role store.Role, units int) ([]*store.QuotaAccount, error) {
	return l.store.QualifyingAccounts(ctx, role, units)
}

// Meter charges one account before each billed call.
type Meter interface {
	Charge(ctx context.Context, units int) error
}

// MeterFunc adapts a function to Meter.
type MeterFunc func(ctx context.Context, units int) error

// Charge calls f.
func (f MeterFunc) Charge(ctx context.Context, units int) error { return f(ctx, units) }

// Unmetered accepts every charge. Tests and probes that cost nothing use it.
var Unmetered Meter = MeterFunc(func(context.Context, int) error { return nil })

// Meter returns a Meter bound to account.
func (l *Ledger) Meter(account string) Meter {
	return MeterFunc(func(ctx context.Context, units int) error {
		return l.Reserve(ctx, account, units)
	})
}
