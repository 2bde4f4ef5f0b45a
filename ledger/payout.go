package ledger

import (
	"context"
	"errors"
	"fmt"

	"xdao.co/trustchain/domain"
)

// Transfer is one payout from custody.
type Transfer struct {
	To     domain.Address `json:"to"`
	Amount domain.Amount  `json:"amount"`
}

// Total sums the amounts of ts.
func Total(ts []Transfer) (domain.Amount, error) {
	var sum domain.Amount
	for _, t := range ts {
		var err error
		if sum, err = sum.Add(t.Amount); err != nil {
			return 0, err
		}
	}
	return sum, nil
}

// PayOut applies ts in order. If any transfer fails, the transfers already
// applied are reversed newest first and the failure is returned, so the
// ledger ends as it started. Zero amounts are skipped.
//
// Structured errors from the ledger are returned unchanged; anything else is
// wrapped as LEDGER_FAILURE. A failed reversal is always LEDGER_FAILURE.
func PayOut(ctx context.Context, l Ledger, ts []Transfer) error {
	done := make([]Transfer, 0, len(ts))
	for _, t := range ts {
		if t.Amount == 0 {
			continue
		}
		if err := l.TransferOut(ctx, t.To, t.Amount); err != nil {
			if rerr := reverse(ctx, l, done); rerr != nil {
				return domain.WrapError(domain.CodeLedgerFailure, "payout failed and could not be reversed", errors.Join(err, rerr))
			}
			return ledgerError(fmt.Sprintf("transfer of %s to %s failed", t.Amount, t.To), err)
		}
		done = append(done, t)
	}
	return nil
}

// reverse undoes completed payouts newest first.
func reverse(ctx context.Context, l Ledger, done []Transfer) error {
	rev, canReverse := l.(Reverser)
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		t := done[i]
		var err error
		if canReverse {
			err = rev.ReverseOut(context.WithoutCancel(ctx), t.To, t.Amount)
		} else {
			err = l.TransferIn(context.WithoutCancel(ctx), t.To, t.Amount)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reverse %s to %s: %w", t.Amount, t.To, err))
		}
	}
	return errors.Join(errs...)
}

func ledgerError(msg string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.WrapError(domain.CodeLedgerFailure, msg, err)
}

// Pull moves amount from a holder into custody, normalizing errors the same
// way PayOut does.
func Pull(ctx context.Context, l Ledger, from domain.Address, amount domain.Amount) error {
	if err := l.TransferIn(ctx, from, amount); err != nil {
		return ledgerError(fmt.Sprintf("transfer of %s from %s failed", amount, from), err)
	}
	return nil
}
