// Package ledger defines the fungible-balance ledger the core debits and
// credits, and ships an in-memory token used by tests, the simulator and the
// development daemon.
package ledger

import (
	"context"

	"xdao.co/trustchain/domain"
)

// Ledger is the custody view of a token ledger held by the escrow.
//
// TransferIn moves amount from a holder into custody and TransferOut moves
// amount from custody to a holder. Implementations must either apply a
// transfer completely or return an error; the core never assumes success.
type Ledger interface {
	TransferIn(ctx context.Context, from domain.Address, amount domain.Amount) error
	TransferOut(ctx context.Context, to domain.Address, amount domain.Amount) error
	BalanceOf(ctx context.Context, owner domain.Address) (domain.Amount, error)
	Custodian() domain.Address
}

// Reverser is implemented by ledgers that can undo a TransferOut made in the
// same operation without the recipient's allowance.
type Reverser interface {
	ReverseOut(ctx context.Context, to domain.Address, amount domain.Amount) error
}
