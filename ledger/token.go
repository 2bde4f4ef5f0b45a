package ledger

import (
	"context"
	"sync"

	"xdao.co/trustchain/domain"
)

// Token is an in-memory fungible token with allowances.
//
// It mirrors the primitives of a standard token contract: Mint, Approve,
// Transfer and TransferFrom. Custody returns a Ledger bound to one spender.
type Token struct {
	mu         sync.Mutex
	balances   map[domain.Address]domain.Amount
	allowances map[domain.Address]map[domain.Address]domain.Amount
}

func NewToken() *Token {
	return &Token{
		balances:   make(map[domain.Address]domain.Amount),
		allowances: make(map[domain.Address]map[domain.Address]domain.Amount),
	}
}

// Mint credits amount to owner.
func (t *Token) Mint(owner domain.Address, amount domain.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := t.balances[owner].Add(amount)
	if err != nil {
		return err
	}
	t.balances[owner] = next
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (t *Token) Approve(owner, spender domain.Address, amount domain.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.allowances[owner]
	if m == nil {
		m = make(map[domain.Address]domain.Amount)
		t.allowances[owner] = m
	}
	m[spender] = amount
}

func (t *Token) Allowance(owner, spender domain.Address) domain.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

func (t *Token) Balance(owner domain.Address) domain.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[owner]
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to domain.Address, amount domain.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming allowance.
func (t *Token) TransferFrom(spender, owner, recipient domain.Address, amount domain.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := t.allowances[owner][spender]
	if allowed < amount {
		return domain.ErrInsufficientAllowance
	}
	if err := t.move(owner, recipient, amount); err != nil {
		return err
	}
	t.allowances[owner][spender] = allowed - amount
	return nil
}

func (t *Token) move(from, to domain.Address, amount domain.Amount) error {
	src, err := t.balances[from].Sub(amount)
	if err != nil {
		return domain.ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	dst, err := t.balances[to].Add(amount)
	if err != nil {
		return err
	}
	t.balances[from] = src
	t.balances[to] = dst
	return nil
}

// Custody returns a Ledger whose custody account is custodian. TransferIn
// spends the holder's allowance to custodian.
func (t *Token) Custody(custodian domain.Address) *Custody {
	return &Custody{token: t, custodian: custodian}
}

// Custody adapts a Token to the Ledger interface.
type Custody struct {
	token     *Token
	custodian domain.Address
}

var _ Ledger = (*Custody)(nil)

func (c *Custody) TransferIn(ctx context.Context, from domain.Address, amount domain.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.token.TransferFrom(c.custodian, from, c.custodian, amount)
}

func (c *Custody) TransferOut(ctx context.Context, to domain.Address, amount domain.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.token.Transfer(c.custodian, to, amount)
}

func (c *Custody) BalanceOf(ctx context.Context, owner domain.Address) (domain.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.token.Balance(owner), nil
}

// ReverseOut pulls back a payout made by TransferOut. It ignores context
// cancellation so compensation always runs to completion.
func (c *Custody) ReverseOut(_ context.Context, to domain.Address, amount domain.Amount) error {
	c.token.mu.Lock()
	defer c.token.mu.Unlock()
	return c.token.move(to, c.custodian, amount)
}

// Custodian returns the custody account address.
func (c *Custody) Custodian() domain.Address { return c.custodian }
