package effect

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Effect is the externally observable side action performed exactly once
// when a transaction executes: an asset transfer, an outbound call, or
// whatever the integrator wires in. The wallet invokes Call after marking
// the entry executed and rolls the whole execute operation back if Call
// returns an error, so implementations must be atomic themselves: either the
// effect happened or it did not.
//
// Call runs while the wallet's lock is held. Implementations must not call
// back into the wallet.
type Effect interface {
	Call(ctx context.Context, to common.Address, value *big.Int, payload []byte) error
}

// Noop discards every effect invocation. Useful for deployments where
// execution is recorded on the wallet but carried out elsewhere.
type Noop struct{}

func (Noop) Call(ctx context.Context, to common.Address, value *big.Int, payload []byte) error {
	return nil
}

// Bank is an in-memory balance ledger. It backs BankEffect in tests and
// single-process deployments where the wallet custodies accounted units.
type Bank struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func NewBank() *Bank {
	return &Bank{balances: make(map[common.Address]*big.Int)}
}

// Credit adds amount to the address's balance.
func (b *Bank) Credit(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Add(b.balance(addr), amount)
}

// Balance returns the current balance of the address.
func (b *Bank) Balance(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balance(addr))
}

func (b *Bank) balance(addr common.Address) *big.Int {
	if bal, ok := b.balances[addr]; ok {
		return bal
	}
	return new(big.Int)
}

// transfer moves amount from one account to another atomically.
func (b *Bank) transfer(from, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balance(from)
	if fromBal.Cmp(amount) < 0 {
		return errors.Errorf("insufficient funds: balance %s, transfer %s", fromBal, amount)
	}

	b.balances[from] = new(big.Int).Sub(fromBal, amount)
	b.balances[to] = new(big.Int).Add(b.balance(to), amount)
	return nil
}

// BankEffect transfers value from the wallet's account to the destination on
// each execution. Payload is ignored; a bank transfer carries no calldata.
type BankEffect struct {
	bank    *Bank
	account common.Address
}

// NewBankEffect creates an effect drawing from the given wallet account.
func NewBankEffect(bank *Bank, account common.Address) *BankEffect {
	return &BankEffect{bank: bank, account: account}
}

func (e *BankEffect) Call(ctx context.Context, to common.Address, value *big.Int, payload []byte) error {
	if value == nil || value.Sign() == 0 {
		return nil
	}
	return e.bank.transfer(e.account, to, value)
}
