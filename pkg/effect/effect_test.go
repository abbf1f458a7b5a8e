package effect

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletAccount = common.HexToAddress("0x9000000000000000000000000000000000000009")
	recipient     = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Call(context.Background(), recipient, big.NewInt(1), []byte("data")))
}

func TestBank_CreditAndBalance(t *testing.T) {
	bank := NewBank()

	assert.Equal(t, big.NewInt(0), bank.Balance(walletAccount))

	bank.Credit(walletAccount, big.NewInt(100))
	bank.Credit(walletAccount, big.NewInt(50))
	assert.Equal(t, big.NewInt(150), bank.Balance(walletAccount))
}

func TestBankEffect_Transfer(t *testing.T) {
	bank := NewBank()
	bank.Credit(walletAccount, big.NewInt(100))
	eff := NewBankEffect(bank, walletAccount)

	require.NoError(t, eff.Call(context.Background(), recipient, big.NewInt(30), nil))

	assert.Equal(t, big.NewInt(70), bank.Balance(walletAccount))
	assert.Equal(t, big.NewInt(30), bank.Balance(recipient))
}

func TestBankEffect_InsufficientFunds(t *testing.T) {
	bank := NewBank()
	bank.Credit(walletAccount, big.NewInt(10))
	eff := NewBankEffect(bank, walletAccount)

	err := eff.Call(context.Background(), recipient, big.NewInt(11), nil)
	assert.Error(t, err)

	// A failed transfer must leave both balances untouched
	assert.Equal(t, big.NewInt(10), bank.Balance(walletAccount))
	assert.Equal(t, big.NewInt(0), bank.Balance(recipient))
}

func TestBankEffect_ZeroValueIsNoop(t *testing.T) {
	bank := NewBank()
	eff := NewBankEffect(bank, walletAccount)

	assert.NoError(t, eff.Call(context.Background(), recipient, nil, nil))
	assert.NoError(t, eff.Call(context.Background(), recipient, big.NewInt(0), nil))
	assert.Equal(t, big.NewInt(0), bank.Balance(recipient))
}
