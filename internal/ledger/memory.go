package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yourorg/tiered-staking/internal/safemath"
)

// DefaultBurnPercentage is the share of a plain transfer that is destroyed.
const DefaultBurnPercentage uint64 = 1

// Memory is an in-process reference ledger. Pool vaults are kept apart from
// account balances.
type Memory struct {
	mu             sync.Mutex
	balances       map[common.Address]uint64
	vaults         map[string]uint64
	totalSupply    uint64
	burnPercentage uint64
}

// NewMemory returns an empty ledger with the default burn percentage
func NewMemory() *Memory {
	return &Memory{
		balances:       make(map[common.Address]uint64),
		vaults:         make(map[string]uint64),
		burnPercentage: DefaultBurnPercentage,
	}
}

// WithBurnPercentage overrides the transfer burn
func (m *Memory) WithBurnPercentage(pct uint64) *Memory {
	m.burnPercentage = pct
	return m
}

// Balance returns an account balance
func (m *Memory) Balance(account common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

// VaultBalance returns the tokens held for a pool
func (m *Memory) VaultBalance(pool string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vaults[pool]
}

// TotalSupply returns minted minus burned tokens
func (m *Memory) TotalSupply() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalSupply
}

// TransferIn implements Ledger.
func (m *Memory) TransferIn(_ context.Context, pool string, from common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := m.balances[from]
	if balance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	vault, err := safemath.Add(m.vaults[pool], amount)
	if err != nil {
		return err
	}
	m.balances[from] = balance - amount
	m.vaults[pool] = vault
	return nil
}

// TransferOut implements Ledger.
func (m *Memory) TransferOut(_ context.Context, pool string, to common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	vault := m.vaults[pool]
	if vault < amount {
		return fmt.Errorf("%w: vault %s has %d, needs %d", ErrInsufficientBalance, pool, vault, amount)
	}
	balance, err := safemath.Add(m.balances[to], amount)
	if err != nil {
		return err
	}
	m.vaults[pool] = vault - amount
	m.balances[to] = balance
	return nil
}

// Mint implements Ledger. The pool only labels the mint; no vault changes.
func (m *Memory) Mint(_ context.Context, _ string, to common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mint(to, amount)
}

func (m *Memory) mint(to common.Address, amount uint64) error {
	supply, err := safemath.Add(m.totalSupply, amount)
	if err != nil {
		return err
	}
	balance, err := safemath.Add(m.balances[to], amount)
	if err != nil {
		return err
	}
	m.totalSupply = supply
	m.balances[to] = balance
	return nil
}

// Transfer moves amount between accounts and burns burnPercentage of it. The
// recipient receives the remainder.
func (m *Memory) Transfer(_ context.Context, from, to common.Address, amount uint64) (received uint64, burned uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	burned, err = safemath.From(amount).Mul(m.burnPercentage).Div(100).Result()
	if err != nil {
		return 0, 0, err
	}
	received = amount - burned

	balance := m.balances[from]
	if balance < amount {
		return 0, 0, fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	credited, err := safemath.Add(m.balances[to], received)
	if from == to {
		credited, err = balance-burned, nil
	}
	if err != nil {
		return 0, 0, err
	}
	m.balances[from] = balance - amount
	m.balances[to] = credited
	m.totalSupply -= burned
	return received, burned, nil
}

// Credit mints directly to an account. It is used to fund stakers.
func (m *Memory) Credit(to common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mint(to, amount)
}
