// Package ledger is the boundary to the token ledger that executes transfers
// and mints. Every call either applies fully or fails without effect.
package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when the debited account cannot cover
	// the amount.
	ErrInsufficientBalance = errors.New("insufficient ledger balance")
	// ErrRejected is returned when the ledger refuses a request for any other
	// reason.
	ErrRejected = errors.New("ledger rejected request")
	// ErrUnavailable is returned when the ledger cannot be reached.
	ErrUnavailable = errors.New("ledger unavailable")
)

// Ledger moves tokens between stakers and a pool's vault and mints rewards
type Ledger interface {
	// TransferIn moves amount from the staker into the pool vault.
	TransferIn(ctx context.Context, pool string, from common.Address, amount uint64) error
	// TransferOut moves amount from the pool vault back to the staker.
	TransferOut(ctx context.Context, pool string, to common.Address, amount uint64) error
	// Mint creates amount new tokens for the recipient.
	Mint(ctx context.Context, pool string, to common.Address, amount uint64) error
}
