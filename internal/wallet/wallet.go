// Package wallet wraps an injected wallet capability behind a fixed contract:
// request accounts, send a native-currency transfer, await confirmation.
//
// The capability may be absent (no key configured, no provider reachable);
// that is a normal, constructible state reported as apperr.ErrWalletUnavailable.
package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"jobmate/marketplace-client/internal/apperr"
)

// ConfirmationStatus is the terminal outcome of a transaction.
type ConfirmationStatus string

const (
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusFailed    ConfirmationStatus = "failed"
)

// Capability is the opaque wallet provider.
// SendValueTransfer may block until the user approves the transfer.
type Capability interface {
	RequestAccounts(ctx context.Context) (common.Address, error)
	SendValueTransfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, tx common.Hash) (ConfirmationStatus, error)
}

// Gateway is the thin wrapper the payment orchestrator talks to.
type Gateway struct {
	capability Capability

	mu      sync.Mutex
	account common.Address
	linked  bool
}

// NewGateway wraps c. A nil c yields a gateway whose every call fails with
// apperr.ErrWalletUnavailable.
func NewGateway(c Capability) *Gateway {
	return &Gateway{capability: c}
}

// Available reports whether a capability was injected.
func (g *Gateway) Available() bool { return g != nil && g.capability != nil }

// Connect requests the signer account and remembers it.
func (g *Gateway) Connect(ctx context.Context) (common.Address, error) {
	if !g.Available() {
		return common.Address{}, apperr.ErrWalletUnavailable
	}
	addr, err := g.capability.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "request accounts")
	}
	g.mu.Lock()
	g.account, g.linked = addr, true
	g.mu.Unlock()
	return addr, nil
}

// Signer returns the connected account, if any.
func (g *Gateway) Signer() (common.Address, bool) {
	if g == nil {
		return common.Address{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.account, g.linked
}

// Transfer sends amount wei to `to` and returns the transaction hash.
func (g *Gateway) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	if !g.Available() {
		return common.Hash{}, apperr.ErrWalletUnavailable
	}
	h, err := g.capability.SendValueTransfer(ctx, to, amount)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "send transfer")
	}
	return h, nil
}

// Await blocks until tx reaches a terminal status.
func (g *Gateway) Await(ctx context.Context, tx common.Hash) (ConfirmationStatus, error) {
	if !g.Available() {
		return "", apperr.ErrWalletUnavailable
	}
	st, err := g.capability.AwaitConfirmation(ctx, tx)
	if err != nil {
		return "", errors.Wrapf(err, "await %s", tx.Hex())
	}
	return st, nil
}
