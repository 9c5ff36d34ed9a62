package payment

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobmate/marketplace-client/internal/apperr"
	"jobmate/marketplace-client/internal/events"
	"jobmate/marketplace-client/internal/wallet"
)

// ReceiptStatus mirrors the lifecycle of the payment transaction.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptFailed    ReceiptStatus = "failed"
)

// Receipt is the proof of payment. Frozen once confirmed.
type Receipt struct {
	TxHash      string
	Status      ReceiptStatus
	From        string
	Amount      *big.Int
	ConfirmedAt time.Time
}

// Confirmed reports whether the receipt may unlock a submission.
func (r *Receipt) Confirmed() bool { return r != nil && r.Status == ReceiptConfirmed }

// Snapshot is a consistent read of the orchestrator state.
type Snapshot struct {
	State   State
	TxHash  string
	Message string
	Receipt *Receipt
	Account string // connected wallet account, empty until the first connect
}

// Notifier receives payment lifecycle events. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, event events.Event, payload any)
}

// Orchestrator drives a single payment from idle to a confirmed receipt.
// Safe for concurrent use; wallet I/O happens outside the lock.
type Orchestrator struct {
	gateway   *wallet.Gateway
	recipient common.Address
	amount    *big.Int
	notifier  Notifier
	now       func() time.Time

	mu      sync.Mutex
	state   State
	txHash  string
	message string
	receipt *Receipt
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier attaches an event observer.
func WithNotifier(n Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// NewOrchestrator returns an idle orchestrator paying amount wei to recipient.
func NewOrchestrator(gw *wallet.Gateway, recipient common.Address, amount *big.Int, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:   gw,
		recipient: recipient,
		amount:    new(big.Int).Set(amount),
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InitiatePayment runs one attempt: connect, request the transfer, await
// confirmation. The hash is visible through Snapshot as soon as the wallet
// returns it. On success the frozen receipt is returned. If ctx ends after the
// transfer was sent, InitiatePayment returns ctx's error while the machine
// stays pending until the chain reports a terminal status.
func (o *Orchestrator) InitiatePayment(ctx context.Context) (Receipt, error) {
	if !o.gateway.Available() {
		o.setMessage(apperr.UserMessage(apperr.ErrWalletUnavailable))
		return Receipt{}, apperr.ErrWalletUnavailable
	}

	o.mu.Lock()
	if !CanStart(o.state) {
		o.mu.Unlock()
		return Receipt{}, apperr.ErrPaymentAlreadyInProgress
	}
	o.moveLocked(StateConnecting)
	o.txHash, o.message, o.receipt = "", "", nil
	o.mu.Unlock()

	from, err := o.gateway.Connect(ctx)
	if err != nil {
		return Receipt{}, o.abort(err)
	}
	o.move(StateAwaitingSignature)

	hash, err := o.gateway.Transfer(ctx, o.recipient, o.amount)
	if err != nil {
		return Receipt{}, o.abort(err)
	}
	if hash == (common.Hash{}) {
		return Receipt{}, o.fail(ctx, errors.Wrap(apperr.ErrPaymentRejected, "wallet returned no transaction hash"))
	}

	o.mu.Lock()
	o.moveLocked(StatePendingConfirmation)
	o.txHash = hash.Hex()
	o.receipt = &Receipt{
		TxHash: o.txHash,
		Status: ReceiptPending,
		From:   from.Hex(),
		Amount: new(big.Int).Set(o.amount),
	}
	o.mu.Unlock()
	log.WithField("tx", hash.Hex()).Info("payment sent, awaiting confirmation")

	// Once a transfer is broadcast only its on-chain outcome may end the
	// attempt, so confirmation runs detached from the caller.
	done := make(chan outcome, 1)
	go func() {
		r, err := o.confirm(context.WithoutCancel(ctx), hash)
		done <- outcome{receipt: r, err: err}
	}()

	select {
	case res := <-done:
		return res.receipt, res.err
	case <-ctx.Done():
		log.WithField("tx", hash.Hex()).Warn("caller left, confirmation continues")
		return Receipt{}, errors.Wrap(ctx.Err(), "payment still pending")
	}
}

type outcome struct {
	receipt Receipt
	err     error
}

// confirm waits for the terminal status of hash and settles the machine.
func (o *Orchestrator) confirm(ctx context.Context, hash common.Hash) (Receipt, error) {
	status, err := o.gateway.Await(ctx, hash)
	if err != nil {
		return Receipt{}, o.fail(ctx, errors.Wrapf(apperr.ErrPaymentRejected, "confirmation: %v", err))
	}
	if status != wallet.StatusConfirmed {
		return Receipt{}, o.fail(ctx, errors.Wrapf(apperr.ErrPaymentRejected, "transaction %s", status))
	}

	o.mu.Lock()
	o.moveLocked(StateConfirmed)
	o.receipt.Status = ReceiptConfirmed
	o.receipt.ConfirmedAt = o.now()
	r := *o.receipt
	o.mu.Unlock()

	log.WithField("tx", r.TxHash).Info("payment confirmed")
	o.notify(ctx, events.PaymentConfirmed, r)
	return r, nil
}

// Reset returns a confirmed or failed machine to idle and drops the receipt.
// Resetting an idle machine is a no-op.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if InFlight(o.state) {
		return apperr.ErrPaymentAlreadyInProgress
	}
	if o.state != StateIdle {
		o.moveLocked(StateIdle)
	}
	o.txHash, o.message, o.receipt = "", "", nil
	return nil
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{State: o.state, TxHash: o.txHash, Message: o.message}
	if acct, ok := o.gateway.Signer(); ok {
		s.Account = acct.Hex()
	}
	if o.receipt != nil {
		r := *o.receipt
		s.Receipt = &r
	}
	return s
}

// Receipt returns the current receipt, or nil when no transfer was sent.
func (o *Orchestrator) Receipt() *Receipt { return o.Snapshot().Receipt }

// abort handles connect/sign/send errors: the attempt is dropped and the
// machine returns to idle with a user message.
func (o *Orchestrator) abort(err error) error {
	if !errors.Is(err, apperr.ErrWalletUnavailable) {
		err = errors.Wrapf(apperr.ErrPaymentRejected, "%v", err)
	}
	o.mu.Lock()
	o.moveLocked(StateIdle)
	o.message = apperr.UserMessage(err)
	o.mu.Unlock()
	log.WithError(err).Warn("payment aborted")
	return err
}

func (o *Orchestrator) fail(ctx context.Context, err error) error {
	o.mu.Lock()
	o.moveLocked(StateFailed)
	o.message = apperr.UserMessage(err)
	var r Receipt
	if o.receipt != nil {
		o.receipt.Status = ReceiptFailed
		r = *o.receipt
	}
	o.mu.Unlock()

	log.WithError(err).WithField("tx", r.TxHash).Warn("payment failed")
	o.notify(ctx, events.PaymentFailed, r)
	return err
}

func (o *Orchestrator) move(to State) {
	o.mu.Lock()
	o.moveLocked(to)
	o.mu.Unlock()
}

// moveLocked panics on an edge missing from validTransitions; every caller
// sits on a path the table allows.
func (o *Orchestrator) moveLocked(to State) {
	if !IsTransitionAllowed(o.state, to) {
		panic(fmt.Sprintf("payment: illegal transition %s → %s", o.state, to))
	}
	o.state = to
}

func (o *Orchestrator) setMessage(msg string) {
	o.mu.Lock()
	o.message = msg
	o.mu.Unlock()
}

func (o *Orchestrator) notify(ctx context.Context, ev events.Event, r Receipt) {
	if o.notifier == nil {
		return
	}
	payload := map[string]any{"txHash": r.TxHash, "from": r.From, "status": string(r.Status)}
	if r.Amount != nil {
		payload["amountWei"] = r.Amount.String()
	}
	o.notifier.Publish(ctx, ev, payload)
}
