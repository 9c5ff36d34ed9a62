package payment_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"jobmate/marketplace-client/internal/apperr"
	"jobmate/marketplace-client/internal/events"
	"jobmate/marketplace-client/internal/payment"
	"jobmate/marketplace-client/internal/wallet"
)

var (
	payer     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient = common.HexToAddress("0x4A726DAabAaa2a9208d676Ecd09B7aC66453608F")
	fee       = big.NewInt(1_000_000_000_000_000)
)

type fakeWallet struct {
	mu         sync.Mutex
	connectErr error
	sendErr    error
	hashes     []common.Hash
	sends      int
	statuses   []wallet.ConfirmationStatus
	awaitGate  chan struct{}
	gotTo      common.Address
	gotAmount  *big.Int
}

func (f *fakeWallet) RequestAccounts(context.Context) (common.Address, error) {
	return payer, f.connectErr
}

func (f *fakeWallet) SendValueTransfer(_ context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.gotTo, f.gotAmount = to, amount
	h := f.hashes[f.sends]
	f.sends++
	return h, nil
}

func (f *fakeWallet) AwaitConfirmation(ctx context.Context, _ common.Hash) (wallet.ConfirmationStatus, error) {
	if f.awaitGate != nil {
		select {
		case <-f.awaitGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event, _ any) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) list() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func hashOf(b byte) common.Hash {
	var h common.Hash
	h[31] = b
	return h
}

func newOrchestrator(w wallet.Capability, n payment.Notifier) *payment.Orchestrator {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return payment.NewOrchestrator(
		wallet.NewGateway(w), recipient, fee,
		payment.WithNotifier(n),
		payment.WithClock(func() time.Time { return fixed }),
	)
}

// ── Happy path ─────────────────────────────────────────────────────────────

func TestInitiatePayment_Confirmed(t *testing.T) {
	w := &fakeWallet{hashes: []common.Hash{hashOf(1)}, statuses: []wallet.ConfirmationStatus{wallet.StatusConfirmed}}
	rec := &recorder{}
	o := newOrchestrator(w, rec)

	r, err := o.InitiatePayment(context.Background())
	require.NoError(t, err)
	require.Equal(t, payment.ReceiptConfirmed, r.Status)
	require.Equal(t, hashOf(1).Hex(), r.TxHash)
	require.Equal(t, payer.Hex(), r.From)
	require.Equal(t, fee.String(), r.Amount.String())
	require.False(t, r.ConfirmedAt.IsZero())

	require.Equal(t, recipient, w.gotTo)
	require.Equal(t, fee.String(), w.gotAmount.String())

	snap := o.Snapshot()
	require.Equal(t, payment.StateConfirmed, snap.State)
	require.True(t, snap.Receipt.Confirmed())
	require.Equal(t, payer.Hex(), snap.Account)
	require.Equal(t, []events.Event{events.PaymentConfirmed}, rec.list())
}

func TestInitiatePayment_HashVisibleBeforeConfirmation(t *testing.T) {
	w := &fakeWallet{
		hashes:    []common.Hash{hashOf(2)},
		statuses:  []wallet.ConfirmationStatus{wallet.StatusConfirmed},
		awaitGate: make(chan struct{}),
	}
	o := newOrchestrator(w, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.InitiatePayment(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return o.Snapshot().State == payment.StatePendingConfirmation
	}, time.Second, 5*time.Millisecond)
	snap := o.Snapshot()
	require.Equal(t, hashOf(2).Hex(), snap.TxHash)
	require.Equal(t, payment.ReceiptPending, snap.Receipt.Status)
	require.False(t, snap.Receipt.Confirmed())

	close(w.awaitGate)
	require.NoError(t, <-done)
	require.Equal(t, payment.StateConfirmed, o.Snapshot().State)
}

// ── Single attempt in flight ───────────────────────────────────────────────

func TestInitiatePayment_RejectsConcurrentAttempt(t *testing.T) {
	w := &fakeWallet{
		hashes:    []common.Hash{hashOf(3), hashOf(4)},
		statuses:  []wallet.ConfirmationStatus{wallet.StatusConfirmed},
		awaitGate: make(chan struct{}),
	}
	o := newOrchestrator(w, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.InitiatePayment(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool {
		return payment.InFlight(o.Snapshot().State)
	}, time.Second, 5*time.Millisecond)

	_, err := o.InitiatePayment(context.Background())
	require.ErrorIs(t, err, apperr.ErrPaymentAlreadyInProgress)
	require.ErrorIs(t, o.Reset(), apperr.ErrPaymentAlreadyInProgress)

	close(w.awaitGate)
	require.NoError(t, <-done)

	_, err = o.InitiatePayment(context.Background())
	require.ErrorIs(t, err, apperr.ErrPaymentAlreadyInProgress, "confirmed machine must be reset first")
	require.Equal(t, 1, w.sends)
}

func TestInitiatePayment_CallerCancelKeepsPending(t *testing.T) {
	w := &fakeWallet{
		hashes:    []common.Hash{hashOf(9), hashOf(10)},
		statuses:  []wallet.ConfirmationStatus{wallet.StatusConfirmed},
		awaitGate: make(chan struct{}),
	}
	rec := &recorder{}
	o := newOrchestrator(w, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.InitiatePayment(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool {
		return o.Snapshot().TxHash != ""
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, payment.StatePendingConfirmation, o.Snapshot().State)
	require.Empty(t, rec.list())

	_, err := o.InitiatePayment(context.Background())
	require.ErrorIs(t, err, apperr.ErrPaymentAlreadyInProgress)
	require.Equal(t, 1, w.sends, "a broadcast transfer must not be sent twice")

	close(w.awaitGate)
	require.Eventually(t, func() bool {
		return o.Snapshot().State == payment.StateConfirmed
	}, time.Second, 5*time.Millisecond)
	require.True(t, o.Receipt().Confirmed())
	require.Equal(t, hashOf(9).Hex(), o.Receipt().TxHash)
	require.Equal(t, []events.Event{events.PaymentConfirmed}, rec.list())
}

// ── Wallet absent ──────────────────────────────────────────────────────────

func TestInitiatePayment_WalletUnavailable(t *testing.T) {
	o := payment.NewOrchestrator(wallet.NewGateway(nil), recipient, fee)

	_, err := o.InitiatePayment(context.Background())
	require.ErrorIs(t, err, apperr.ErrWalletUnavailable)

	snap := o.Snapshot()
	require.Equal(t, payment.StateIdle, snap.State)
	require.Empty(t, snap.Account)
	require.Contains(t, snap.Message, "No wallet available")
	require.Nil(t, snap.Receipt)
}

// ── Failures ───────────────────────────────────────────────────────────────

func TestInitiatePayment_UserDeclinesReturnsToIdle(t *testing.T) {
	w := &fakeWallet{sendErr: errors.New("user denied transaction signature")}
	rec := &recorder{}
	o := newOrchestrator(w, rec)

	_, err := o.InitiatePayment(context.Background())
	require.ErrorIs(t, err, apperr.ErrPaymentRejected)

	snap := o.Snapshot()
	require.Equal(t, payment.StateIdle, snap.State)
	require.Contains(t, snap.Message, "user denied transaction signature")
	require.Empty(t, snap.TxHash)
	require.Empty(t, rec.list())
}

func TestInitiatePayment_ConnectErrorReturnsToIdle(t *testing.T) {
	w := &fakeWallet{connectErr: errors.New("locked")}
	o := newOrchestrator(w, nil)

	_, err := o.InitiatePayment(context.Background())
	require.Error(t, err)
	require.Equal(t, payment.StateIdle, o.Snapshot().State)
	require.Equal(t, 0, w.sends)
}

func TestInitiatePayment_MissingHashFails(t *testing.T) {
	w := &fakeWallet{hashes: []common.Hash{{}}}
	o := newOrchestrator(w, nil)

	_, err := o.InitiatePayment(context.Background())
	require.ErrorIs(t, err, apperr.ErrPaymentRejected)
	require.Equal(t, payment.StateFailed, o.Snapshot().State)
}

func TestInitiatePayment_RevertedThenRetryUsesNewTransaction(t *testing.T) {
	w := &fakeWallet{
		hashes:   []common.Hash{hashOf(5), hashOf(6)},
		statuses: []wallet.ConfirmationStatus{wallet.StatusFailed, wallet.StatusConfirmed},
	}
	rec := &recorder{}
	o := newOrchestrator(w, rec)

	_, err := o.InitiatePayment(context.Background())
	require.ErrorIs(t, err, apperr.ErrPaymentRejected)
	snap := o.Snapshot()
	require.Equal(t, payment.StateFailed, snap.State)
	require.Equal(t, payment.ReceiptFailed, snap.Receipt.Status)
	require.Contains(t, snap.Message, "Payment failed")

	r, err := o.InitiatePayment(context.Background())
	require.NoError(t, err)
	require.Equal(t, hashOf(6).Hex(), r.TxHash)
	require.NotEqual(t, hashOf(5).Hex(), r.TxHash)
	require.Equal(t, 2, w.sends)
	require.Equal(t, []events.Event{events.PaymentFailed, events.PaymentConfirmed}, rec.list())
}

// ── Reset ──────────────────────────────────────────────────────────────────

func TestReset(t *testing.T) {
	w := &fakeWallet{hashes: []common.Hash{hashOf(7), hashOf(8)}, statuses: []wallet.ConfirmationStatus{wallet.StatusConfirmed}}
	o := newOrchestrator(w, nil)

	require.NoError(t, o.Reset(), "idle reset is a no-op")

	_, err := o.InitiatePayment(context.Background())
	require.NoError(t, err)
	require.NoError(t, o.Reset())

	snap := o.Snapshot()
	require.Equal(t, payment.StateIdle, snap.State)
	require.Nil(t, snap.Receipt)
	require.Nil(t, o.Receipt())

	r, err := o.InitiatePayment(context.Background())
	require.NoError(t, err)
	require.Equal(t, hashOf(8).Hex(), r.TxHash)
}
