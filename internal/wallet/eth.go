package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultPollInterval = 3 * time.Second

// KeyedWallet is a Capability backed by a JSON-RPC node and a local private key.
// It is what the CLI uses when no browser wallet is around.
type KeyedWallet struct {
	client       *ethclient.Client
	key          *ecdsa.PrivateKey
	chainID      *big.Int
	pollInterval time.Duration
}

// DialKeyed connects to rpcURL and loads the hex-encoded private key.
func DialKeyed(ctx context.Context, rpcURL, hexKey string, chainID int64) (*KeyedWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", rpcURL)
	}
	return &KeyedWallet{
		client:       client,
		key:          key,
		chainID:      big.NewInt(chainID),
		pollInterval: defaultPollInterval,
	}, nil
}

// Close releases the RPC connection.
func (w *KeyedWallet) Close() { w.client.Close() }

func (w *KeyedWallet) RequestAccounts(_ context.Context) (common.Address, error) {
	return crypto.PubkeyToAddress(w.key.PublicKey), nil
}

// SendValueTransfer signs and broadcasts a plain legacy transfer.
func (w *KeyedWallet) SendValueTransfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	from := crypto.PubkeyToAddress(w.key.PublicKey)

	nonce, err := w.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "pending nonce")
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "suggest gas price")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      params.TxGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sign tx")
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "send tx")
	}

	log.WithField("tx", signed.Hash().Hex()).WithField("nonce", nonce).Debug("transfer broadcast")
	return signed.Hash(), nil
}

// AwaitConfirmation polls for the receipt until it exists or ctx is done.
func (w *KeyedWallet) AwaitConfirmation(ctx context.Context, h common.Hash) (ConfirmationStatus, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, h)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusSuccessful {
				return StatusConfirmed, nil
			}
			return StatusFailed, nil
		case errors.Is(err, ethereum.NotFound):
			// not mined yet
		default:
			log.WithError(err).WithField("tx", h.Hex()).Warn("receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
