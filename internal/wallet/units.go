package wallet

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
)

// ParseEther converts a decimal ether amount ("0.001") to wei.
// Amounts with more than 18 decimals or a non-positive value are rejected.
func ParseEther(s string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, errors.Errorf("invalid ether amount %q", s)
	}
	if r.Sign() <= 0 {
		return nil, errors.Errorf("ether amount must be positive, got %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !r.IsInt() {
		return nil, errors.Errorf("ether amount %q has more than 18 decimals", s)
	}
	return new(big.Int).Set(r.Num()), nil
}
