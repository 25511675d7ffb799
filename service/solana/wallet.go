package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Wallet holds the trading keypair. It is the only place in the core that
// touches the private key.
type Wallet struct {
	key solana.PrivateKey
}

// NewWalletFromBase58 parses a base58-encoded private key.
func NewWalletFromBase58(encoded string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// PublicKey returns the wallet's public key.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// SignTransaction signs tx with the wallet key in place.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}
