// Package ledger holds the two external collaborators the reconciliation
// subsystem consumes: the Transaction Submitter and the Transaction Status
// Oracle, plus a Blockfrost-backed client implementing both.
//
// Transaction building and signing are out of scope. A TxBuilder hands the
// submitter a signed transaction; the submitter only broadcasts it.
package ledger

import (
	"context"
	"fmt"
)

// Status is the confirmation state of a transaction as seen by the oracle.
type Status string

const (
	// StatusPending means the transaction is not (yet) observed on-chain.
	StatusPending Status = "pending"

	// StatusConfirmed means the transaction is included in a block.
	StatusConfirmed Status = "confirmed"

	// StatusFailed means the transaction was included but rejected
	// (phase-2 validation failure) or can no longer be included.
	StatusFailed Status = "failed"
)

// Oracle reports the status of a transaction reference.
//
// Implementations must honor ctx cancellation. Callers bound the wait with
// a context deadline; a deadline expiry is treated by callers as pending.
type Oracle interface {
	CheckStatus(ctx context.Context, ref string) (Status, error)
}

// Payment describes a value transfer.
// Amount is always in the smallest unit of Currency.
type Payment struct {
	Amount    int64
	Currency  Currency
	Recipient string
	Metadata  map[string]string

	// SignedTx, when set, is the wallet-signed transaction to broadcast.
	// Otherwise the submitter's TxBuilder produces one.
	SignedTx []byte
}

// Validate checks the payment fields that do not need the chain.
func (p Payment) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("payment amount must be positive, got %d", p.Amount)
	}
	if _, err := LookupCurrency(string(p.Currency)); err != nil {
		return err
	}
	if p.Recipient == "" {
		return fmt.Errorf("payment recipient is required")
	}
	return nil
}

// Submitter broadcasts a payment and returns its transaction reference.
type Submitter interface {
	Submit(ctx context.Context, p Payment) (ref string, err error)
}

// TxBuilder produces a signed transaction (CBOR bytes) for a payment.
// Implemented by the wallet integration, which is outside this module.
type TxBuilder interface {
	Build(ctx context.Context, p Payment) ([]byte, error)
}

// PresignedTx is a TxBuilder that returns an already signed transaction.
// Used by the CLI, where the wallet signs offline.
type PresignedTx []byte

// Build returns the presigned bytes regardless of p.
func (t PresignedTx) Build(_ context.Context, _ Payment) ([]byte, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("presigned transaction is empty")
	}
	return []byte(t), nil
}
