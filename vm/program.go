// Package vm implements condition-program execution for transfers (spec.md
// §4.6): a program's create(state) decides whether to accept a proposed
// lock, and resolve(state, resolver) decides the final balance split. The
// hashlock semantics mirror lnd's own HTLC condition — genHtlcScript and
// ReceiveHTLCSettle's preimage check (lnwallet/channel.go:4239, :4098) — the
// same "preimage hashes to rHash" rule, expressed as a Go function instead
// of a Bitcoin Script template, since this protocol's adjudicator is an EVM
// contract rather than a UTXO script.
package vm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceSplit is a condition program's resolve verdict: up to two payees
// and the amount each receives, matching spec.md §4.6's
// "{to[2], amount[2]}".
type BalanceSplit struct {
	To     [2]common.Address
	Amount [2]*big.Int
}

// Program is the behavior named by a transfer's Definition address.
// Create decides whether to accept the proposed lock; Resolve computes the
// final payout given the transfer's initial state and a resolver (witness)
// supplied by a participant.
type Program interface {
	// Create returns (accept, error). A false return (no error) causes
	// the Create update to be rejected with TransferNotAccepted
	// (spec.md §4.6).
	Create(initialState []byte) (bool, error)
	// Resolve returns the final balance split given the transfer's
	// initial state and the resolver.
	Resolve(initialState, resolver []byte) (BalanceSplit, error)
}

// ErrTransferNotAccepted is returned by package driver when a program's
// Create rejects the proposed lock.
type ErrTransferNotAccepted struct{ Definition common.Address }

func (e *ErrTransferNotAccepted) Error() string {
	return "vm: transfer not accepted by program " + e.Definition.Hex()
}
