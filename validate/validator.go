package validate

import (
	"math/big"

	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/commitment"
	"github.com/alfredolopez80/vector/merkle"
)

// RequiredSignatures selects how many signature slots Validate demands.
type RequiredSignatures int

const (
	// Structural requires no signature (any slot that is present is still
	// verified). Used
	// by the initiator while building its own half-signed proposal
	// (spec.md §4.5 step 3).
	Structural RequiredSignatures = 0
	// Half requires at least one present slot, and every present slot must
	// verify against its own participant; which participant's slot is
	// present is not checked. Used by
	// the responder before countersigning (spec.md §4.5 responder step
	// 2).
	Half RequiredSignatures = 1
	// Full requires both slots to verify. Used by the initiator once
	// the countersigned reply comes back (spec.md §4.5 step 6).
	Full RequiredSignatures = 2
)

// Validate runs the ordered checks of spec.md §4.2 and returns nil if
// update is legal to accept against previous (nil for setup) producing
// proposedNewState. It stops and returns the first failing Rejection.
func Validate(
	previous *chantypes.CoreChannelState,
	update *chantypes.ChannelUpdate,
	proposedNewState *chantypes.CoreChannelState,
	required RequiredSignatures,
) error {
	// 1. Kind-specific precondition.
	if err := checkKindPrecondition(previous, update); err != nil {
		return err
	}

	// 2. Nonce.
	var wantNonce uint64
	if previous == nil {
		wantNonce = 1
	} else {
		wantNonce = previous.Nonce + 1
	}
	if proposedNewState.Nonce != wantNonce {
		return reject(ReasonBadNonce, map[string]interface{}{
			"have": proposedNewState.Nonce,
			"want": wantNonce,
		})
	}

	// 3. Participant set and channel address unchanged.
	if previous != nil {
		if proposedNewState.ChannelAddress != previous.ChannelAddress {
			return reject(ReasonBadParticipants, map[string]interface{}{
				"reason": "channel address changed",
			})
		}
		if proposedNewState.Participants != previous.Participants {
			return reject(ReasonBadParticipants, map[string]interface{}{
				"reason": "participant set changed",
			})
		}
	}

	// 4. Locked-balance invariant (conservation of free+locked balance is
	// not checked here).
	if err := checkLockedBalance(proposedNewState); err != nil {
		return err
	}

	// 5. Signature count.
	if update.SignatureCount() < int(required) {
		return reject(ReasonBadSignature, map[string]interface{}{
			"have": update.SignatureCount(),
			"want": int(required),
		})
	}

	// 6. Signature validity for each present slot.
	commit := &chantypes.Commitment{
		State:      proposedNewState,
		Signatures: update.Signatures,
	}
	digest, err := commitment.HashCommitment(commit)
	if err != nil {
		return reject(ReasonBadSignature, map[string]interface{}{"encode_error": err.Error()})
	}
	for i, sig := range update.Signatures {
		if len(sig) == 0 {
			continue
		}
		addr, err := commitment.RecoverSigner(digest, sig)
		if err != nil {
			return reject(ReasonBadSignature, map[string]interface{}{
				"slot": i, "error": err.Error(),
			})
		}
		if addr != proposedNewState.Participants[i] {
			return reject(ReasonBadSignature, map[string]interface{}{
				"slot": i, "recovered": addr.Hex(), "want": proposedNewState.Participants[i].Hex(),
			})
		}
	}

	return nil
}

func checkKindPrecondition(previous *chantypes.CoreChannelState, update *chantypes.ChannelUpdate) error {
	switch update.Kind {
	case chantypes.Setup:
		if previous != nil {
			return reject(ReasonBadPrecondition, map[string]interface{}{
				"reason": "setup requires an absent previous state",
			})
		}
	case chantypes.Deposit:
		if previous == nil || update.Details.Deposit == nil {
			return reject(ReasonBadPrecondition, map[string]interface{}{
				"reason": "deposit requires a previous state and deposit details",
			})
		}
		if update.Details.Deposit.LatestDepositNonce <= previous.LatestDepositNonce {
			return reject(ReasonBadPrecondition, map[string]interface{}{
				"reason": "deposit nonce must advance",
				"have":   update.Details.Deposit.LatestDepositNonce,
				"prev":   previous.LatestDepositNonce,
			})
		}
	case chantypes.Create:
		if previous == nil || update.Details.Create == nil {
			return reject(ReasonBadPrecondition, map[string]interface{}{
				"reason": "create requires a previous state and create details",
			})
		}
		if update.Details.Create.TransferTimeout > previous.Timeout {
			return reject(ReasonBadPrecondition, map[string]interface{}{
				"reason": "transfer timeout exceeds channel timeout",
			})
		}
	case chantypes.Resolve:
		if previous == nil || update.Details.Resolve == nil {
			return reject(ReasonBadPrecondition, map[string]interface{}{
				"reason": "resolve requires a previous state and resolve details",
			})
		}
	default:
		return reject(ReasonBadPrecondition, map[string]interface{}{"reason": "unknown update kind"})
	}
	return nil
}

// checkLockedBalance re-derives spec.md §3's "Locked non-negative" invariant
// directly from the proposed state: locked amounts are never negative, and
// the asset-indexed arrays have equal length. Conservation of free+locked
// balance is not checked, here or in package transition: transition's create
// moves the locked amount from free to locked balance, while deposit and
// resolve take their balance figures from update.Balance as given.
func checkLockedBalance(s *chantypes.CoreChannelState) error {
	zero := big.NewInt(0)
	for i, locked := range s.LockedBalance {
		if locked.Cmp(zero) < 0 {
			return reject(ReasonLockedBalanceMismatch, map[string]interface{}{
				"asset": i, "locked": locked.String(),
			})
		}
	}
	if len(s.LockedBalance) != len(s.AssetIDs) || len(s.Balances) != len(s.AssetIDs) {
		return reject(ReasonLockedBalanceMismatch, map[string]interface{}{
			"reason": "asset-indexed arrays out of sync",
		})
	}
	return nil
}

// CheckMerkleRoot verifies that state's MerkleRoot equals the root over
// leaves, which the caller (package driver) obtains from the active
// transfer set it is tracking alongside the signed state (the root itself
// is part of the commitment; the leaf set that produced it is not).
func CheckMerkleRoot(state *chantypes.CoreChannelState, leaves [][]byte) error {
	want := merkle.Root(merkle.SortLeaves(leaves))
	if state.MerkleRoot != want {
		return reject(ReasonMerkleRootMismatch, map[string]interface{}{
			"have": state.MerkleRoot.Hex(), "want": want.Hex(),
		})
	}
	return nil
}
