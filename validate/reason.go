// Package validate implements the update validator of spec.md §4.2: given a
// previous state, a proposed update and its candidate next state, decide
// whether the update is legal. Grounded on lnwallet's
// validateCommitmentSanity (lnwallet/channel.go:3396) — an ordered chain of
// precondition checks that stops at the first failure and returns a
// specific sentinel reason.
package validate

import "fmt"

// Reason enumerates the validation-failure taxonomy of spec.md §7.
type Reason string

const (
	ReasonBadNonce               Reason = "BadNonce"
	ReasonBadParticipants        Reason = "BadParticipants"
	ReasonBadSignature           Reason = "BadSignature"
	ReasonConservationViolated   Reason = "ConservationViolated"
	ReasonLockedBalanceMismatch  Reason = "LockedBalanceMismatch"
	ReasonMerkleRootMismatch     Reason = "MerkleRootMismatch"
	ReasonTransferNotAccepted    Reason = "TransferNotAccepted"
	ReasonTransferNotActive      Reason = "TransferNotActive"
	ReasonResolveMismatch        Reason = "ResolveMismatch"
	ReasonBadPrecondition        Reason = "BadPrecondition"
)

// Rejection is the structured rejection returned by Validate — never a bare
// error string, so the driver can classify it per spec.md §7.
type Rejection struct {
	Reason  Reason
	Context map[string]interface{}
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("validate: rejected (%s): %v", r.Reason, r.Context)
}

func reject(reason Reason, context map[string]interface{}) *Rejection {
	return &Rejection{Reason: reason, Context: context}
}
