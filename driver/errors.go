// Package driver orchestrates a full update round (spec.md §4.5): the
// initiator/responder exchange, per-channel exclusive leasing (§5), deposit
// reconciliation, and the one-shot StaleUpdate resync. Grounded on
// lnwallet/channel.go's ProcessChanSyncMsg/SignNextCommitment/
// ReceiveNewCommitment/RevokeCurrentCommitment round shape, generalized from
// lnd's HTLC-commitment dance to the four update kinds of this protocol.
package driver

import (
	"fmt"

	"github.com/alfredolopez80/vector/messaging"
	"github.com/alfredolopez80/vector/validate"
	"github.com/alfredolopez80/vector/vm"
)

// Protocol-synchronization reasons (spec.md §7), produced by the driver
// rather than by package validate: they describe a mismatch between the two
// participants' views of the channel, not a malformed update.
const (
	ReasonStaleUpdate    = "StaleUpdate"
	ReasonMissingUpdates = "MissingUpdates"
	ReasonChainError     = "ChainError"
	ReasonStorageError   = "StorageError"
	ReasonSignerError    = "SignerError"
	ReasonMessagingError = "MessagingError"
	// ReasonUnknown is the catch-all "Unknown" messaging-category reason
	// of spec.md §7, used as the fallback tag for an error that toProtocolError
	// cannot otherwise classify from its concrete type.
	ReasonUnknown = "Unknown"
)

// ErrNoNewDeposit signals that chain.nonce == state.latestDepositNonce: the
// resolution (DESIGN.md, Open Question) of deposit reconciliation observing
// no new on-chain deposit to reconcile.
var ErrNoNewDeposit = fmt.Errorf("driver: no new deposit to reconcile")

// toProtocolError classifies an error surfaced during a round into the
// structured wire-level error of spec.md §6/§7. Rejections from package
// validate are carried through verbatim (their Reason is already part of
// the taxonomy); everything else is tagged with the external-error kind
// that produced it.
func toProtocolError(err error, kind string, context map[string]interface{}) *messaging.ProtocolError {
	if err == nil {
		return nil
	}
	if rej, ok := err.(*validate.Rejection); ok {
		ctx := rej.Context
		if ctx == nil {
			ctx = map[string]interface{}{}
		}
		return &messaging.ProtocolError{Reason: string(rej.Reason), Context: ctx}
	}
	if notAccepted, ok := err.(*vm.ErrTransferNotAccepted); ok {
		return &messaging.ProtocolError{
			Reason:  string(validate.ReasonTransferNotAccepted),
			Context: map[string]interface{}{"definition": notAccepted.Definition.Hex()},
		}
	}
	if context == nil {
		context = map[string]interface{}{}
	}
	context["error"] = err.Error()
	return &messaging.ProtocolError{Reason: kind, Context: context}
}

// classifyChainErr/classifyStorageErr/classifySignerErr wrap collaborator
// failures with the external-error taxonomy of spec.md §7: "retriable at
// the caller's discretion; the core reports them unaltered", i.e. the
// driver never swallows them, only tags them.
func classifyChainErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", ReasonChainError, err)
}

func classifyStorageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", ReasonStorageError, err)
}

func classifySignerErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", ReasonSignerError, err)
}
