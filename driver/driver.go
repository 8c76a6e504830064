package driver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alfredolopez80/vector/chainreader"
	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/commitment"
	"github.com/alfredolopez80/vector/messaging"
	"github.com/alfredolopez80/vector/signer"
	"github.com/alfredolopez80/vector/storage"
	"github.com/alfredolopez80/vector/transition"
	"github.com/alfredolopez80/vector/validate"
	"github.com/alfredolopez80/vector/vm"
)

// Driver wires every collaborator named in spec.md §6 into the round
// orchestration of §4.5. One Driver instance runs all of a node's channels;
// the Leases registry gives each channelAddress its own serialization point
// so unrelated channels advance concurrently.
type Driver struct {
	Self       string
	Network    chantypes.NetworkContext
	Store      storage.Store
	Chain      chainreader.ChainReader
	Signer     signer.Signer
	Messaging  *messaging.ChannelMessaging
	VM         *vm.Executor
	Leases     *LeaseRegistry
	Timeout    time.Duration
	MaxRetries int
}

// New returns a Driver ready to run rounds. timeout/maxRetries are the
// per-round messaging budget handed to ChannelMessaging.SendProtocol.
func New(
	self string,
	network chantypes.NetworkContext,
	store storage.Store,
	chain chainreader.ChainReader,
	sgn signer.Signer,
	mess *messaging.ChannelMessaging,
	vmExec *vm.Executor,
	timeout time.Duration,
	maxRetries int,
) *Driver {
	return &Driver{
		Self:       self,
		Network:    network,
		Store:      store,
		Chain:      chain,
		Signer:     sgn,
		Messaging:  mess,
		VM:         vmExec,
		Leases:     NewLeaseRegistry(),
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
}

// Setup proposes the channel's opening update (spec.md §4.5 initiator flow,
// nonce 1, no previous state).
func (d *Driver) Setup(
	ctx context.Context,
	channelAddr common.Address,
	participants [2]common.Address,
	timeout uint64,
	toIdentifier string,
) (*chantypes.FullChannelState, error) {
	update := &chantypes.ChannelUpdate{
		Kind:           chantypes.Setup,
		ChannelAddress: channelAddr,
		FromIdentifier: d.Self,
		ToIdentifier:   toIdentifier,
		Nonce:          1,
		Balance:        [2]*big.Int{big.NewInt(0), big.NewInt(0)},
		Details: chantypes.Details{Setup: &chantypes.SetupDetails{
			Timeout:        timeout,
			NetworkContext: d.Network,
			Participants:   participants,
		}},
	}
	full, _, err := d.initiateRound(ctx, update, toIdentifier, true)
	return full, d.wrapOutcome(channelAddr, err)
}

// Deposit runs spec.md §4.5's deposit reconciliation against the chain
// reader and proposes the resulting deposit update.
func (d *Driver) Deposit(
	ctx context.Context,
	channelAddr, assetID common.Address,
	toIdentifier string,
) (*chantypes.FullChannelState, error) {
	full, err := d.Store.LoadChannel(channelAddr)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	if full == nil {
		return nil, fmt.Errorf("driver: channel %s not found", channelAddr.Hex())
	}

	balance, latestDepositNonce, err := ReconcileDeposit(ctx, d.Chain, &full.CoreChannelState, assetID)
	if err != nil {
		return nil, err
	}

	update := &chantypes.ChannelUpdate{
		Kind:           chantypes.Deposit,
		ChannelAddress: channelAddr,
		FromIdentifier: d.Self,
		ToIdentifier:   toIdentifier,
		Nonce:          full.Nonce + 1,
		Balance:        balance,
		AssetID:        assetID,
		Details: chantypes.Details{Deposit: &chantypes.DepositDetails{
			AssetID:            assetID,
			LatestDepositNonce: latestDepositNonce,
		}},
	}
	result, _, err := d.initiateRound(ctx, update, toIdentifier, true)
	return result, d.wrapOutcome(channelAddr, err)
}

// Create locks amount of assetID behind definition/initialState as a new
// transfer (spec.md §4.3/§4.6).
func (d *Driver) Create(
	ctx context.Context,
	channelAddr, assetID common.Address,
	amount *big.Int,
	definition common.Address,
	initialState []byte,
	encodings []string,
	transferTimeout uint64,
	toIdentifier string,
) (*chantypes.FullChannelState, *chantypes.TransferState, error) {
	full, err := d.Store.LoadChannel(channelAddr)
	if err != nil {
		return nil, nil, classifyStorageErr(err)
	}
	if full == nil {
		return nil, nil, fmt.Errorf("driver: channel %s not found", channelAddr.Hex())
	}
	selfIdx, err := d.participantIndex(&full.CoreChannelState)
	if err != nil {
		return nil, nil, err
	}

	balance := [2]*big.Int{big.NewInt(0), big.NewInt(0)}
	balance[selfIdx] = new(big.Int).Set(amount)

	update := &chantypes.ChannelUpdate{
		Kind:           chantypes.Create,
		ChannelAddress: channelAddr,
		FromIdentifier: d.Self,
		ToIdentifier:   toIdentifier,
		Nonce:          full.Nonce + 1,
		Balance:        balance,
		AssetID:        assetID,
		Details: chantypes.Details{Create: &chantypes.CreateDetails{
			TransferID:           uuid.New(),
			TransferDefinition:   definition,
			TransferInitialState: initialState,
			TransferEncodings:    encodings,
			TransferTimeout:      transferTimeout,
		}},
	}
	fullState, result, err := d.initiateRound(ctx, update, toIdentifier, true)
	if err != nil {
		return nil, nil, d.wrapOutcome(channelAddr, err)
	}
	return fullState, result.CreatedTransfer, nil
}

// Resolve executes the transfer's condition program's resolve(state,
// resolver) and proposes the resulting payout as a Resolve update (spec.md
// §4.3/§4.6).
func (d *Driver) Resolve(
	ctx context.Context,
	channelAddr common.Address,
	transferID uuid.UUID,
	resolver []byte,
	toIdentifier string,
) (*chantypes.FullChannelState, error) {
	full, err := d.Store.LoadChannel(channelAddr)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	if full == nil {
		return nil, fmt.Errorf("driver: channel %s not found", channelAddr.Hex())
	}
	transfers, err := d.Store.LoadActiveTransfers(channelAddr)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	transfer, ok := transfers.Get(transferID)
	if !ok {
		return nil, &validate.Rejection{
			Reason:  validate.ReasonTransferNotActive,
			Context: map[string]interface{}{"transferId": transferID.String()},
		}
	}

	split, err := d.VM.Resolve(transfer.Definition, transfer.InitialState, resolver)
	if err != nil {
		return nil, classifyChainErr(err)
	}
	balance, err := mapSplitToBalance(full.Participants, split)
	if err != nil {
		return nil, err
	}

	update := &chantypes.ChannelUpdate{
		Kind:           chantypes.Resolve,
		ChannelAddress: channelAddr,
		FromIdentifier: d.Self,
		ToIdentifier:   toIdentifier,
		Nonce:          full.Nonce + 1,
		Balance:        balance,
		AssetID:        transfer.AssetID,
		Details: chantypes.Details{Resolve: &chantypes.ResolveDetails{
			TransferID:       transferID,
			TransferResolver: resolver,
		}},
	}
	result, _, err := d.initiateRound(ctx, update, toIdentifier, true)
	return result, d.wrapOutcome(channelAddr, err)
}

// initiateRound acquires the channel's exclusive lease and runs the round.
// allowResync gates the one-shot StaleUpdate resync so a retried round
// (itself the product of a resync) can never trigger a second one.
func (d *Driver) initiateRound(
	ctx context.Context,
	update *chantypes.ChannelUpdate,
	toIdentifier string,
	allowResync bool,
) (*chantypes.FullChannelState, *transition.Result, error) {
	release := d.Leases.Acquire(update.ChannelAddress)
	defer release()

	return d.runRound(ctx, update, toIdentifier, allowResync)
}

// runRound implements spec.md §4.5's initiator flow steps 1-7, assuming the
// caller already holds the channel's lease. resyncAndRetry calls back into
// this directly (never into initiateRound) so its retried round does not
// attempt to re-acquire a lease this goroutine already holds.
func (d *Driver) runRound(
	ctx context.Context,
	update *chantypes.ChannelUpdate,
	toIdentifier string,
	allowResync bool,
) (*chantypes.FullChannelState, *transition.Result, error) {
	full, err := d.Store.LoadChannel(update.ChannelAddress)
	if err != nil {
		return nil, nil, classifyStorageErr(err)
	}
	var previousCore *chantypes.CoreChannelState
	var previousUpdate *chantypes.ChannelUpdate
	if full != nil {
		previousCore = full.Core()
		previousUpdate = full.LatestUpdate
	}

	transfers, err := d.Store.LoadActiveTransfers(update.ChannelAddress)
	if err != nil {
		return nil, nil, classifyStorageErr(err)
	}

	log.Debugf("ChannelPoint(%x): starting round, kind=%s nonce=%d",
		update.ChannelAddress, update.Kind, update.Nonce)

	result, _, err := d.applyAndValidate(previousCore, transfers, update, validate.Structural)
	if err != nil {
		return nil, nil, err
	}

	selfIdx, err := d.participantIndex(result.State)
	if err != nil {
		return nil, nil, err
	}

	signedUpdate, err := d.signSlot(update, result.State, selfIdx)
	if err != nil {
		return nil, nil, classifySignerErr(err)
	}

	reply, sendErr := d.Messaging.SendProtocol(ctx, signedUpdate, previousUpdate, toIdentifier, d.Timeout, d.MaxRetries)
	if sendErr != nil {
		var protoErr *messaging.ProtocolError
		if errors.As(sendErr, &protoErr) && protoErr.Reason == ReasonStaleUpdate && allowResync {
			log.Infof("ChannelPoint(%x): stale update rejected, resyncing and retrying once",
				update.ChannelAddress)
			return d.resyncAndRetry(ctx, update, toIdentifier, reply.PreviousUpdate)
		}
		if errors.Is(sendErr, messaging.ErrMessagingTimeout) {
			return nil, nil, fmt.Errorf("%s: %w", ReasonMessagingError, sendErr)
		}
		return nil, nil, sendErr
	}

	finalResult, _, err := d.applyAndValidate(previousCore, transfers, reply.Update, validate.Full)
	if err != nil {
		return nil, nil, err
	}

	fullState := &chantypes.FullChannelState{
		CoreChannelState:  *finalResult.State,
		PublicIdentifiers: d.resolveIdentifiers(full, selfIdx, toIdentifier),
		NetworkContext:    d.Network,
		LatestUpdate:      reply.Update,
	}
	commit := &chantypes.Commitment{
		ChainID:            d.Network.ChainID,
		State:              finalResult.State,
		AdjudicatorAddress: d.Network.AdjudicatorAddress,
		Signatures:         reply.Update.Signatures,
	}
	if err := d.Store.SaveChannel(fullState, commit); err != nil {
		return nil, nil, classifyStorageErr(err)
	}
	if err := d.persistTransferDelta(update.ChannelAddress, finalResult); err != nil {
		return nil, nil, classifyStorageErr(err)
	}

	log.Debugf("ChannelPoint(%x): round complete, nonce=%d", update.ChannelAddress, finalResult.State.Nonce)

	return fullState, finalResult, nil
}

// resyncAndRetry implements spec.md §4.5 step 7: on StaleUpdate, apply the
// counterparty's attached latest update locally, then restart the original
// round exactly once against the now-current nonce.
func (d *Driver) resyncAndRetry(
	ctx context.Context,
	originalUpdate *chantypes.ChannelUpdate,
	toIdentifier string,
	counterpartyLatest *chantypes.ChannelUpdate,
) (*chantypes.FullChannelState, *transition.Result, error) {
	if counterpartyLatest == nil {
		return nil, nil, fmt.Errorf("%s: no update attached to resync from", ReasonStaleUpdate)
	}

	full, err := d.Store.LoadChannel(originalUpdate.ChannelAddress)
	if err != nil {
		return nil, nil, classifyStorageErr(err)
	}
	var previousCore *chantypes.CoreChannelState
	if full != nil {
		previousCore = full.Core()
	}
	transfers, err := d.Store.LoadActiveTransfers(originalUpdate.ChannelAddress)
	if err != nil {
		return nil, nil, classifyStorageErr(err)
	}

	result, _, err := d.applyAndValidate(previousCore, transfers, counterpartyLatest, validate.Full)
	if err != nil {
		return nil, nil, err
	}
	selfIdx, err := d.participantIndex(result.State)
	if err != nil {
		return nil, nil, err
	}

	fullState := &chantypes.FullChannelState{
		CoreChannelState:  *result.State,
		PublicIdentifiers: d.resolveIdentifiers(full, selfIdx, toIdentifier),
		NetworkContext:    d.Network,
		LatestUpdate:      counterpartyLatest,
	}
	commit := &chantypes.Commitment{
		ChainID:            d.Network.ChainID,
		State:              result.State,
		AdjudicatorAddress: d.Network.AdjudicatorAddress,
		Signatures:         counterpartyLatest.Signatures,
	}
	if err := d.Store.SaveChannel(fullState, commit); err != nil {
		return nil, nil, classifyStorageErr(err)
	}
	if err := d.persistTransferDelta(originalUpdate.ChannelAddress, result); err != nil {
		return nil, nil, classifyStorageErr(err)
	}

	retryUpdate := originalUpdate.Clone()
	retryUpdate.Nonce = result.State.Nonce + 1
	retryUpdate.Signatures = [2]chantypes.Signature{}
	if retryUpdate.Kind == chantypes.Deposit {
		// The reconciled figures were derived from the pre-resync local
		// balances; derive them again against the resynced state.
		balance, latestDepositNonce, err := ReconcileDeposit(ctx, d.Chain, result.State, retryUpdate.AssetID)
		if err != nil {
			return nil, nil, err
		}
		retryUpdate.Balance = balance
		retryUpdate.Details.Deposit = &chantypes.DepositDetails{
			AssetID:            retryUpdate.AssetID,
			LatestDepositNonce: latestDepositNonce,
		}
	}

	return d.runRound(ctx, retryUpdate, toIdentifier, false)
}

// HandleInbound implements spec.md §4.5's responder flow for a fresh
// inbound proposal delivered by ChannelMessaging.OnReceiveProtocol (replies
// correlated to one of our own waiters never reach here).
func (d *Driver) HandleInbound(ctx context.Context, msg messaging.Message) {
	update := msg.Data.Update
	if update == nil {
		return
	}
	addr := update.ChannelAddress

	log.Debugf("ChannelPoint(%x): inbound proposal, kind=%s nonce=%d",
		addr, update.Kind, update.Nonce)

	release := d.Leases.Acquire(addr)
	defer release()

	full, err := d.Store.LoadChannel(addr)
	if err != nil {
		d.respondErr(update.FromIdentifier, msg.Inbox, classifyStorageErr(err), ReasonStorageError, nil)
		return
	}
	var localNonce uint64
	var previousCore *chantypes.CoreChannelState
	if full != nil {
		localNonce = full.Nonce
		previousCore = full.Core()
	}

	switch {
	case update.Nonce <= localNonce:
		var latest *chantypes.ChannelUpdate
		if full != nil {
			latest = full.LatestUpdate
		}
		d.Messaging.RespondError(d.Self, update.FromIdentifier, msg.Inbox, &messaging.ProtocolError{
			Reason: ReasonStaleUpdate,
			Context: map[string]interface{}{
				"localNonce": localNonce, "updateNonce": update.Nonce,
			},
		}, latest)
		return
	case update.Nonce > localNonce+1:
		d.Messaging.RespondError(d.Self, update.FromIdentifier, msg.Inbox, &messaging.ProtocolError{
			Reason: ReasonMissingUpdates,
			Context: map[string]interface{}{
				"localNonce": localNonce, "updateNonce": update.Nonce,
			},
		}, nil)
		return
	}

	transfers, err := d.Store.LoadActiveTransfers(addr)
	if err != nil {
		d.respondErr(update.FromIdentifier, msg.Inbox, classifyStorageErr(err), ReasonStorageError, nil)
		return
	}

	result, _, err := d.applyAndValidate(previousCore, transfers, update, validate.Half)
	if err != nil {
		d.respondErr(update.FromIdentifier, msg.Inbox, err, ReasonUnknown, nil)
		return
	}

	selfIdx, err := d.participantIndex(result.State)
	if err != nil {
		d.respondErr(update.FromIdentifier, msg.Inbox, err, ReasonUnknown, nil)
		return
	}
	signedUpdate, err := d.signSlot(update, result.State, selfIdx)
	if err != nil {
		d.respondErr(update.FromIdentifier, msg.Inbox, classifySignerErr(err), ReasonSignerError, nil)
		return
	}

	fullState := &chantypes.FullChannelState{
		CoreChannelState:  *result.State,
		PublicIdentifiers: d.resolveIdentifiers(full, selfIdx, update.FromIdentifier),
		NetworkContext:    d.Network,
		LatestUpdate:      signedUpdate,
	}
	commit := &chantypes.Commitment{
		ChainID:            d.Network.ChainID,
		State:              result.State,
		AdjudicatorAddress: d.Network.AdjudicatorAddress,
		Signatures:         signedUpdate.Signatures,
	}
	if err := d.Store.SaveChannel(fullState, commit); err != nil {
		d.respondErr(update.FromIdentifier, msg.Inbox, classifyStorageErr(err), ReasonStorageError, nil)
		return
	}
	if err := d.persistTransferDelta(addr, result); err != nil {
		d.respondErr(update.FromIdentifier, msg.Inbox, classifyStorageErr(err), ReasonStorageError, nil)
		return
	}

	d.Messaging.Respond(update.FromIdentifier, signedUpdate, msg.Inbox, nil)
}

func (d *Driver) respondErr(toIdentifier string, inbox messaging.Inbox, err error, kind string, previousUpdate *chantypes.ChannelUpdate) {
	d.Messaging.RespondError(d.Self, toIdentifier, inbox, toProtocolError(err, kind, nil), previousUpdate)
}

// applyAndValidate runs one transition + the matching validation pass,
// folding in the condition-program checks of spec.md §4.6: Create must be
// accepted by the program, and Resolve's proposed Balance must equal the
// program's actual {to,amount} verdict for the transfer's definition/state/
// resolver. It is the single chokepoint both the initiator and responder
// paths go through, so the two sides can never diverge on what "valid"
// means, and neither side can countersign a payout the condition program
// did not itself produce.
func (d *Driver) applyAndValidate(
	previous *chantypes.CoreChannelState,
	transfers *chantypes.ActiveTransferSet,
	update *chantypes.ChannelUpdate,
	required validate.RequiredSignatures,
) (*transition.Result, *chantypes.ActiveTransferSet, error) {
	if update.Kind == chantypes.Create {
		cd := update.Details.Create
		if cd == nil {
			return nil, nil, &validate.Rejection{Reason: validate.ReasonBadPrecondition, Context: map[string]interface{}{"reason": "create requires details"}}
		}
		accepted, err := d.VM.Create(cd.TransferDefinition, cd.TransferInitialState)
		if err != nil {
			return nil, nil, classifyChainErr(err)
		}
		if !accepted {
			return nil, nil, &vm.ErrTransferNotAccepted{Definition: cd.TransferDefinition}
		}
	}

	if update.Kind == chantypes.Resolve {
		rd := update.Details.Resolve
		if rd == nil {
			return nil, nil, &validate.Rejection{Reason: validate.ReasonBadPrecondition, Context: map[string]interface{}{"reason": "resolve requires details"}}
		}
		transfer, ok := transfers.Get(rd.TransferID)
		if !ok {
			return nil, nil, &validate.Rejection{Reason: validate.ReasonTransferNotActive, Context: map[string]interface{}{"transferId": rd.TransferID.String()}}
		}
		split, err := d.VM.Resolve(transfer.Definition, transfer.InitialState, rd.TransferResolver)
		if err != nil {
			return nil, nil, classifyChainErr(err)
		}
		expected, err := mapSplitToBalance(previous.Participants, split)
		if err != nil {
			return nil, nil, err
		}
		if expected[0].Cmp(update.Balance[0]) != 0 || expected[1].Cmp(update.Balance[1]) != 0 {
			return nil, nil, &validate.Rejection{
				Reason: validate.ReasonResolveMismatch,
				Context: map[string]interface{}{
					"transferId": rd.TransferID.String(),
					"expected":   [2]*big.Int{expected[0], expected[1]},
					"proposed":   update.Balance,
				},
			}
		}
	}

	result, newTransfers, err := transition.Apply(previous, transfers, update)
	if err != nil {
		return nil, nil, classifyTransitionErr(err)
	}

	if err := validate.Validate(previous, update, result.State, required); err != nil {
		return nil, nil, err
	}
	if err := validate.CheckMerkleRoot(result.State, newTransfers.Leaves()); err != nil {
		return nil, nil, err
	}

	return result, newTransfers, nil
}

func classifyTransitionErr(err error) error {
	reason := validate.ReasonBadPrecondition
	switch {
	case errors.Is(err, chantypes.ErrTransferNotFound):
		reason = validate.ReasonTransferNotActive
	case errors.Is(err, chantypes.ErrTransferExists), errors.Is(err, chantypes.ErrUnknownAsset):
		reason = validate.ReasonBadPrecondition
	}
	return &validate.Rejection{Reason: reason, Context: map[string]interface{}{"error": err.Error()}}
}

func (d *Driver) persistTransferDelta(addr common.Address, result *transition.Result) error {
	if result.CreatedTransfer != nil {
		if err := d.Store.SaveTransfer(addr, result.CreatedTransfer); err != nil {
			return err
		}
	}
	if result.RemovedTransfer != nil {
		if err := d.Store.RemoveTransfer(addr, result.RemovedTransfer.TransferID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) signSlot(update *chantypes.ChannelUpdate, state *chantypes.CoreChannelState, idx int) (*chantypes.ChannelUpdate, error) {
	cloned := update.Clone()
	commit := &chantypes.Commitment{
		ChainID:            d.Network.ChainID,
		State:              state,
		AdjudicatorAddress: d.Network.AdjudicatorAddress,
		Signatures:         cloned.Signatures,
	}
	digest, err := commitment.HashCommitment(commit)
	if err != nil {
		return nil, err
	}
	sig, err := d.Signer.SignMessage(digest)
	if err != nil {
		return nil, err
	}
	cloned.Signatures[idx] = sig
	return cloned, nil
}

func (d *Driver) participantIndex(state *chantypes.CoreChannelState) (int, error) {
	self := d.Signer.Address()
	for i, p := range state.Participants {
		if p == self {
			return i, nil
		}
	}
	return 0, fmt.Errorf("driver: signer address %s is not a participant of channel %s", self.Hex(), state.ChannelAddress.Hex())
}

// resolveIdentifiers carries PublicIdentifiers forward from the existing
// full state, or — when bootstrapping a channel via Setup, where no prior
// FullChannelState exists — derives it from this node's own identifier and
// the counterparty's.
func (d *Driver) resolveIdentifiers(full *chantypes.FullChannelState, selfIdx int, counterpartyIdentifier string) [2]string {
	if full != nil {
		return full.PublicIdentifiers
	}
	var ids [2]string
	ids[selfIdx] = d.Self
	ids[1-selfIdx] = counterpartyIdentifier
	return ids
}

// mapSplitToBalance maps a condition program's {to[2], amount[2]} payout
// (vm.BalanceSplit) onto the participant-indexed Balance credit transition
// expects (see DESIGN.md's Create/Resolve Balance convention): each nonzero
// amount must be payable to one of the channel's two participants.
func mapSplitToBalance(participants [2]common.Address, split vm.BalanceSplit) ([2]*big.Int, error) {
	balance := [2]*big.Int{big.NewInt(0), big.NewInt(0)}
	for i := 0; i < 2; i++ {
		amt := split.Amount[i]
		if amt == nil || amt.Sign() == 0 {
			continue
		}
		matched := false
		for p := 0; p < 2; p++ {
			if split.To[i] == participants[p] {
				balance[p] = new(big.Int).Add(balance[p], amt)
				matched = true
				break
			}
		}
		if !matched {
			return balance, fmt.Errorf("driver: resolve payout to non-participant %s", split.To[i].Hex())
		}
	}
	return balance, nil
}
