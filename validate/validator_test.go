package validate

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/commitment"
	"github.com/alfredolopez80/vector/internal/testutils"
)

func signedSetup(t *testing.T) (alice, bob testutils.Side, state *chantypes.CoreChannelState) {
	t.Helper()
	alice, bob = testutils.NewParticipants(t)
	state = testutils.NewCoreChannelState(alice, bob, big.NewInt(1000), big.NewInt(1000))
	return alice, bob, state
}

func sign(t *testing.T, state *chantypes.CoreChannelState, side testutils.Side) chantypes.Signature {
	t.Helper()
	digest, err := commitment.HashCommitment(&chantypes.Commitment{State: state})
	require.NoError(t, err)
	sig, err := side.Signer.SignMessage(digest)
	require.NoError(t, err)
	return sig
}

func TestValidateSetupAcceptsFirstNonceNoPrevious(t *testing.T) {
	alice, bob, state := signedSetup(t)
	update := &chantypes.ChannelUpdate{
		Kind: chantypes.Setup,
		Details: chantypes.Details{Setup: &chantypes.SetupDetails{
			Timeout:      state.Timeout,
			Participants: state.Participants,
		}},
	}
	err := Validate(nil, update, state, Structural)
	require.NoError(t, err)
	_ = alice
	_ = bob
}

func TestValidateRejectsWrongNonce(t *testing.T) {
	_, _, state := signedSetup(t)
	state.Nonce = 5
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Setup,
		Details: chantypes.Details{Setup: &chantypes.SetupDetails{Participants: state.Participants}},
	}
	err := Validate(nil, update, state, Structural)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ReasonBadNonce, rej.Reason)
}

func TestValidateRejectsChangedParticipants(t *testing.T) {
	alice, bob, prev := signedSetup(t)
	next := prev.Clone()
	next.Nonce = prev.Nonce + 1
	next.Participants = [2]common.Address{alice.Address, alice.Address}
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Deposit,
		Details: chantypes.Details{Deposit: &chantypes.DepositDetails{LatestDepositNonce: 1}},
	}
	err := Validate(prev, update, next, Structural)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ReasonBadParticipants, rej.Reason)
	_ = bob
}

func TestValidateRejectsNegativeLockedBalance(t *testing.T) {
	_, _, prev := signedSetup(t)
	next := prev.Clone()
	next.Nonce = prev.Nonce + 1
	next.LockedBalance[0] = big.NewInt(-1)
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Deposit,
		Details: chantypes.Details{Deposit: &chantypes.DepositDetails{LatestDepositNonce: 1}},
	}
	err := Validate(prev, update, next, Structural)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ReasonLockedBalanceMismatch, rej.Reason)
}

func TestValidateRejectsInsufficientSignatureCount(t *testing.T) {
	_, _, prev := signedSetup(t)
	next := prev.Clone()
	next.Nonce = prev.Nonce + 1
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Deposit,
		Details: chantypes.Details{Deposit: &chantypes.DepositDetails{LatestDepositNonce: 1}},
	}
	err := Validate(prev, update, next, Half)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ReasonBadSignature, rej.Reason)
}

func TestValidateAcceptsValidSignature(t *testing.T) {
	alice, _, prev := signedSetup(t)
	next := prev.Clone()
	next.Nonce = prev.Nonce + 1
	sig := sign(t, next, alice)
	update := &chantypes.ChannelUpdate{
		Kind:       chantypes.Deposit,
		Signatures: [2]chantypes.Signature{sig, nil},
		Details:    chantypes.Details{Deposit: &chantypes.DepositDetails{LatestDepositNonce: 1}},
	}
	err := Validate(prev, update, next, Half)
	require.NoError(t, err)
}

func TestValidateRejectsSignatureFromWrongKey(t *testing.T) {
	_, bob, prev := signedSetup(t)
	next := prev.Clone()
	next.Nonce = prev.Nonce + 1
	// bob signs but occupies slot 0 (alice's slot) — recovered address
	// will not match participants[0].
	sig := sign(t, next, bob)
	update := &chantypes.ChannelUpdate{
		Kind:       chantypes.Deposit,
		Signatures: [2]chantypes.Signature{sig, nil},
		Details:    chantypes.Details{Deposit: &chantypes.DepositDetails{LatestDepositNonce: 1}},
	}
	err := Validate(prev, update, next, Half)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ReasonBadSignature, rej.Reason)
}

func TestValidateRejectsStaleDepositNonce(t *testing.T) {
	_, _, prev := signedSetup(t)
	prev.LatestDepositNonce = 5
	next := prev.Clone()
	next.Nonce = prev.Nonce + 1
	update := &chantypes.ChannelUpdate{
		Kind:    chantypes.Deposit,
		Details: chantypes.Details{Deposit: &chantypes.DepositDetails{LatestDepositNonce: 5}},
	}
	err := Validate(prev, update, next, Structural)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ReasonBadPrecondition, rej.Reason)
}

func TestCheckMerkleRootMismatch(t *testing.T) {
	_, _, state := signedSetup(t)
	err := CheckMerkleRoot(state, [][]byte{[]byte("unexpected leaf")})
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ReasonMerkleRootMismatch, rej.Reason)
}
