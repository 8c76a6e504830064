// Package signer implements the Signer collaborator interface named in
// spec.md §6: an address and a digest-signing operation. Generalizes lnd's
// lnwallet.Signer (used throughout lnwallet/channel.go as lc.signer) from
// Bitcoin-script input signing to a bare commitment-digest signer.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the collaborator interface the driver depends on to produce a
// participant's slot of a commitment's signature array.
type Signer interface {
	Address() common.Address
	SignMessage(digest common.Hash) ([]byte, error)
}

// Local is an in-memory ecdsa-backed Signer. Production deployments are
// expected to swap in a remote/HSM-backed implementation of the same
// interface; Local is the default used by cmd/vectord and by tests.
type Local struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewLocal wraps an existing private key.
func NewLocal(key *ecdsa.PrivateKey) *Local {
	return &Local{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// GenerateLocal creates a fresh random signing key, for tests and
// throwaway local nodes.
func GenerateLocal() (*Local, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("signer: generate key: %w", err)
	}
	return NewLocal(key), nil
}

// Address implements Signer.
func (l *Local) Address() common.Address { return l.addr }

// SignMessage implements Signer. It signs the raw digest directly — the
// domain separation already happened in commitment.HashCommitment, so no
// further prefixing is applied here.
func (l *Local) SignMessage(digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), l.key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}
	return sig, nil
}

// LoadOrGenerate reads the hex-encoded private key at path, creating a fresh
// one and writing it there on first use. This gives vectord and vectorctl a
// stable signing identity across separate process invocations, the way
// lnd's wallet seed survives restarts instead of being regenerated.
func LoadOrGenerate(path string) (*Local, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := crypto.HexToECDSA(string(data))
		if err != nil {
			return nil, fmt.Errorf("signer: parse key file %s: %w", path, err)
		}
		return NewLocal(key), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("signer: read key file %s: %w", path, err)
	}

	local, err := GenerateLocal()
	if err != nil {
		return nil, err
	}
	hexKey := fmt.Sprintf("%x", crypto.FromECDSA(local.key))
	if err := os.WriteFile(path, []byte(hexKey), 0600); err != nil {
		return nil, fmt.Errorf("signer: write key file %s: %w", path, err)
	}
	return local, nil
}

var _ Signer = (*Local)(nil)
