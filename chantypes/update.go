package chantypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// UpdateKind discriminates the four legal channel update kinds. Generalizes
// the source's string "type" tag into a closed Go enum so the transition in
// package transition can be total by case analysis (design note, spec.md
// §9).
type UpdateKind uint8

const (
	Setup UpdateKind = iota
	Deposit
	Create
	Resolve
)

func (k UpdateKind) String() string {
	switch k {
	case Setup:
		return "setup"
	case Deposit:
		return "deposit"
	case Create:
		return "create"
	case Resolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// Signature is a 65-byte recoverable secp256k1 signature (r || s || v), the
// format produced by github.com/ethereum/go-ethereum/crypto.Sign. An empty
// Signature (len 0) denotes an absent slot.
type Signature []byte

func (s Signature) present() bool { return len(s) > 0 }

// SetupDetails is the kind-specific payload of a Setup update. Participants
// is carried here (rather than derived) because a Setup update is the only
// update with no previous state to inherit it from.
type SetupDetails struct {
	Timeout        uint64
	NetworkContext NetworkContext
	Participants   [2]common.Address
}

// DepositDetails is the kind-specific payload of a Deposit update.
type DepositDetails struct {
	AssetID            common.Address
	LatestDepositNonce uint64
}

// CreateDetails is the kind-specific payload of a Create update.
type CreateDetails struct {
	TransferID           uuid.UUID
	TransferDefinition   common.Address
	TransferInitialState []byte
	TransferEncodings    []string
	TransferTimeout      uint64
	Meta                 map[string]interface{}
}

// ResolveDetails is the kind-specific payload of a Resolve update.
type ResolveDetails struct {
	TransferID       uuid.UUID
	TransferResolver []byte
	Meta             map[string]interface{}
}

// Details is the kind-specific payload carried by a ChannelUpdate. Exactly
// one of the embedded pointers is non-nil, selected by Kind — a sum type
// standing in for the source's untyped details bag (design note, spec.md
// §9).
type Details struct {
	Setup   *SetupDetails   `json:"setup,omitempty"`
	Deposit *DepositDetails `json:"deposit,omitempty"`
	Create  *CreateDetails  `json:"create,omitempty"`
	Resolve *ResolveDetails `json:"resolve,omitempty"`
}

// ChannelUpdate is the proposal exchanged between the two participants for
// a single round. Field order matches spec.md §3.
type ChannelUpdate struct {
	Kind            UpdateKind
	ChannelAddress  common.Address
	FromIdentifier  string
	ToIdentifier    string
	Nonce           uint64
	Balance         [2]*big.Int
	AssetID         common.Address
	Details         Details
	Signatures      [2]Signature
}

// SignatureCount returns the number of non-empty signature slots.
func (u *ChannelUpdate) SignatureCount() int {
	n := 0
	for _, s := range u.Signatures {
		if s.present() {
			n++
		}
	}
	return n
}

// Clone deep-copies the update so that a responder's mutation (adding its
// own signature) never mutates the proposer's copy.
func (u *ChannelUpdate) Clone() *ChannelUpdate {
	cp := *u
	cp.Balance = [2]*big.Int{new(big.Int).Set(u.Balance[0]), new(big.Int).Set(u.Balance[1])}
	for i, s := range u.Signatures {
		if s.present() {
			cp.Signatures[i] = append(Signature(nil), s...)
		}
	}
	return &cp
}
