// Package storage defines the persistence collaborator interface of
// spec.md §6 and its two concrete backends: storage/boltstore (the default,
// bbolt-backed append-only log) and storage/memstore (in-memory, for
// tests). Grounded on channeldb's bucket-transaction idiom
// (channeldb/db.go) and its sentinel-error style (channeldb/error.go).
package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alfredolopez80/vector/chantypes"
)

// Store is the persistence collaborator the driver depends on. SaveChannel
// is atomic: state and commitment are written together or not at all. The
// transfer set is not part of that write; it is updated by separate
// SaveTransfer/RemoveTransfer calls.
type Store interface {
	LoadChannel(addr common.Address) (*chantypes.FullChannelState, error)
	SaveChannel(state *chantypes.FullChannelState, commit *chantypes.Commitment) error
	LoadActiveTransfers(addr common.Address) (*chantypes.ActiveTransferSet, error)
	SaveTransfer(addr common.Address, transfer *chantypes.TransferState) error
	RemoveTransfer(addr common.Address, id uuid.UUID) error
}

// Sentinel errors, grounded on channeldb/error.go's plain fmt.Errorf
// sentinel-var-block convention.
var (
	ErrChannelNotFound  = fmt.Errorf("storage: channel does not exist")
	ErrTransferNotFound = fmt.Errorf("storage: transfer does not exist")
)
