// Package memstore is the in-memory Store implementation used by tests and
// by cmd/vectord's -storage=memory mode.
package memstore

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/storage"
)

type entry struct {
	state     *chantypes.FullChannelState
	commit    *chantypes.Commitment
	transfers *chantypes.ActiveTransferSet
	// log is the append-only history of accepted commitments, kept so
	// the channel can be reconstructed by replay (spec.md §6).
	log []*chantypes.Commitment
}

// Store is a sync.Mutex-guarded map-backed storage.Store.
type Store struct {
	mu       sync.Mutex
	channels map[common.Address]*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{channels: make(map[common.Address]*entry)}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) LoadChannel(addr common.Address) (*chantypes.FullChannelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.channels[addr]
	if !ok {
		return nil, nil
	}
	return e.state, nil
}

func (s *Store) SaveChannel(state *chantypes.FullChannelState, commit *chantypes.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.channels[state.ChannelAddress]
	if !ok {
		e = &entry{transfers: chantypes.NewActiveTransferSet()}
		s.channels[state.ChannelAddress] = e
	}
	e.state = state
	e.commit = commit
	e.log = append(e.log, commit)
	return nil
}

func (s *Store) LoadActiveTransfers(addr common.Address) (*chantypes.ActiveTransferSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.channels[addr]
	if !ok {
		return chantypes.NewActiveTransferSet(), nil
	}
	return e.transfers.Clone(), nil
}

func (s *Store) SaveTransfer(addr common.Address, transfer *chantypes.TransferState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.channels[addr]
	if !ok {
		e = &entry{transfers: chantypes.NewActiveTransferSet()}
		s.channels[addr] = e
	}
	e.transfers.Add(transfer)
	return nil
}

func (s *Store) RemoveTransfer(addr common.Address, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.channels[addr]
	if !ok {
		return storage.ErrTransferNotFound
	}
	if _, removed := e.transfers.Remove(id); !removed {
		return storage.ErrTransferNotFound
	}
	return nil
}

// CommitmentLog returns the full append-only history for addr, for tests
// that exercise spec.md §6's "reconstructing a channel from the log"
// guarantee.
func (s *Store) CommitmentLog(addr common.Address) []*chantypes.Commitment {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.channels[addr]
	if !ok {
		return nil
	}
	return append([]*chantypes.Commitment(nil), e.log...)
}
