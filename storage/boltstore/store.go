// Package boltstore is the default persistent Store: an embedded bbolt
// database holding, per channel, the latest full state and an append-only
// log of every accepted commitment (spec.md §6's "persisted state layout").
// Grounded on channeldb/db.go's bucket-per-concern layout and
// Update/View transaction idiom; serialization is encoding/gob rather than
// a third-party codec because the teacher itself hand-rolls channeldb's
// on-disk encoding instead of reaching for a serialization library — there
// is no pack precedent for one here, so gob (stdlib) stands in for that
// hand-rolled binary format (see DESIGN.md).
package boltstore

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/storage"
)

var (
	channelsBucket  = []byte("channels")
	transfersBucket = []byte("transfers")
	commitLogBucket = []byte("commitment-log")
)

// Store is a bbolt-backed storage.Store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures its top-level buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{channelsBucket, transfersBucket, commitLogBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

var _ storage.Store = (*Store)(nil)

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("boltstore: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("boltstore: decode: %w", err)
	}
	return nil
}

func (s *Store) LoadChannel(addr common.Address) (*chantypes.FullChannelState, error) {
	var state *chantypes.FullChannelState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(channelsBucket).Get(addr.Bytes())
		if data == nil {
			return nil
		}
		state = &chantypes.FullChannelState{}
		return decode(data, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) SaveChannel(state *chantypes.FullChannelState, commit *chantypes.Commitment) error {
	stateBytes, err := encode(state)
	if err != nil {
		return err
	}
	commitBytes, err := encode(commit)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(channelsBucket).Put(state.ChannelAddress.Bytes(), stateBytes); err != nil {
			return err
		}
		logBucket, err := tx.Bucket(commitLogBucket).CreateBucketIfNotExists(state.ChannelAddress.Bytes())
		if err != nil {
			return err
		}
		seq, err := logBucket.NextSequence()
		if err != nil {
			return err
		}
		return logBucket.Put(seqKey(seq), commitBytes)
	})
}

func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

func (s *Store) LoadActiveTransfers(addr common.Address) (*chantypes.ActiveTransferSet, error) {
	set := chantypes.NewActiveTransferSet()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(transfersBucket).Bucket(addr.Bytes())
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var t chantypes.TransferState
			if err := decode(v, &t); err != nil {
				return err
			}
			set.Add(&t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Store) SaveTransfer(addr common.Address, transfer *chantypes.TransferState) error {
	data, err := encode(transfer)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(transfersBucket).CreateBucketIfNotExists(addr.Bytes())
		if err != nil {
			return err
		}
		return b.Put(transfer.TransferID[:], data)
	})
}

// CommitmentLog returns the full append-only history of accepted
// commitments for addr, in acceptance order, for reconstructing a channel
// by replay (spec.md §6).
func (s *Store) CommitmentLog(addr common.Address) ([]*chantypes.Commitment, error) {
	var log []*chantypes.Commitment
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(commitLogBucket).Bucket(addr.Bytes())
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var c chantypes.Commitment
			if err := decode(v, &c); err != nil {
				return err
			}
			log = append(log, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (s *Store) RemoveTransfer(addr common.Address, id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(transfersBucket).Bucket(addr.Bytes())
		if b == nil {
			return storage.ErrTransferNotFound
		}
		if b.Get(id[:]) == nil {
			return storage.ErrTransferNotFound
		}
		return b.Delete(id[:])
	})
}
