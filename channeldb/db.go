package channeldb

import (
	"encoding/json"
	"fmt"

	"github.com/atomicswap/cnd/kvdb"
	"github.com/atomicswap/cnd/swap"
)

// swapBucket is the sole top-level bucket this database maintains: one
// record per swap, keyed by its SwapId, holding the JSON-serialized
// swap.SwapState. Unlike the teacher's per-concern bucket layout (open
// channels, closed channels, invoices, the routing graph), a swap has no
// sub-collections of its own — the whole of swap.SwapState is the record.
var swapBucket = []byte("swap-state")

// DB is the primary datastore for the cnd daemon: the durable half of
// spec.md §6's "Persisted state", the record a restarted daemon reloads
// to resume in-flight swaps. Structurally this is the teacher's DB type
// narrowed to a single bucket and retargeted from *bolt.DB directly onto
// the kvdb.Backend abstraction, so the same code runs against bbolt or
// Postgres.
type DB struct {
	backend kvdb.Backend
}

// Open opens (or creates) a swap database against the given backend.
func Open(backend kvdb.Backend) (*DB, error) {
	db := &DB{backend: backend}
	err := backend.Update(func(tx kvdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(swapBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create swap bucket: %w", err)
	}
	log.Info("Opened swap database")
	return db, nil
}

// Close releases the backend's resources.
func (d *DB) Close() error {
	return d.backend.Close()
}

// PutSwap persists the current state of a swap, overwriting any prior
// record for the same SwapId. Called after every state.Machine.Apply
// that changes state, so a daemon restart can resume from the last
// reflected event (spec §6).
func (d *DB) PutSwap(state swap.SwapState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("unable to serialize swap %v: %w", state.SwapId, err)
	}

	return d.backend.Update(func(tx kvdb.ReadWriteTx) error {
		bucket, err := tx.ReadWriteBucket(swapBucket)
		if err != nil {
			return err
		}
		return bucket.Put(swapKey(state.SwapId), encoded)
	})
}

// FetchSwap retrieves a single swap's state by id. Returns ErrSwapNotFound
// if no record exists.
func (d *DB) FetchSwap(id swap.SwapId) (swap.SwapState, error) {
	var state swap.SwapState

	err := d.backend.View(func(tx kvdb.ReadTx) error {
		bucket, err := tx.ReadBucket(swapBucket)
		if err != nil {
			return err
		}
		encoded := bucket.Get(swapKey(id))
		if encoded == nil {
			return ErrSwapNotFound
		}
		return json.Unmarshal(encoded, &state)
	})
	if err != nil {
		return swap.SwapState{}, err
	}
	return state, nil
}

// FetchAllSwaps returns every swap record currently stored, in no
// particular order, the way a daemon enumerates its registry on startup
// to rehydrate swapstate.Machine instances.
func (d *DB) FetchAllSwaps() ([]swap.SwapState, error) {
	var states []swap.SwapState

	err := d.backend.View(func(tx kvdb.ReadTx) error {
		bucket, err := tx.ReadBucket(swapBucket)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			var state swap.SwapState
			if err := json.Unmarshal(v, &state); err != nil {
				return fmt.Errorf("unable to deserialize swap record %x: %w", k, err)
			}
			states = append(states, state)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// DeleteSwap removes a swap's record. Daemons may call this once a swap
// has gone Complete and its retention window has elapsed; cnd itself
// never calls it automatically.
func (d *DB) DeleteSwap(id swap.SwapId) error {
	return d.backend.Update(func(tx kvdb.ReadWriteTx) error {
		bucket, err := tx.ReadWriteBucket(swapBucket)
		if err != nil {
			return err
		}
		return bucket.Delete(swapKey(id))
	})
}

func swapKey(id swap.SwapId) []byte {
	return []byte(id.String())
}
