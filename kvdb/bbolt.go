package kvdb

import (
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const dbFilePermission = 0600

// boltBackend is the default, single-process Backend implementation,
// backed by a bbolt file on disk. It is the storage engine a standalone
// cnd node runs with out of the box.
type boltBackend struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if necessary) a bbolt-backed Backend at the
// given path.
func OpenBolt(dbPath, fileName string) (Backend, error) {
	if err := os.MkdirAll(dbPath, 0700); err != nil {
		return nil, err
	}

	path := filepath.Join(dbPath, fileName)
	db, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	return &boltBackend{db: db}, nil
}

// View opens a read-only transaction.
//
// NOTE: Part of the Backend interface.
func (b *boltBackend) View(fn func(tx ReadTx) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return fn(&boltReadTx{tx: tx})
	})
}

// Update opens a read-write transaction.
//
// NOTE: Part of the Backend interface.
func (b *boltBackend) Update(fn func(tx ReadWriteTx) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltReadWriteTx{tx: tx})
	})
}

// Close releases the backend's resources.
//
// NOTE: Part of the Backend interface.
func (b *boltBackend) Close() error {
	return b.db.Close()
}

type boltReadTx struct {
	tx *bbolt.Tx
}

func (t *boltReadTx) ReadBucket(name []byte) (ReadBucket, error) {
	bucket := t.tx.Bucket(name)
	if bucket == nil {
		return nil, ErrBucketNotFound
	}
	return &boltBucket{bucket: bucket}, nil
}

type boltReadWriteTx struct {
	tx *bbolt.Tx
}

func (t *boltReadWriteTx) ReadBucket(name []byte) (ReadBucket, error) {
	bucket := t.tx.Bucket(name)
	if bucket == nil {
		return nil, ErrBucketNotFound
	}
	return &boltBucket{bucket: bucket}, nil
}

func (t *boltReadWriteTx) CreateTopLevelBucket(name []byte) (ReadWriteBucket, error) {
	bucket, err := t.tx.CreateBucketIfNotExists(name)
	if err != nil {
		return nil, err
	}
	return &boltBucket{bucket: bucket}, nil
}

func (t *boltReadWriteTx) ReadWriteBucket(name []byte) (ReadWriteBucket, error) {
	bucket := t.tx.Bucket(name)
	if bucket == nil {
		return nil, ErrBucketNotFound
	}
	return &boltBucket{bucket: bucket}, nil
}

type boltBucket struct {
	bucket *bbolt.Bucket
}

func (b *boltBucket) Get(key []byte) []byte {
	return b.bucket.Get(key)
}

func (b *boltBucket) ForEach(fn func(k, v []byte) error) error {
	return b.bucket.ForEach(fn)
}

func (b *boltBucket) Put(key, value []byte) error {
	return b.bucket.Put(key, value)
}

func (b *boltBucket) Delete(key []byte) error {
	return b.bucket.Delete(key)
}
