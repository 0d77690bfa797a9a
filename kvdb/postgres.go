package kvdb

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// postgresBackend is an alternative Backend implementation for operators
// who want swap state centralized across multiple cnd instances (e.g. a
// market maker running several nodes behind one negotiation endpoint). It
// emulates the bucket/key/value model of Backend on top of a single
// table, keeping the kv abstraction backend-agnostic for callers.
type postgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to a Postgres instance via a pgx connection pool
// and ensures the backing table exists.
func OpenPostgres(dsn string) (Backend, error) {
	ctx := context.Background()

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	const createTable = `
		CREATE TABLE IF NOT EXISTS kvdb_entries (
			bucket BYTEA NOT NULL,
			key    BYTEA NOT NULL,
			value  BYTEA NOT NULL,
			PRIMARY KEY (bucket, key)
		)`
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, err
	}

	return &postgresBackend{pool: pool}, nil
}

// View opens a read-only transaction.
//
// NOTE: Part of the Backend interface.
func (p *postgresBackend) View(fn func(tx ReadTx) error) error {
	ctx := context.Background()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	return fn(&postgresTx{ctx: ctx, tx: tx})
}

// Update opens a read-write transaction.
//
// NOTE: Part of the Backend interface.
func (p *postgresBackend) Update(fn func(tx ReadWriteTx) error) error {
	ctx := context.Background()
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(&postgresTx{ctx: ctx, tx: tx}); err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// Close releases the backend's resources.
//
// NOTE: Part of the Backend interface.
func (p *postgresBackend) Close() error {
	p.pool.Close()
	return nil
}

type postgresTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *postgresTx) ReadBucket(name []byte) (ReadBucket, error) {
	return &postgresBucket{ctx: t.ctx, tx: t.tx, bucket: name}, nil
}

func (t *postgresTx) CreateTopLevelBucket(name []byte) (ReadWriteBucket, error) {
	return &postgresBucket{ctx: t.ctx, tx: t.tx, bucket: name}, nil
}

func (t *postgresTx) ReadWriteBucket(name []byte) (ReadWriteBucket, error) {
	return &postgresBucket{ctx: t.ctx, tx: t.tx, bucket: name}, nil
}

type postgresBucket struct {
	ctx    context.Context
	tx     pgx.Tx
	bucket []byte
}

func (b *postgresBucket) Get(key []byte) []byte {
	var value []byte
	row := b.tx.QueryRow(b.ctx,
		`SELECT value FROM kvdb_entries WHERE bucket = $1 AND key = $2`,
		b.bucket, key,
	)
	if err := row.Scan(&value); err != nil {
		return nil
	}
	return value
}

func (b *postgresBucket) ForEach(fn func(k, v []byte) error) error {
	rows, err := b.tx.Query(b.ctx,
		`SELECT key, value FROM kvdb_entries WHERE bucket = $1 ORDER BY key`,
		b.bucket,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (b *postgresBucket) Put(key, value []byte) error {
	_, err := b.tx.Exec(b.ctx, `
		INSERT INTO kvdb_entries (bucket, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (bucket, key) DO UPDATE SET value = EXCLUDED.value`,
		b.bucket, key, value,
	)
	return err
}

func (b *postgresBucket) Delete(key []byte) error {
	_, err := b.tx.Exec(b.ctx,
		`DELETE FROM kvdb_entries WHERE bucket = $1 AND key = $2`,
		b.bucket, key,
	)
	return err
}
