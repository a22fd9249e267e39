// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// schema creates the two ledger tables. Object rows are full
// snapshots (the in-memory map is a cache of this table); log rows
// are append-only and never updated or deleted.
const schema = `
CREATE TABLE IF NOT EXISTS objects (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	mode      INTEGER NOT NULL,
	owner     TEXT NOT NULL,
	soulbound INTEGER NOT NULL,
	version   INTEGER NOT NULL,
	content   BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS objects_by_kind ON objects(kind);

CREATE TABLE IF NOT EXISTS log (
	seq       INTEGER PRIMARY KEY,
	kind      TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	chain     TEXT NOT NULL,
	record    BLOB NOT NULL
);
`

// openPool opens the SQLite connection pool with the standard
// pragmas. Writes are serialized by the commit path, so a small pool
// is enough; the extra connections serve concurrent log reads.
func openPool(path string) (*sqlitex.Pool, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 4,
		PrepareConn: func(conn *sqlite.Conn) error {
			pragmas := []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
				"PRAGMA temp_store=MEMORY",
			}
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: opening %s: %w", path, err)
	}
	return pool, nil
}

// load reads every object snapshot and the log head into memory.
func (s *Store) load() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("ledger: load: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT id, kind, mode, owner, soulbound, version, content FROM objects`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id, err := ref.ParseObjectID(stmt.ColumnText(0))
			if err != nil {
				return fmt.Errorf("corrupt object row: %w", err)
			}
			var owner ref.Address
			if raw := stmt.ColumnText(3); raw != "" {
				owner, err = ref.ParseAddress(raw)
				if err != nil {
					return fmt.Errorf("corrupt owner on object %s: %w", id, err)
				}
			}
			content := make([]byte, stmt.ColumnLen(6))
			stmt.ColumnBytes(6, content)

			s.objects[id] = &object{
				info: Info{
					ID:        id,
					Kind:      stmt.ColumnText(1),
					Mode:      Mode(stmt.ColumnInt64(2)),
					Owner:     owner,
					Soulbound: stmt.ColumnInt64(4) != 0,
					Version:   uint64(stmt.ColumnInt64(5)),
				},
				content: content,
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("ledger: loading objects: %w", err)
	}

	err = sqlitex.Execute(conn, `SELECT seq, chain FROM log ORDER BY seq DESC LIMIT 1`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			s.seq = uint64(stmt.ColumnInt64(0))
			chain, err := decodeChain(stmt.ColumnText(1))
			if err != nil {
				return err
			}
			s.chain = chain
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("ledger: loading log head: %w", err)
	}
	return nil
}

// persist writes one transaction's object changes and log records in
// a single IMMEDIATE SQLite transaction. Called with the store mutex
// held; commits are strictly ordered.
func (s *Store) persist(changes *changeSet, records []Record) (err error) {
	conn, takeErr := s.pool.Take(context.Background())
	if takeErr != nil {
		return takeErr
	}
	defer s.pool.Put(conn)

	endTransaction, beginErr := sqlitex.ImmediateTransaction(conn)
	if beginErr != nil {
		return beginErr
	}
	defer endTransaction(&err)

	for _, id := range changes.deleted {
		err = sqlitex.Execute(conn, `DELETE FROM objects WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{id.String()},
		})
		if err != nil {
			return fmt.Errorf("deleting object %s: %w", id, err)
		}
	}

	for _, obj := range changes.upserted {
		err = sqlitex.Execute(conn, `
			INSERT INTO objects (id, kind, mode, owner, soulbound, version, content)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				owner = excluded.owner,
				version = excluded.version,
				content = excluded.content`,
			&sqlitex.ExecOptions{
				Args: []any{
					obj.info.ID.String(),
					obj.info.Kind,
					int64(obj.info.Mode),
					obj.info.Owner.String(),
					boolToInt(obj.info.Soulbound),
					int64(obj.info.Version),
					obj.content,
				},
			})
		if err != nil {
			return fmt.Errorf("writing object %s: %w", obj.info.ID, err)
		}
	}

	for _, record := range records {
		encoded, marshalErr := encodeRecord(record)
		if marshalErr != nil {
			err = marshalErr
			return err
		}
		err = sqlitex.Execute(conn, `INSERT INTO log (seq, kind, timestamp, chain, record) VALUES (?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{int64(record.Seq), record.Kind, record.Timestamp, record.Chain, encoded},
		})
		if err != nil {
			return fmt.Errorf("appending log record %d: %w", record.Seq, err)
		}
	}

	return nil
}

// Records returns committed log records with fromSeq <= Seq, in
// sequence order, at most limit entries (limit <= 0 means no cap).
// This is the feed the read service and off-ledger indexers poll.
func (s *Store) Records(ctx context.Context, fromSeq uint64, limit int) ([]Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: records: %w", err)
	}
	defer s.pool.Put(conn)

	query := `SELECT record FROM log WHERE seq >= ? ORDER BY seq`
	args := []any{int64(fromSeq)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var records []Record
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			encoded := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, encoded)
			record, err := decodeRecord(encoded)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: reading log: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
