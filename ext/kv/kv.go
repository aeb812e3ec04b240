// Package kv is a SQLite-backed key/value extension. It exercises the
// full op surface: a resource-producing open, async reads and writes
// with different scheduling policies, and a custom error class mapped to
// a JS constructor defined in glue.
package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	opcall "github.com/cryguy/opcall"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

// ClassNotFound is the error class raised when a key is absent. Glue
// maps it to the KVNotFoundError constructor.
const ClassNotFound = "NotFound"

// Values are stored in their transport encoding: Latin-1 bytes when every
// code point fits in one byte, UTF-8 otherwise, with the single flag
// recording which. Reads reverse it with DecodeString.
const schemaSQL = `CREATE TABLE IF NOT EXISTS kv (
	key    TEXT PRIMARY KEY,
	value  BLOB NOT NULL,
	single INTEGER NOT NULL
)`

// Store is an open key/value database registered as a host resource.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a store at the given path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening kv database %q: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func storeArg(sc *opcall.CallScope, v opcall.Value) (*Store, *opcall.OpError) {
	res, oerr := sc.Resource(v.AsResource())
	if oerr != nil {
		return nil, oerr
	}
	s, ok := res.(*Store)
	if !ok {
		return nil, opcall.TypeErrorf("resource %d is not a kv store", v.AsResource())
	}
	return s, nil
}

// glueJS defines the KVNotFoundError constructor the NotFound class maps
// to, plus a small convenience namespace over the raw ops.
const glueJS = `
(function() {
	class KVNotFoundError extends Error {
		constructor(message) {
			super(message);
			this.name = 'KVNotFoundError';
		}
	}
	globalThis.KVNotFoundError = KVNotFoundError;
	globalThis.kv = Object.freeze({
		open: function(path) { return ops.kv_open(path); },
		get: function(store, key) { return ops.kv_get(store, key); },
		put: function(store, key, value) { return ops.kv_put(store, key, value); },
		remove: function(store, key) { return ops.kv_delete(store, key); },
		list: function(store, prefix) { return ops.kv_list(store, prefix || ''); },
	});
})();
`

// Extension returns the kv op set.
func Extension() opcall.Extension {
	return opcall.Extension{
		Name:   "kv",
		GlueJS: glueJS,
		ErrorClasses: map[string]string{
			ClassNotFound: "KVNotFoundError",
		},
		Ops: []opcall.OpDecl{
			{
				Name:        "kv_open",
				Args:        []opcall.ArgSpec{{Kind: opcall.ArgString}},
				Ret:         opcall.RetValue,
				ScopeAccess: true,
				Sync:        opOpen,
			},
			{
				Name:  "kv_get",
				Args:  []opcall.ArgSpec{{Kind: opcall.ArgResource}, {Kind: opcall.ArgString}},
				Ret:   opcall.RetString,
				Async: opGet,
			},
			{
				Name:   "kv_put",
				Args:   []opcall.ArgSpec{{Kind: opcall.ArgResource}, {Kind: opcall.ArgString}, {Kind: opcall.ArgString}},
				Ret:    opcall.RetVoid,
				Async:  opPut,
				Policy: opcall.PolicyDeferred,
			},
			{
				Name:   "kv_delete",
				Args:   []opcall.ArgSpec{{Kind: opcall.ArgResource}, {Kind: opcall.ArgString}},
				Ret:    opcall.RetBool,
				Async:  opDelete,
				Policy: opcall.PolicyDeferred,
			},
			{
				Name:        "kv_list",
				Args:        []opcall.ArgSpec{{Kind: opcall.ArgResource}, {Kind: opcall.ArgString}},
				Ret:         opcall.RetValue,
				ScopeAccess: true,
				Sync:        opList,
			},
		},
	}
}

func opOpen(sc *opcall.CallScope, args []opcall.Value) (opcall.Value, *opcall.OpError) {
	s, err := Open(args[0].AsString())
	if err != nil {
		return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "%v", err)
	}
	rid, oerr := sc.AddResource(s)
	if oerr != nil {
		s.Close()
		return opcall.Undefined(), oerr
	}
	return opcall.Resource(rid), nil
}

func opGet(sc *opcall.CallScope, args []opcall.Value) opcall.AsyncResult {
	s, oerr := storeArg(sc, args[0])
	if oerr != nil {
		return opcall.Fail(oerr)
	}
	key := args[1].AsString()
	return opcall.Await(func(ctx context.Context) (opcall.Value, *opcall.OpError) {
		var (
			value  []byte
			single bool
		)
		err := s.db.QueryRowContext(ctx, "SELECT value, single FROM kv WHERE key = ?", key).Scan(&value, &single)
		if err == sql.ErrNoRows {
			return opcall.Undefined(), &opcall.OpError{Class: ClassNotFound, Message: fmt.Sprintf("no such key %q", key)}
		}
		if err != nil {
			return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "kv get: %v", err)
		}
		return opcall.String(opcall.DecodeString(value, single)), nil
	})
}

func opPut(sc *opcall.CallScope, args []opcall.Value) opcall.AsyncResult {
	s, oerr := storeArg(sc, args[0])
	if oerr != nil {
		return opcall.Fail(oerr)
	}
	key := args[1].AsString()
	// The scratch-backed bytes expire with the call scope; the future runs
	// after it closes, so they are copied out here.
	enc, single := sc.EncodeString(args[2].AsString())
	value := make([]byte, len(enc))
	copy(value, enc)
	return opcall.Await(func(ctx context.Context) (opcall.Value, *opcall.OpError) {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO kv (key, value, single) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, single = excluded.single",
			key, value, single)
		if err != nil {
			return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "kv put: %v", err)
		}
		return opcall.Undefined(), nil
	})
}

func opDelete(sc *opcall.CallScope, args []opcall.Value) opcall.AsyncResult {
	s, oerr := storeArg(sc, args[0])
	if oerr != nil {
		return opcall.Fail(oerr)
	}
	key := args[1].AsString()
	return opcall.Await(func(ctx context.Context) (opcall.Value, *opcall.OpError) {
		res, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
		if err != nil {
			return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "kv delete: %v", err)
		}
		n, _ := res.RowsAffected()
		return opcall.Bool(n > 0), nil
	})
}

func opList(sc *opcall.CallScope, args []opcall.Value) (opcall.Value, *opcall.OpError) {
	s, oerr := storeArg(sc, args[0])
	if oerr != nil {
		return opcall.Undefined(), oerr
	}
	prefix := args[1].AsString()
	rows, err := s.db.Query("SELECT key FROM kv WHERE key LIKE ? || '%' ORDER BY key", prefix)
	if err != nil {
		return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "kv list: %v", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "kv list: %v", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "kv list: %v", err)
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return opcall.Undefined(), opcall.Errorf(opcall.ClassError, "kv list: %v", err)
	}
	return opcall.Object(string(data)), nil
}
