// Auth is implemented entirely on top of the public CRUD surface —
// SPEC_FULL.md §4.7: no special-cased storage, just two ordinary tables
// (system_users, system_user_tables) that happen to be created at Open
// instead of by a caller. There's no network surface or session handling
// here; those remain out of scope per spec.md §1.
package engine

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"quiverdb/pkg/catalog"
	"quiverdb/pkg/dberrors"
	"quiverdb/pkg/recordid"
)

const (
	usersTable      = "system_users"
	userTablesTable = "system_user_tables"
)

func hashPassword(password string) string {
	sum := blake3.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) ensureAuthTablesLocked() error {
	if !e.catalog.Exists(usersTable) {
		if err := e.catalog.Register(catalog.TableSchema{Name: usersTable, Columns: []string{"username", "password_hash"}}); err != nil {
			return err
		}
		if err := e.openTableFile(usersTable); err != nil {
			return err
		}
	}
	if !e.catalog.Exists(userTablesTable) {
		if err := e.catalog.Register(catalog.TableSchema{Name: userTablesTable, Columns: []string{"username", "table_name"}}); err != nil {
			return err
		}
		if err := e.openTableFile(userTablesTable); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) findUserLocked(username string) (recordid.ID, string, bool, error) {
	var id recordid.ID
	var hash string
	found := false
	err := e.scanTableLocked(usersTable, func(rid recordid.ID, fields []string) error {
		if len(fields) == 2 && fields[0] == username {
			id, hash, found = rid, fields[1], true
		}
		return nil
	})
	return id, hash, found, err
}

// CreateUser registers a new user with a BLAKE3-hashed password.
func (e *Engine) CreateUser(username, password string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, _, found, err := e.findUserLocked(username)
	if err != nil {
		return err
	}
	if found {
		return dberrors.Newf(dberrors.KindAlreadyExists, "user %q already exists", username)
	}
	_, err = e.insertRecordLocked(0, usersTable, []string{username, hashPassword(password)})
	return err
}

// VerifyUser reports whether password matches the stored hash for
// username.
func (e *Engine) VerifyUser(username, password string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, hash, found, err := e.findUserLocked(username)
	if err != nil {
		return false, err
	}
	if !found {
		return false, dberrors.Newf(dberrors.KindAuth, "user %q does not exist", username)
	}
	return hash == hashPassword(password), nil
}

// GrantTableAccess records that username may access table. Idempotent.
func (e *Engine) GrantTableAccess(username, table string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, found, err := e.findUserLocked(username); err != nil {
		return err
	} else if !found {
		return dberrors.Newf(dberrors.KindNotFound, "user %q does not exist", username)
	}
	if !e.catalog.Exists(table) {
		return dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}

	already := false
	err := e.scanTableLocked(userTablesTable, func(_ recordid.ID, fields []string) error {
		if len(fields) == 2 && fields[0] == username && fields[1] == table {
			already = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	_, err = e.insertRecordLocked(0, userTablesTable, []string{username, table})
	return err
}

// UserTables lists every table username has been granted access to.
func (e *Engine) UserTables(username string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var tables []string
	err := e.scanTableLocked(userTablesTable, func(_ recordid.ID, fields []string) error {
		if len(fields) == 2 && fields[0] == username {
			tables = append(tables, fields[1])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}
