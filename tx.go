package odbc

import (
	"database/sql/driver"
)

// Tx implements driver.Tx for transaction support
type Tx struct {
	conn *Conn
}

// Commit commits the transaction.
// If the commit succeeds, autocommit is re-enabled for subsequent operations.
func (t *Tx) Commit() error {
	return t.end(SQL_COMMIT)
}

// Rollback rolls back the transaction.
// If the rollback succeeds, autocommit is re-enabled for subsequent operations.
func (t *Tx) Rollback() error {
	return t.end(SQL_ROLLBACK)
}

func (t *Tx) end(completion SQLSMALLINT) error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inTx {
		return nil // Already committed or rolled back
	}

	ret := c.api.EndTran(SQL_HANDLE_DBC, SQLHANDLE(c.dbc), completion)
	c.inTx = false
	if !IsSuccess(ret) {
		return c.dbcError("SQLEndTran")
	}

	// Restore autocommit and read-write mode (best-effort)
	c.api.SetConnectAttr(c.dbc, SQL_ATTR_AUTOCOMMIT, uintptr(SQL_AUTOCOMMIT_ON))
	c.api.SetConnectAttr(c.dbc, SQL_ATTR_ACCESS_MODE, SQL_MODE_READ_WRITE)

	return nil
}

// Ensure Tx implements driver.Tx
var _ driver.Tx = (*Tx)(nil)
