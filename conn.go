package odbc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Conn implements driver.Conn and represents a connection to a database
type Conn struct {
	api      API
	env      SQLHENV
	dbc      SQLHDBC
	logger   *slog.Logger
	stmtOpts []StatementOption

	inTx   bool
	mu     sync.Mutex
	closed bool
}

// Prepare prepares a statement for execution
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext prepares a statement with context support
func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	st, numParams, err := c.prepare(query)
	if err != nil {
		return nil, err
	}
	return &Stmt{
		conn:     c,
		st:       st,
		query:    query,
		numInput: numParams,
	}, nil
}

// PrepareStatement prepares query and returns the statement core directly,
// for callers that need scrollable fetches or parameter phases. Reach it
// through sql.Conn.Raw. The caller must Close the statement.
func (c *Conn) PrepareStatement(query string) (*Statement, error) {
	st, _, err := c.prepare(query)
	return st, err
}

func (c *Conn) prepare(query string) (*Statement, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, 0, driver.ErrBadConn
	}

	h, ret := c.api.AllocHandle(SQL_HANDLE_STMT, SQLHANDLE(c.dbc))
	if !IsSuccess(ret) {
		return nil, 0, c.dbcError("SQLAllocHandle")
	}
	stmtHandle := SQLHSTMT(h)

	ret = c.api.Prepare(stmtHandle, query)
	if !IsSuccess(ret) {
		err := wrapOp("SQLPrepare", newErrorFromRecords(c.api.Diagnostics(SQL_HANDLE_STMT, h)))
		c.api.FreeHandle(SQL_HANDLE_STMT, h)
		return nil, 0, err
	}

	numParams, ret := c.api.NumParams(stmtHandle)
	if !IsSuccess(ret) {
		// Non-fatal: some drivers don't support NumParams, default to -1 (unknown)
		numParams = -1
	}

	return NewStatement(c.api, stmtHandle, c.stmtOpts...), int(numParams), nil
}

func (c *Conn) dbcError(op string) error {
	return wrapOp(op, newErrorFromRecords(c.api.Diagnostics(SQL_HANDLE_DBC, SQLHANDLE(c.dbc))))
}

// Close closes the connection
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	// Disconnect and free handles
	if c.dbc != 0 {
		c.api.Disconnect(c.dbc)
		c.api.FreeHandle(SQL_HANDLE_DBC, SQLHANDLE(c.dbc))
		c.dbc = 0
	}
	if c.env != 0 {
		c.api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(c.env))
		c.env = 0
	}

	return nil
}

// Begin starts a new transaction (deprecated, use BeginTx)
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts a new transaction with context and options
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, driver.ErrBadConn
	}

	if c.inTx {
		return nil, errors.New("already in a transaction")
	}

	// Set transaction isolation level if specified
	if opts.Isolation != 0 {
		var isoLevel uintptr
		switch sql.IsolationLevel(opts.Isolation) {
		case sql.LevelReadUncommitted:
			isoLevel = SQL_TXN_READ_UNCOMMITTED
		case sql.LevelReadCommitted, sql.LevelWriteCommitted:
			isoLevel = SQL_TXN_READ_COMMITTED
		case sql.LevelRepeatableRead:
			isoLevel = SQL_TXN_REPEATABLE_READ
		case sql.LevelSnapshot, sql.LevelSerializable, sql.LevelLinearizable:
			isoLevel = SQL_TXN_SERIALIZABLE
		default:
			isoLevel = SQL_TXN_READ_COMMITTED
		}
		if ret := c.api.SetConnectAttr(c.dbc, SQL_ATTR_TXN_ISOLATION, isoLevel); !IsSuccess(ret) {
			return nil, c.dbcError("SQLSetConnectAttr")
		}
	}

	// Set read-only mode if requested
	if opts.ReadOnly {
		if ret := c.api.SetConnectAttr(c.dbc, SQL_ATTR_ACCESS_MODE, SQL_MODE_READ_ONLY); !IsSuccess(ret) {
			return nil, c.dbcError("SQLSetConnectAttr")
		}
	}

	// Disable autocommit to start transaction
	if ret := c.api.SetConnectAttr(c.dbc, SQL_ATTR_AUTOCOMMIT, uintptr(SQL_AUTOCOMMIT_OFF)); !IsSuccess(ret) {
		return nil, c.dbcError("SQLSetConnectAttr")
	}

	c.inTx = true
	return &Tx{conn: c}, nil
}

// Ping verifies the connection can still hand out statement handles.
func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return driver.ErrBadConn
	}

	h, ret := c.api.AllocHandle(SQL_HANDLE_STMT, SQLHANDLE(c.dbc))
	if !IsSuccess(ret) {
		err := c.dbcError("SQLAllocHandle")
		if IsConnectionError(err) {
			return driver.ErrBadConn
		}
		return err
	}
	c.api.FreeHandle(SQL_HANDLE_STMT, h)
	return nil
}

// ResetSession is called before a connection is reused
func (c *Conn) ResetSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return driver.ErrBadConn
	}

	// If still in a transaction, the connection is in a bad state
	if c.inTx {
		return driver.ErrBadConn
	}

	return nil
}

// IsValid returns true if the connection is valid
func (c *Conn) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.dbc != 0
}

// CheckNamedValue admits the values Stmt knows how to bind: streams,
// output parameters and everything driver.DefaultParameterConverter accepts.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	switch v := nv.Value.(type) {
	case io.Reader, OutputParam, *OutputParam:
		return nil
	case sql.Out:
		if v.Dest == nil {
			return errors.New("odbc: sql.Out needs a destination pointer")
		}
		return nil
	}
	converted, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = converted
	return nil
}

// Ensure Conn implements the required interfaces
var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
)
