package odbc

import (
	"context"
	"database/sql/driver"
	"log/slog"
)

// Connector implements driver.Connector for efficient connection pooling
type Connector struct {
	dsn    string
	driver *Driver
	api    API

	// AssumeUTF8 enables wide-character transcoding on every statement.
	AssumeUTF8 bool
	// TextCodec overrides the platform default codec when set.
	TextCodec TextCodec
	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// ConnectorOption configures a Connector
type ConnectorOption func(*Connector)

// WithConnectorAssumeUTF8 sets AssumeUTF8 for every statement of every connection.
func WithConnectorAssumeUTF8(on bool) ConnectorOption {
	return func(c *Connector) {
		c.AssumeUTF8 = on
	}
}

// WithConnectorTextCodec sets the codec statements transcode wide data with.
func WithConnectorTextCodec(codec TextCodec) ConnectorOption {
	return func(c *Connector) {
		c.TextCodec = codec
	}
}

// WithConnectorLogger sets the logger handed to connections and statements.
func WithConnectorLogger(logger *slog.Logger) ConnectorOption {
	return func(c *Connector) {
		c.Logger = logger
	}
}

// WithAPI replaces the native driver manager, mainly for tests.
func WithAPI(api API) ConnectorOption {
	return func(c *Connector) {
		c.api = api
	}
}

// NewConnector returns a Connector for an ODBC connection string. Unless
// WithAPI is given, the system driver manager is loaded.
func NewConnector(dsn string, opts ...ConnectorOption) (*Connector, error) {
	c := &Connector{dsn: dsn, driver: &Driver{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil {
		api, err := NativeAPI()
		if err != nil {
			return nil, err
		}
		c.api = api
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// Connect establishes a new connection to the database
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	// Allocate environment handle
	h, ret := c.api.AllocHandle(SQL_HANDLE_ENV, SQL_NULL_HANDLE)
	if !IsSuccess(ret) {
		return nil, wrapOp("SQLAllocHandle", &Error{SQLState: SQLStateMemoryAllocationError, Message: "failed to allocate ODBC environment handle"})
	}
	env := SQLHENV(h)

	// Set ODBC version to 3.x
	ret = c.api.SetEnvAttr(env, SQL_ATTR_ODBC_VERSION, uintptr(SQL_OV_ODBC3))
	if !IsSuccess(ret) {
		err := c.handleError("SQLSetEnvAttr", SQL_HANDLE_ENV, SQLHANDLE(env))
		c.api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}

	// Allocate connection handle
	h, ret = c.api.AllocHandle(SQL_HANDLE_DBC, SQLHANDLE(env))
	if !IsSuccess(ret) {
		err := c.handleError("SQLAllocHandle", SQL_HANDLE_ENV, SQLHANDLE(env))
		c.api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}
	dbc := SQLHDBC(h)

	ret = c.api.DriverConnect(dbc, c.dsn)
	if !IsSuccess(ret) {
		err := c.handleError("SQLDriverConnect", SQL_HANDLE_DBC, SQLHANDLE(dbc))
		c.api.FreeHandle(SQL_HANDLE_DBC, SQLHANDLE(dbc))
		c.api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}

	c.Logger.Debug("odbc: connected")
	return &Conn{
		api:    c.api,
		env:    env,
		dbc:    dbc,
		logger: c.Logger,
		stmtOpts: []StatementOption{
			WithAssumeUTF8(c.AssumeUTF8),
			WithTextCodec(c.TextCodec),
			WithLogger(c.Logger),
		},
	}, nil
}

func (c *Connector) handleError(op string, handleType SQLSMALLINT, handle SQLHANDLE) error {
	return wrapOp(op, newErrorFromRecords(c.api.Diagnostics(handleType, handle)))
}

// Driver returns the underlying Driver
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Ensure Connector implements driver.Connector
var _ driver.Connector = (*Connector)(nil)
