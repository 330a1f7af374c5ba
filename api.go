package odbc

// maxColumnName bounds the column name buffer passed to SQLDescribeCol.
const maxColumnName = 256

// API is the call-level interface the statement core drives. NativeAPI
// returns the implementation backed by the system driver manager; tests
// substitute a scripted one.
//
// Every call returns the raw SQLRETURN. Callers classify it with Classify
// and pull diagnostics for the handle when needed.
type API interface {
	AllocHandle(handleType SQLSMALLINT, input SQLHANDLE) (SQLHANDLE, SQLRETURN)
	FreeHandle(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN
	SetEnvAttr(env SQLHENV, attribute SQLINTEGER, value uintptr) SQLRETURN
	DriverConnect(dbc SQLHDBC, connStr string) SQLRETURN
	Disconnect(dbc SQLHDBC) SQLRETURN
	SetConnectAttr(dbc SQLHDBC, attribute SQLINTEGER, value uintptr) SQLRETURN
	EndTran(handleType SQLSMALLINT, handle SQLHANDLE, completionType SQLSMALLINT) SQLRETURN
	Prepare(stmt SQLHSTMT, query string) SQLRETURN
	NumParams(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN)

	DescribeParam(stmt SQLHSTMT, param SQLUSMALLINT) (ParamDescription, SQLRETURN)
	BindParameter(stmt SQLHSTMT, param SQLUSMALLINT, b ParamBinding) SQLRETURN
	Execute(stmt SQLHSTMT) SQLRETURN

	// ParamData returns the position of the next parameter whose data the
	// driver wants. The position is only meaningful when the return is
	// SQL_NEED_DATA.
	ParamData(stmt SQLHSTMT) (SQLUSMALLINT, SQLRETURN)
	PutData(stmt SQLHSTMT, data []byte) SQLRETURN

	RowCount(stmt SQLHSTMT) (SQLLEN, SQLRETURN)
	NumResultCols(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN)
	DescribeCol(stmt SQLHSTMT, col SQLUSMALLINT) (ColumnDescription, SQLRETURN)
	ColAttribute(stmt SQLHSTMT, col SQLUSMALLINT, field SQLUSMALLINT) (SQLLEN, SQLRETURN)

	// BindCol and GetData write into buf and set *ind. The buffer and the
	// indicator must stay reachable while the driver may write them.
	BindCol(stmt SQLHSTMT, col SQLUSMALLINT, cType SQLSMALLINT, buf []byte, ind *SQLLEN) SQLRETURN
	GetData(stmt SQLHSTMT, col SQLUSMALLINT, cType SQLSMALLINT, buf []byte, ind *SQLLEN) SQLRETURN

	FetchScroll(stmt SQLHSTMT, orientation SQLSMALLINT, offset SQLLEN) SQLRETURN
	MoreResults(stmt SQLHSTMT) SQLRETURN
	GetCursorName(stmt SQLHSTMT) (string, SQLRETURN)
	SetCursorName(stmt SQLHSTMT, name string) SQLRETURN
	CloseCursor(stmt SQLHSTMT) SQLRETURN
	FreeStmt(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN

	// Diagnostics returns every diagnostic record attached to handle.
	Diagnostics(handleType SQLSMALLINT, handle SQLHANDLE) []DiagRecord
}

// ParamDescription is what SQLDescribeParam reports for a placeholder.
type ParamDescription struct {
	SQLType       SQLSMALLINT
	Size          SQLULEN
	DecimalDigits SQLSMALLINT
	Nullable      SQLSMALLINT
}

// ColumnDescription is what SQLDescribeCol reports for a result column.
type ColumnDescription struct {
	Name          string
	SQLType       SQLSMALLINT
	Size          SQLULEN
	DecimalDigits SQLSMALLINT
	Nullable      SQLSMALLINT
}

// ParamBinding carries the arguments of SQLBindParameter. A nil Buffer
// registers the parameter for data-at-execution transfer.
type ParamBinding struct {
	IOType        SQLSMALLINT
	CType         SQLSMALLINT
	SQLType       SQLSMALLINT
	Size          SQLULEN
	DecimalDigits SQLSMALLINT
	Buffer        []byte
	Indicator     *SQLLEN
}
