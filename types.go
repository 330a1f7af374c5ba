package odbc

// ODBC Handle types (opaque pointers)
type SQLHANDLE uintptr
type SQLHENV SQLHANDLE
type SQLHDBC SQLHANDLE
type SQLHSTMT SQLHANDLE

// ODBC Integer types
type SQLSMALLINT int16
type SQLUSMALLINT uint16
type SQLINTEGER int32
type SQLUINTEGER uint32
type SQLLEN int64   // 64-bit for portability across platforms
type SQLULEN uint64 // 64-bit for portability across platforms
type SQLRETURN SQLSMALLINT

// Handle type identifiers
const (
	SQL_HANDLE_ENV  SQLSMALLINT = 1
	SQL_HANDLE_DBC  SQLSMALLINT = 2
	SQL_HANDLE_STMT SQLSMALLINT = 3
)

// Return codes
const (
	SQL_SUCCESS           SQLRETURN = 0
	SQL_SUCCESS_WITH_INFO SQLRETURN = 1
	SQL_ERROR             SQLRETURN = -1
	SQL_INVALID_HANDLE    SQLRETURN = -2
	SQL_NO_DATA           SQLRETURN = 100
	SQL_NEED_DATA         SQLRETURN = 99
	SQL_STILL_EXECUTING   SQLRETURN = 2
)

// Null handle constant
const SQL_NULL_HANDLE SQLHANDLE = 0

// ODBC version constants
const (
	SQL_OV_ODBC3 = 3
)

// Environment attributes
const (
	SQL_ATTR_ODBC_VERSION SQLINTEGER = 200
)

// Connection attributes
const (
	SQL_ATTR_AUTOCOMMIT    SQLINTEGER = 102
	SQL_ATTR_ACCESS_MODE   SQLINTEGER = 101
	SQL_ATTR_TXN_ISOLATION SQLINTEGER = 108
)

// Autocommit values
const (
	SQL_AUTOCOMMIT_OFF = 0
	SQL_AUTOCOMMIT_ON  = 1
)

// Access mode values
const (
	SQL_MODE_READ_WRITE = 0
	SQL_MODE_READ_ONLY  = 1
)

// Transaction isolation levels
const (
	SQL_TXN_READ_UNCOMMITTED = 1
	SQL_TXN_READ_COMMITTED   = 2
	SQL_TXN_REPEATABLE_READ  = 4
	SQL_TXN_SERIALIZABLE     = 8
)

// String terminator
const SQL_NTS SQLINTEGER = -3

// Length/indicator sentinels
const (
	SQL_NULL_DATA    SQLLEN = -1
	SQL_DATA_AT_EXEC SQLLEN = -2
	SQL_NO_TOTAL     SQLLEN = -4

	SQL_LEN_DATA_AT_EXEC_OFFSET SQLLEN = -100
)

// SQL_LEN_DATA_AT_EXEC encodes a data-at-execution length hint into an indicator.
func SQL_LEN_DATA_AT_EXEC(length int64) SQLLEN {
	return SQL_LEN_DATA_AT_EXEC_OFFSET - SQLLEN(length)
}

// SQLDriverConnect options
const (
	SQL_DRIVER_NOPROMPT SQLUSMALLINT = 0
)

// SQL data types
const (
	SQL_UNKNOWN_TYPE   SQLSMALLINT = 0
	SQL_CHAR           SQLSMALLINT = 1
	SQL_NUMERIC        SQLSMALLINT = 2
	SQL_DECIMAL        SQLSMALLINT = 3
	SQL_INTEGER        SQLSMALLINT = 4
	SQL_SMALLINT       SQLSMALLINT = 5
	SQL_FLOAT          SQLSMALLINT = 6
	SQL_REAL           SQLSMALLINT = 7
	SQL_DOUBLE         SQLSMALLINT = 8
	SQL_DATETIME       SQLSMALLINT = 9
	SQL_VARCHAR        SQLSMALLINT = 12
	SQL_TYPE_DATE      SQLSMALLINT = 91
	SQL_TYPE_TIME      SQLSMALLINT = 92
	SQL_TYPE_TIMESTAMP SQLSMALLINT = 93
	SQL_LONGVARCHAR    SQLSMALLINT = -1
	SQL_BINARY         SQLSMALLINT = -2
	SQL_VARBINARY      SQLSMALLINT = -3
	SQL_LONGVARBINARY  SQLSMALLINT = -4
	SQL_BIGINT         SQLSMALLINT = -5
	SQL_TINYINT        SQLSMALLINT = -6
	SQL_BIT            SQLSMALLINT = -7
	SQL_WCHAR          SQLSMALLINT = -8
	SQL_WVARCHAR       SQLSMALLINT = -9
	SQL_WLONGVARCHAR   SQLSMALLINT = -10
	SQL_GUID           SQLSMALLINT = -11
)

// C data type identifiers for binding. Everything moves as text or raw bytes.
const (
	SQL_C_CHAR   = SQL_CHAR
	SQL_C_BINARY = SQL_BINARY
)

// Parameter input/output type
const (
	SQL_PARAM_INPUT        SQLSMALLINT = 1
	SQL_PARAM_INPUT_OUTPUT SQLSMALLINT = 2
	SQL_PARAM_OUTPUT       SQLSMALLINT = 4
)

// Fetch direction
const (
	SQL_FETCH_NEXT     SQLSMALLINT = 1
	SQL_FETCH_FIRST    SQLSMALLINT = 2
	SQL_FETCH_LAST     SQLSMALLINT = 3
	SQL_FETCH_PRIOR    SQLSMALLINT = 4
	SQL_FETCH_ABSOLUTE SQLSMALLINT = 5
	SQL_FETCH_RELATIVE SQLSMALLINT = 6
)

// Free statement options
const (
	SQL_CLOSE        SQLUSMALLINT = 0
	SQL_UNBIND       SQLUSMALLINT = 2
	SQL_RESET_PARAMS SQLUSMALLINT = 3
)

// Transaction completion types
const (
	SQL_COMMIT   SQLSMALLINT = 0
	SQL_ROLLBACK SQLSMALLINT = 1
)

// Nullable field values
const (
	SQL_NO_NULLS         SQLSMALLINT = 0
	SQL_NULLABLE         SQLSMALLINT = 1
	SQL_NULLABLE_UNKNOWN SQLSMALLINT = 2
)

// Column attribute identifiers
const (
	SQL_DESC_DISPLAY_SIZE SQLUSMALLINT = 6
)

// IsSuccess checks if the return code indicates success
func IsSuccess(ret SQLRETURN) bool {
	return ret == SQL_SUCCESS || ret == SQL_SUCCESS_WITH_INFO
}

// isBinaryType reports whether sqlType belongs to the binary family.
func isBinaryType(sqlType SQLSMALLINT) bool {
	switch sqlType {
	case SQL_BINARY, SQL_VARBINARY, SQL_LONGVARBINARY:
		return true
	}
	return false
}

// isWideType reports whether sqlType is one of the wide-character families.
func isWideType(sqlType SQLSMALLINT) bool {
	switch sqlType {
	case SQL_WCHAR, SQL_WVARCHAR, SQL_WLONGVARCHAR:
		return true
	}
	return false
}

// isVariableType reports whether sqlType is a variable-length text or binary
// family. Some drivers describe these with a zero size when unbounded.
func isVariableType(sqlType SQLSMALLINT) bool {
	switch sqlType {
	case SQL_VARCHAR, SQL_LONGVARCHAR, SQL_WVARCHAR, SQL_WLONGVARCHAR,
		SQL_VARBINARY, SQL_LONGVARBINARY:
		return true
	}
	return false
}

// =============================================================================
// Output Parameter Support
// =============================================================================

// ParamDirection specifies the direction of a parameter (input, output, or both)
type ParamDirection int

const (
	// ParamInput is for input-only parameters (default)
	ParamInput ParamDirection = iota
	// ParamOutput is for output-only parameters
	ParamOutput
	// ParamInputOutput is for bidirectional parameters
	ParamInputOutput
)

// OutputParam wraps a value for output or input/output parameter binding.
// Use this type when calling stored procedures that return values through parameters.
// After execution the value is available from Result.OutputParams as a string,
// or nil when the procedure returned NULL.
type OutputParam struct {
	// Value holds the initial value for InputOutput parameters. It is ignored
	// for output-only parameters.
	Value interface{}

	// Direction specifies whether this is an output or input/output parameter
	Direction ParamDirection

	// Size is the maximum length in bytes the procedure may write back.
	// If 0, defaultOutputSize is used.
	Size int
}

// defaultOutputSize is the output buffer length used when OutputParam.Size is 0.
const defaultOutputSize = 4000

// NewOutputParam creates an output-only parameter with room for size bytes.
func NewOutputParam(size int) OutputParam {
	return OutputParam{
		Direction: ParamOutput,
		Size:      size,
	}
}

// NewInputOutputParam creates a bidirectional parameter with an initial value.
func NewInputOutputParam(value interface{}, size int) OutputParam {
	return OutputParam{
		Value:     value,
		Direction: ParamInputOutput,
		Size:      size,
	}
}
