package odbc

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents an ODBC error with diagnostic information from the driver.
// It implements the error interface and provides SQLState, native error code,
// and a human-readable message.
type Error struct {
	SQLState    string
	NativeError int32
	Message     string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s (native error: %d)", e.SQLState, e.Message, e.NativeError)
}

// Unwrap returns nil as Error is a terminal error type.
// This method supports Go 1.13+ error handling with errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return nil
}

// Is reports whether target matches this error's SQLState.
// This allows using errors.Is to check for specific ODBC errors.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.SQLState == t.SQLState
	}
	return false
}

// DiagRecord represents a single diagnostic record from ODBC
type DiagRecord struct {
	SQLState    string
	NativeError int32
	Message     string
}

// Errors represents multiple ODBC errors
type Errors []Error

// Error implements the error interface for multiple errors
func (e Errors) Error() string {
	if len(e) == 0 {
		return "unknown ODBC error"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Is reports whether any error in e matches target.
func (e Errors) Is(target error) bool {
	for i := range e {
		if e[i].Is(target) {
			return true
		}
	}
	return false
}

// newErrorFromRecords builds an *Error for a single record and Errors for
// several. With no records it returns a generic HY000 error.
func newErrorFromRecords(records []DiagRecord) error {
	if len(records) == 0 {
		return &Error{
			SQLState: SQLStateGeneralError,
			Message:  "unknown ODBC error",
		}
	}
	if len(records) == 1 {
		return &Error{
			SQLState:    records[0].SQLState,
			NativeError: records[0].NativeError,
			Message:     records[0].Message,
		}
	}
	errs := make(Errors, len(records))
	for i, rec := range records {
		errs[i] = Error{
			SQLState:    rec.SQLState,
			NativeError: rec.NativeError,
			Message:     rec.Message,
		}
	}
	return errs
}

// wrapOp prefixes err with the name of the native call that produced it.
func wrapOp(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// Diagnostic is the most recent non-clean outcome recorded on a statement.
type Diagnostic struct {
	// Op names the native call, e.g. "SQLExecute".
	Op      string
	Return  SQLRETURN
	Records []DiagRecord
}

// Status classifies the recorded return code.
func (d *Diagnostic) Status() Status {
	return Classify(d.Return)
}

// Err converts the recorded diagnostics into an error wrapped with Op.
func (d *Diagnostic) Err() error {
	return wrapOp(d.Op, newErrorFromRecords(d.Records))
}

func (d *Diagnostic) String() string {
	if len(d.Records) == 0 {
		return fmt.Sprintf("%s: %s", d.Op, FormatReturnCode(d.Return))
	}
	return fmt.Sprintf("%s: %s: %v", d.Op, FormatReturnCode(d.Return), newErrorFromRecords(d.Records))
}

// Errors raised by the statement core itself. They carry the SQLSTATE a
// driver would have used, so errors.Is works against driver errors too.
var (
	ErrFetchOrientation = &Error{SQLState: SQLStateFetchTypeOutOfRange, Message: "fetch orientation out of range"}
	ErrUnknownAttribute = &Error{SQLState: SQLStateNotSupported, Message: "statement attribute not supported"}
	ErrLOBOutput        = &Error{SQLState: SQLStateInvalidParamType, Message: "LOB parameters can only be input"}
	ErrParamTooLarge    = &Error{SQLState: SQLStateStringTruncation, Message: "parameter value exceeds its output buffer"}
	ErrUnsupportedValue = &Error{SQLState: SQLStateInvalidParamType, Message: "unsupported parameter value type"}
	ErrStatementClosed  = errors.New("odbc: statement is closed")
)

// SQLState constants for common errors.
// These follow the ODBC specification and can be used with errors.Is.
const (
	// Connection errors (08xxx)
	SQLStateConnectionFailure  = "08001" // Unable to connect
	SQLStateConnectionNotOpen  = "08003" // Connection not open
	SQLStateConnectionRejected = "08004" // Connection rejected by server
	SQLStateConnectionError    = "08S01" // Communication link failure

	// Warning states (01xxx)
	SQLStateDataTruncation = "01004" // Data truncated
	SQLStateOptionChanged  = "01S02" // Option value changed

	// No data (02xxx)
	SQLStateNoData = "02000" // No data found

	// Descriptor errors (07xxx)
	SQLStateInvalidDescriptorIndex = "07009" // Invalid descriptor index

	// Data errors (22xxx)
	SQLStateStringTruncation = "22001" // String data right truncation
	SQLStateNumericOverflow  = "22003" // Numeric value out of range
	SQLStateInvalidDatetime  = "22007" // Invalid datetime format
	SQLStateDivisionByZero   = "22012" // Division by zero

	// Constraint violations (23xxx)
	SQLStateDuplicateKey        = "23000" // Integrity constraint violation
	SQLStateConstraintViolation = "23000" // Integrity constraint violation (alias)

	// Cursor/Transaction states (24xxx, 25xxx)
	SQLStateInvalidCursorState = "24000" // Invalid cursor state
	SQLStateInvalidTransState  = "25000" // Invalid transaction state

	// Transaction errors (40xxx)
	SQLStateDeadlock          = "40001" // Serialization failure (deadlock)
	SQLStateTransactionFailed = "40003" // Statement completion unknown

	// Syntax/access errors (42xxx)
	SQLStateSyntaxError    = "42000" // Syntax error or access violation
	SQLStateTableNotFound  = "42S02" // Table not found
	SQLStateColumnNotFound = "42S22" // Column not found

	// General errors (HYxxx)
	SQLStateGeneralError          = "HY000" // General error
	SQLStateMemoryAllocationError = "HY001" // Memory allocation error
	SQLStateFunctionSequenceError = "HY010" // Function sequence error
	SQLStateInvalidAttrValue      = "HY024" // Invalid attribute value
	SQLStateInvalidStringLength   = "HY090" // Invalid string or buffer length
	SQLStateInvalidDescIndex      = "HY091" // Invalid descriptor field identifier
	SQLStateInvalidParamType      = "HY105" // Invalid parameter type
	SQLStateFetchTypeOutOfRange   = "HY106" // Fetch type out of range
	SQLStateFeatureNotImplemented = "HYC00" // Optional feature not implemented
	SQLStateNotSupported          = "IM001" // Driver does not support this function
	SQLStateTimeout               = "HYT00" // Timeout expired
	SQLStateConnectionTimeout     = "HYT01" // Connection timeout expired
)

// sqlStateOf returns the SQLSTATE of the first ODBC error in err's chain.
func sqlStateOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.SQLState
	}
	var es Errors
	if errors.As(err, &es) && len(es) > 0 {
		return es[0].SQLState
	}
	return ""
}

// IsConnectionError reports whether err indicates a connection problem.
// Connection errors have SQLState codes starting with "08".
func IsConnectionError(err error) bool {
	return strings.HasPrefix(sqlStateOf(err), "08")
}

// IsDataTruncation reports whether err indicates data truncation, either the
// 01004 warning or the 22001 right-truncation error.
func IsDataTruncation(err error) bool {
	switch sqlStateOf(err) {
	case SQLStateDataTruncation, SQLStateStringTruncation:
		return true
	}
	return false
}

// IsRetryable reports whether err represents a transient error that may
// succeed if retried. Transient errors include connection failures,
// timeouts, and deadlocks. The statement core never retries on its own.
func IsRetryable(err error) bool {
	sqlState := sqlStateOf(err)
	if sqlState == "" {
		return false
	}

	switch sqlState {
	case SQLStateConnectionFailure, SQLStateConnectionError,
		SQLStateDeadlock, SQLStateTimeout, SQLStateConnectionTimeout,
		SQLStateTransactionFailed:
		return true
	}
	// Connection errors (08xxx) are generally retryable
	return strings.HasPrefix(sqlState, "08")
}

// FormatReturnCode returns a string representation of an ODBC return code
func FormatReturnCode(ret SQLRETURN) string {
	switch ret {
	case SQL_SUCCESS:
		return "SQL_SUCCESS"
	case SQL_SUCCESS_WITH_INFO:
		return "SQL_SUCCESS_WITH_INFO"
	case SQL_ERROR:
		return "SQL_ERROR"
	case SQL_INVALID_HANDLE:
		return "SQL_INVALID_HANDLE"
	case SQL_NO_DATA:
		return "SQL_NO_DATA"
	case SQL_NEED_DATA:
		return "SQL_NEED_DATA"
	case SQL_STILL_EXECUTING:
		return "SQL_STILL_EXECUTING"
	default:
		return fmt.Sprintf("SQLRETURN(%d)", ret)
	}
}
