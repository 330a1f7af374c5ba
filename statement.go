package odbc

import (
	"errors"
	"fmt"
	"log/slog"
)

// Statement drives one prepared statement handle: parameter binding,
// execution including deferred parameter data, column description, fetching
// and long-column reads.
//
// A Statement is not safe for concurrent use. Everything it hands out that
// is not marked caller-owned stays valid only until the next call on it.
type Statement struct {
	api    API
	handle SQLHSTMT
	codec  TextCodec
	logger *slog.Logger

	// columns has one slot per column of the current result set. A slot is
	// nil until the column has been described.
	columns  []*column
	longSeen bool
	advanced bool

	// scratch backs every transcoding result. It only ever grows.
	scratch []byte

	assumeUTF8 bool
	executed   bool
	closed     bool
	rowCount   int64

	params  map[int]*Param
	retired []*paramDesc

	diag *Diagnostic
}

// StatementOption configures a Statement
type StatementOption func(*Statement)

// WithTextCodec replaces the platform default codec.
func WithTextCodec(codec TextCodec) StatementOption {
	return func(s *Statement) {
		s.codec = codec
	}
}

// WithLogger sets the logger used for debug output. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) StatementOption {
	return func(s *Statement) {
		s.logger = logger
	}
}

// WithAssumeUTF8 turns wide-character transcoding on for wide columns and
// parameters.
func WithAssumeUTF8(on bool) StatementOption {
	return func(s *Statement) {
		s.assumeUTF8 = on
	}
}

// NewStatement wraps a prepared statement handle. The Statement takes
// ownership of the handle and frees it on Close.
func NewStatement(api API, handle SQLHSTMT, opts ...StatementOption) *Statement {
	s := &Statement{
		api:      api,
		handle:   handle,
		params:   make(map[int]*Param),
		rowCount: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec = defaultTextCodec()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handle returns the native statement handle.
func (s *Statement) Handle() SQLHSTMT {
	return s.handle
}

// Diagnostic returns what the most recent operation recorded, or nil when it
// completed cleanly.
func (s *Statement) Diagnostic() *Diagnostic {
	return s.diag
}

// RowCount returns the affected-row count of the last execution, or -1.
func (s *Statement) RowCount() int64 {
	return s.rowCount
}

// NumColumns returns the column count of the current result set.
func (s *Statement) NumColumns() int {
	return len(s.columns)
}

// begin starts a public operation.
func (s *Statement) begin() error {
	s.diag = nil
	if s.closed {
		return ErrStatementClosed
	}
	return nil
}

// record stores the diagnostics for a non-clean return of op.
func (s *Statement) record(op string, ret SQLRETURN) *Diagnostic {
	s.diag = &Diagnostic{
		Op:      op,
		Return:  ret,
		Records: s.api.Diagnostics(SQL_HANDLE_STMT, SQLHANDLE(s.handle)),
	}
	if Classify(ret) == StatusSoftDiagnostic {
		s.logger.Debug("odbc: call returned diagnostics", "op", op, "diagnostic", s.diag.String())
	}
	return s.diag
}

// fail records the diagnostics of op and returns them as an error.
func (s *Statement) fail(op string, ret SQLRETURN) error {
	return s.record(op, ret).Err()
}

// check classifies ret. Soft diagnostics are recorded and tolerated; every
// status other than clean or soft is returned as an error.
func (s *Statement) check(op string, ret SQLRETURN) error {
	switch Classify(ret) {
	case StatusClean:
		return nil
	case StatusSoftDiagnostic:
		s.record(op, ret)
		return nil
	default:
		return s.fail(op, ret)
	}
}

// Execute runs the statement and returns the driver's affected-row count,
// or -1 when it does not know.
//
// Parameters bound for deferred transfer must have seen PhaseExecPre.
// Executing again closes the cursor left by the previous run.
func (s *Statement) Execute() (int64, error) {
	if err := s.begin(); err != nil {
		return 0, err
	}
	if s.executed {
		s.api.CloseCursor(s.handle)
	}

	ret := s.api.Execute(s.handle)
	if Classify(ret) == StatusNeedMoreData {
		var err error
		ret, err = s.supplyParamData()
		if err != nil {
			s.api.CloseCursor(s.handle)
			return 0, err
		}
	}

	switch Classify(ret) {
	case StatusClean:
	case StatusSoftDiagnostic, StatusNoData:
		s.record("SQLExecute", ret)
	default:
		return 0, s.fail("SQLExecute", ret)
	}

	rowCount, ret := s.api.RowCount(s.handle)
	if IsSuccess(ret) {
		s.rowCount = int64(rowCount)
	} else {
		s.rowCount = -1
	}

	if !s.executed || s.advanced {
		if err := s.allocColumns(); err != nil {
			return 0, err
		}
		s.advanced = false
	}
	s.executed = true

	return s.rowCount, nil
}

// Fetch moves the cursor. It reports false once the requested position is
// past either end of the result set.
func (s *Statement) Fetch(o Orientation, offset int64) (bool, error) {
	if err := s.begin(); err != nil {
		return false, err
	}
	dir, ok := o.native()
	if !ok {
		return false, ErrFetchOrientation
	}
	// Binding after a fetch only affects the next row.
	if err := s.describeUpTo(len(s.columns) - 1); err != nil {
		return false, err
	}

	ret := s.api.FetchScroll(s.handle, dir, SQLLEN(offset))
	switch Classify(ret) {
	case StatusClean:
		return true, nil
	case StatusSoftDiagnostic:
		s.record("SQLFetchScroll", ret)
		return true, nil
	case StatusNoData:
		return false, nil
	default:
		return false, s.fail("SQLFetchScroll", ret)
	}
}

// NextResultSet advances to the next result set. Output parameter values
// are only final once this has returned false.
func (s *Statement) NextResultSet() (bool, error) {
	if err := s.begin(); err != nil {
		return false, err
	}

	ret := s.api.MoreResults(s.handle)
	switch Classify(ret) {
	case StatusClean:
	case StatusSoftDiagnostic:
		s.record("SQLMoreResults", ret)
	case StatusNoData:
		return false, nil
	default:
		return false, s.fail("SQLMoreResults", ret)
	}

	if err := s.allocColumns(); err != nil {
		return false, err
	}
	s.advanced = true
	s.logger.Debug("odbc: advanced to next result set", "columns", len(s.columns))
	return true, nil
}

// Close releases the cursor, the handle and every buffer. It is safe to call
// more than once.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.diag = nil

	var err error
	if s.handle != 0 {
		if s.executed {
			s.api.CloseCursor(s.handle)
		}
		if ret := s.api.FreeHandle(SQL_HANDLE_STMT, SQLHANDLE(s.handle)); !IsSuccess(ret) {
			err = fmt.Errorf("SQLFreeHandle: %s", FormatReturnCode(ret))
		}
		s.handle = 0
	}

	s.columns = nil
	s.scratch = nil
	s.params = nil
	s.retired = nil
	return err
}

// toWide transcodes src into the scratch buffer.
func (s *Statement) toWide(src []byte) ([]byte, Conversion) {
	out, conv := s.codec.ToWide(s.scratch, src)
	s.keepScratch(out)
	return out, conv
}

// fromWide transcodes src into the scratch buffer.
func (s *Statement) fromWide(src []byte) ([]byte, Conversion) {
	out, conv := s.codec.FromWide(s.scratch, src)
	s.keepScratch(out)
	return out, conv
}

func (s *Statement) keepScratch(out []byte) {
	if cap(out) > cap(s.scratch) {
		s.scratch = out[:0]
	}
}

// StmtAttr names a statement attribute.
type StmtAttr int

const (
	// AttrCursorName is the cursor name, a string.
	AttrCursorName StmtAttr = iota + 1
	// AttrAssumeUTF8 controls wide-character transcoding, a bool.
	AttrAssumeUTF8
)

// Attribute returns the value of a statement attribute.
func (s *Statement) Attribute(attr StmtAttr) (any, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	switch attr {
	case AttrCursorName:
		name, ret := s.api.GetCursorName(s.handle)
		if err := s.check("SQLGetCursorName", ret); err != nil {
			return nil, err
		}
		return name, nil
	case AttrAssumeUTF8:
		return s.assumeUTF8, nil
	default:
		return nil, ErrUnknownAttribute
	}
}

// SetAttribute changes a statement attribute. AttrCursorName takes a string
// and AttrAssumeUTF8 a bool.
//
// The UTF-8 flag is read when parameters are bound and columns described,
// so changing it affects later bindings only.
func (s *Statement) SetAttribute(attr StmtAttr, value any) error {
	if err := s.begin(); err != nil {
		return err
	}
	switch attr {
	case AttrCursorName:
		name, ok := value.(string)
		if !ok {
			return fmt.Errorf("cursor name must be a string, got %T", value)
		}
		return s.check("SQLSetCursorName", s.api.SetCursorName(s.handle, name))
	case AttrAssumeUTF8:
		on, ok := value.(bool)
		if !ok {
			return fmt.Errorf("assume UTF-8 flag must be a bool, got %T", value)
		}
		s.assumeUTF8 = on
		return nil
	default:
		return ErrUnknownAttribute
	}
}

// CursorName returns the driver's name for the statement's cursor.
func (s *Statement) CursorName() (string, error) {
	v, err := s.Attribute(AttrCursorName)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetCursorName names the statement's cursor.
func (s *Statement) SetCursorName(name string) error {
	return s.SetAttribute(AttrCursorName, name)
}

// AssumeUTF8 reports whether wide columns and parameters are transcoded
// between UTF-8 and UTF-16.
func (s *Statement) AssumeUTF8() bool {
	return s.assumeUTF8
}

// SetAssumeUTF8 turns transcoding on or off for bindings made from now on.
func (s *Statement) SetAssumeUTF8(on bool) {
	s.assumeUTF8 = on
}

// isWide reports whether values of sqlType are transcoded by this statement.
func (s *Statement) isWide(sqlType SQLSMALLINT) bool {
	return s.assumeUTF8 && isWideType(sqlType)
}

var errUnknownParam = errors.New("driver requested data for an unbound parameter")

// CloseCursor discards the pending results of the last execution.
func (s *Statement) CloseCursor() error {
	if err := s.begin(); err != nil {
		return err
	}
	if !s.executed {
		return nil
	}
	return s.check("SQLFreeStmt", s.api.FreeStmt(s.handle, SQL_CLOSE))
}
