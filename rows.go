package odbc

import (
	"database/sql/driver"
	"io"
	"reflect"
)

var (
	scanTypeString = reflect.TypeOf("")
	scanTypeBytes  = reflect.TypeOf([]byte(nil))
)

// Rows implements driver.Rows for result set iteration. Values arrive as
// strings, or []byte for binary columns; database/sql converts them on Scan.
type Rows struct {
	stmt    *Stmt
	st      *Statement
	columns []ColumnMeta
	names   []string
	closed  bool

	// HasNextResultSet has to advance to find out; the outcome is kept for
	// the NextResultSet call that follows.
	peeked  bool
	nextOK  bool
	nextErr error
}

// newRows describes the current result set of st.
func newRows(stmt *Stmt, st *Statement) (*Rows, error) {
	r := &Rows{stmt: stmt, st: st}
	if err := r.describe(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rows) describe() error {
	cols, err := r.st.DescribeColumns()
	if err != nil {
		return err
	}
	r.columns = cols
	r.names = make([]string, len(cols))
	for i, c := range cols {
		r.names[i] = c.Name
	}
	return nil
}

// Columns returns the column names
func (r *Rows) Columns() []string {
	return r.names
}

// Close discards what is left of the results. The statement stays prepared.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.st.CloseCursor()
}

// Next fetches the next row
func (r *Rows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}

	ok, err := r.st.Fetch(FetchNext, 0)
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}

	for i := 0; i < len(dest) && i < len(r.columns); i++ {
		v, err := r.st.ColumnValue(i)
		if err != nil {
			return err
		}
		dest[i] = r.driverValue(i, v)
	}
	return nil
}

// driverValue copies v out of statement-owned memory.
func (r *Rows) driverValue(i int, v ColumnValue) driver.Value {
	if v.IsNull() {
		return nil
	}
	if !isBinaryType(r.columns[i].SQLType) {
		return string(v.Data)
	}
	if v.CallerOwns {
		return v.Data
	}
	b := make([]byte, len(v.Data))
	copy(b, v.Data)
	return b
}

// ColumnTypeScanType returns the Go type suitable for scanning into
func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	if index < 0 || index >= len(r.columns) {
		return reflect.TypeOf(new(any)).Elem()
	}
	if isBinaryType(r.columns[index].SQLType) {
		return scanTypeBytes
	}
	return scanTypeString
}

// ColumnTypeDatabaseTypeName returns the database type name
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	if index < 0 || index >= len(r.columns) {
		return ""
	}

	switch r.columns[index].SQLType {
	case SQL_LONGVARCHAR:
		return "TEXT"
	case SQL_WCHAR:
		return "NCHAR"
	case SQL_WVARCHAR:
		return "NVARCHAR"
	case SQL_WLONGVARCHAR:
		return "NTEXT"
	case SQL_LONGVARBINARY:
		return "BLOB"
	case SQL_DATETIME:
		return "TIMESTAMP"
	}
	return r.columns[index].TypeName
}

// ColumnTypeLength returns the length of a column
func (r *Rows) ColumnTypeLength(index int) (length int64, ok bool) {
	if index < 0 || index >= len(r.columns) {
		return 0, false
	}
	// Only return length for variable-length types
	switch r.columns[index].SQLType {
	case SQL_CHAR, SQL_VARCHAR, SQL_LONGVARCHAR, SQL_WCHAR, SQL_WVARCHAR, SQL_WLONGVARCHAR,
		SQL_BINARY, SQL_VARBINARY, SQL_LONGVARBINARY:
		return int64(r.columns[index].Size), true
	}
	return 0, false
}

// ColumnTypeNullable returns whether a column is nullable
func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	if index < 0 || index >= len(r.columns) {
		return false, false
	}
	switch r.columns[index].Nullable {
	case SQL_NO_NULLS:
		return false, true
	case SQL_NULLABLE:
		return true, true
	default:
		return false, false // Unknown
	}
}

// ColumnTypePrecisionScale returns the precision and scale for NUMERIC/DECIMAL types
func (r *Rows) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	if index < 0 || index >= len(r.columns) {
		return 0, 0, false
	}
	switch r.columns[index].SQLType {
	case SQL_NUMERIC, SQL_DECIMAL:
		return int64(r.columns[index].Size), int64(r.columns[index].DecimalDigits), true
	default:
		return 0, 0, false
	}
}

// HasNextResultSet checks if there are more result sets
func (r *Rows) HasNextResultSet() bool {
	if !r.peeked {
		r.nextOK, r.nextErr = r.st.NextResultSet()
		r.peeked = true
	}
	return r.nextOK || r.nextErr != nil
}

// NextResultSet advances to the next result set
func (r *Rows) NextResultSet() error {
	r.HasNextResultSet()
	r.peeked = false
	if r.nextErr != nil {
		return r.nextErr
	}
	if !r.nextOK {
		return io.EOF
	}
	return r.describe()
}

// Ensure Rows implements the required interfaces
var (
	_ driver.Rows                           = (*Rows)(nil)
	_ driver.RowsColumnTypeScanType         = (*Rows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
	_ driver.RowsColumnTypeLength           = (*Rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*Rows)(nil)
	_ driver.RowsColumnTypePrecisionScale   = (*Rows)(nil)
	_ driver.RowsNextResultSet              = (*Rows)(nil)
)
