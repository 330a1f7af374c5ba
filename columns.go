package odbc

import (
	"fmt"
)

const (
	// longThreshold is the size from which a column is read late instead of
	// being bound.
	longThreshold = 256
	// workBufferSize is the first-read buffer of a long column.
	workBufferSize = 256
	// shrinkMargin is the unused capacity a grown buffer may keep.
	shrinkMargin = 1024
)

// ColumnMeta describes a result column. Every column is transferred as text
// or raw bytes.
type ColumnMeta struct {
	Name     string
	SQLType  SQLSMALLINT
	TypeName string
	// Size is the display size when the driver reports one, else the
	// described column size.
	Size int
	// Long columns are fetched with SQLGetData after each row.
	Long bool
	// Wide columns are transcoded from the driver's wide form.
	Wide bool
	// Nullable is SQL_NO_NULLS, SQL_NULLABLE or SQL_NULLABLE_UNKNOWN.
	Nullable      SQLSMALLINT
	DecimalDigits SQLSMALLINT
}

// ColumnValue is one column of the current row. Data is nil for SQL NULL.
// Unless CallerOwns is set, Data aliases a statement buffer that the next
// fetch overwrites.
type ColumnValue struct {
	Data       []byte
	CallerOwns bool
}

// IsNull reports whether the value is SQL NULL.
func (v ColumnValue) IsNull() bool {
	return v.Data == nil
}

type column struct {
	meta  ColumnMeta
	cType SQLSMALLINT
	// data is the bound buffer, or the working buffer of a long column.
	data []byte
	ind  SQLLEN
}

// capacity is how many data bytes fit in buf for this column's C type.
// Character data always leaves room for the driver's NUL.
func (c *column) capacity(buf []byte) int {
	if c.cType == SQL_C_BINARY {
		return len(buf)
	}
	return len(buf) - 1
}

// allocColumns forgets the current column set and sizes a new one from
// SQLNumResultCols.
func (s *Statement) allocColumns() error {
	s.releaseColumns()
	n, ret := s.api.NumResultCols(s.handle)
	if err := s.check("SQLNumResultCols", ret); err != nil {
		return err
	}
	s.columns = make([]*column, max(int(n), 0))
	return nil
}

// releaseColumns drops the column set and any buffers bound to it.
func (s *Statement) releaseColumns() {
	for _, c := range s.columns {
		if c != nil && !c.meta.Long {
			s.api.FreeStmt(s.handle, SQL_UNBIND)
			break
		}
	}
	s.columns = nil
	s.longSeen = false
}

// DescribeColumn returns the metadata of column i (0-based). Columns must be
// described in order; describing column i first describes any earlier
// column that has not been.
func (s *Statement) DescribeColumn(i int) (ColumnMeta, error) {
	if err := s.begin(); err != nil {
		return ColumnMeta{}, err
	}
	if i < 0 || i >= len(s.columns) {
		return ColumnMeta{}, fmt.Errorf("column %d out of range [0,%d)", i, len(s.columns))
	}
	if err := s.describeUpTo(i); err != nil {
		return ColumnMeta{}, err
	}
	return s.columns[i].meta, nil
}

// DescribeColumns describes every column of the current result set.
func (s *Statement) DescribeColumns() ([]ColumnMeta, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	if err := s.describeUpTo(len(s.columns) - 1); err != nil {
		return nil, err
	}
	metas := make([]ColumnMeta, len(s.columns))
	for i, c := range s.columns {
		metas[i] = c.meta
	}
	return metas, nil
}

func (s *Statement) describeUpTo(last int) error {
	for i := 0; i <= last && i < len(s.columns); i++ {
		if s.columns[i] != nil {
			continue
		}
		if err := s.describe(i); err != nil {
			return err
		}
	}
	return nil
}

// describe fills slot i and either binds the column or marks it long.
func (s *Statement) describe(i int) error {
	colNum := SQLUSMALLINT(i + 1)

	desc, ret := s.api.DescribeCol(s.handle, colNum)
	if err := s.check("SQLDescribeCol", ret); err != nil {
		return err
	}
	// SQL Server reports (max) types with a zero size.
	if desc.Size == 0 && isVariableType(desc.SQLType) {
		s.longSeen = true
	}

	displaySize, ret := s.api.ColAttribute(s.handle, colNum, SQL_DESC_DISPLAY_SIZE)
	if err := s.check("SQLColAttribute", ret); err != nil {
		return err
	}

	size := int(desc.Size)
	if displaySize > 0 {
		size = int(displaySize)
	}

	c := &column{
		meta: ColumnMeta{
			Name:          desc.Name,
			SQLType:       desc.SQLType,
			TypeName:      SQLTypeName(desc.SQLType),
			Size:          size,
			Wide:          s.isWide(desc.SQLType),
			Nullable:      desc.Nullable,
			DecimalDigits: desc.DecimalDigits,
		},
		cType: SQL_C_CHAR,
	}
	if c.meta.Wide || isBinaryType(desc.SQLType) {
		c.cType = SQL_C_BINARY
	}

	if size < longThreshold && !s.longSeen {
		n := size + 1
		if c.meta.Wide {
			n = 2*size + 2
		}
		c.data = make([]byte, n)
		if err := s.check("SQLBindCol", s.api.BindCol(s.handle, colNum, c.cType, c.data, &c.ind)); err != nil {
			return err
		}
	} else {
		c.data = make([]byte, workBufferSize)
		c.meta.Long = true
		s.longSeen = true
	}

	s.columns[i] = c
	return nil
}

// ColumnValue reads column i (0-based) of the current row.
func (s *Statement) ColumnValue(i int) (ColumnValue, error) {
	if err := s.begin(); err != nil {
		return ColumnValue{}, err
	}
	if i < 0 || i >= len(s.columns) || s.columns[i] == nil {
		return ColumnValue{}, fmt.Errorf("column %d is not described", i)
	}
	c := s.columns[i]
	if !c.meta.Long {
		return s.indicatorValue(c, c.ind, c.data), nil
	}
	return s.readLong(i, c)
}

// indicatorValue interprets ind for data read into buf.
func (s *Statement) indicatorValue(c *column, ind SQLLEN, buf []byte) ColumnValue {
	switch {
	case ind == SQL_NULL_DATA:
		return ColumnValue{}
	case ind >= 0:
		data := buf[:min(int(ind), c.capacity(buf))]
		if c.meta.Wide {
			return s.decodeWide(data, false)
		}
		return ColumnValue{Data: data}
	default:
		return ColumnValue{}
	}
}

// decodeWide converts wide column data to UTF-8 in a caller-owned slice.
// Undecodable data is returned as is.
func (s *Statement) decodeWide(data []byte, callerOwns bool) ColumnValue {
	text, conv := s.fromWide(data)
	switch conv {
	case ConversionOK:
		out := make([]byte, len(text))
		copy(out, text)
		return ColumnValue{Data: out, CallerOwns: true}
	case ConversionFailed:
		s.logger.Warn("odbc: returning column data untranscoded", "bytes", len(data))
	}
	return ColumnValue{Data: data, CallerOwns: callerOwns}
}

// readLong fetches a long column with SQLGetData, growing a private buffer
// when the value does not fit the working buffer.
func (s *Statement) readLong(i int, c *column) (ColumnValue, error) {
	colNum := SQLUSMALLINT(i + 1)

	ret := s.api.GetData(s.handle, colNum, c.cType, c.data, &c.ind)
	switch Classify(ret) {
	case StatusClean:
		return s.indicatorValue(c, c.ind, c.data), nil
	case StatusNoData:
		return ColumnValue{}, nil
	case StatusSoftDiagnostic:
		// truncated, grow below
	default:
		return ColumnValue{}, s.fail("SQLGetData", ret)
	}
	if c.ind == SQL_NULL_DATA {
		return ColumnValue{}, nil
	}

	used := c.capacity(c.data)
	if c.ind >= 0 && int(c.ind) < used {
		used = int(c.ind)
	}
	alloc := 2 * len(c.data)
	if c.ind >= 0 {
		alloc = max(int(c.ind), used) + 1
	}
	buf := make([]byte, alloc)
	copy(buf, c.data[:used])

	// One byte at the end of buf is always kept back for the terminator.
	for {
		if alloc-used <= 1 {
			alloc *= 2
			buf = grow(buf, alloc)
		}
		room := alloc - used - 1
		target := buf[used : alloc-1]
		if c.cType != SQL_C_BINARY {
			target = buf[used:alloc]
		}

		var ind SQLLEN
		ret := s.api.GetData(s.handle, colNum, c.cType, target, &ind)
		status := Classify(ret)
		if status == StatusNoData {
			break
		}
		if status != StatusClean && status != StatusSoftDiagnostic {
			s.record("SQLGetData", ret)
			break
		}

		if ind == SQL_NO_TOTAL || int(ind) > room {
			used += room
		} else if ind > 0 {
			used += int(ind)
		}
		if status == StatusClean {
			break
		}

		alloc *= 2
		buf = grow(buf, alloc)
	}

	if alloc-used > shrinkMargin {
		buf = grow(buf[:used], used+1)
		alloc = used + 1
	}
	buf[used] = 0
	s.logger.Debug("odbc: read long column", "column", i, "bytes", used, "capacity", alloc)

	if c.meta.Wide {
		return s.decodeWide(buf[:used], true), nil
	}
	return ColumnValue{Data: buf[:used], CallerOwns: true}, nil
}

// grow returns a buffer of exactly n bytes holding buf's contents.
func grow(buf []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, buf)
	return out
}

// Orientation selects the row SQLFetchScroll moves to.
type Orientation int

const (
	FetchNext Orientation = iota
	FetchPrior
	FetchFirst
	FetchLast
	// FetchAbsolute moves to row offset (1-based; negative counts from the end).
	FetchAbsolute
	// FetchRelative moves offset rows from the current one.
	FetchRelative
)

func (o Orientation) native() (SQLSMALLINT, bool) {
	switch o {
	case FetchNext:
		return SQL_FETCH_NEXT, true
	case FetchPrior:
		return SQL_FETCH_PRIOR, true
	case FetchFirst:
		return SQL_FETCH_FIRST, true
	case FetchLast:
		return SQL_FETCH_LAST, true
	case FetchAbsolute:
		return SQL_FETCH_ABSOLUTE, true
	case FetchRelative:
		return SQL_FETCH_RELATIVE, true
	}
	return 0, false
}

// ParseOrientation maps a lowercase orientation name to an Orientation.
func ParseOrientation(name string) (Orientation, error) {
	switch name {
	case "next":
		return FetchNext, nil
	case "prior":
		return FetchPrior, nil
	case "first":
		return FetchFirst, nil
	case "last":
		return FetchLast, nil
	case "absolute":
		return FetchAbsolute, nil
	case "relative":
		return FetchRelative, nil
	}
	return 0, fmt.Errorf("orientation %q: %w", name, ErrFetchOrientation)
}
