package odbc

import (
	"slices"
)

// fakeColumn is one column of a scripted result set.
type fakeColumn struct {
	desc    ColumnDescription
	display SQLLEN
	// noTotal makes GetData report SQL_NO_TOTAL instead of the remaining length.
	noTotal bool
}

// fakeResultSet holds rows as raw driver bytes, nil for NULL.
type fakeResultSet struct {
	cols []fakeColumn
	rows [][][]byte
}

type fakeBound struct {
	cType SQLSMALLINT
	buf   []byte
	ind   *SQLLEN
}

// fakeAPI is a scripted driver: it serves result sets, records what the
// statement core asks of it and answers parameter data requests.
type fakeAPI struct {
	calls []string

	nextHandle SQLHANDLE
	freed      []SQLHANDLE
	connectRet SQLRETURN
	connAttrs  map[SQLINTEGER]uintptr
	endTran    []SQLSMALLINT
	prepared   []string
	numParams  SQLSMALLINT

	paramDescs map[SQLUSMALLINT]ParamDescription
	bindings   map[SQLUSMALLINT]ParamBinding
	bindRet    SQLRETURN

	// execRets is consumed one per Execute; when empty Execute succeeds.
	execRets []SQLRETURN
	rowCount SQLLEN

	// needData lists the parameters the driver asks for after Execute.
	needData  []SQLUSMALLINT
	needIdx   int
	putTarget SQLUSMALLINT
	puts      map[SQLUSMALLINT][][]byte
	putRet    SQLRETURN

	// outputs is written into output parameter buffers by Execute. A nil
	// value stores SQL_NULL_DATA.
	outputs map[SQLUSMALLINT][]byte

	sets     []fakeResultSet
	cur      int
	pos      int
	bound    map[SQLUSMALLINT]fakeBound
	getOff   map[SQLUSMALLINT]int
	getCalls map[SQLUSMALLINT]int
	// getSizes records the buffer length of every GetData call per column.
	getSizes map[SQLUSMALLINT][]int
	fetchRet SQLRETURN

	cursorName string
	freeStmt   []SQLUSMALLINT
	diag       []DiagRecord
}

func newFakeAPI(sets ...fakeResultSet) *fakeAPI {
	return &fakeAPI{
		nextHandle: 100,
		numParams:  -1,
		connAttrs:  make(map[SQLINTEGER]uintptr),
		paramDescs: make(map[SQLUSMALLINT]ParamDescription),
		bindings:   make(map[SQLUSMALLINT]ParamBinding),
		puts:       make(map[SQLUSMALLINT][][]byte),
		outputs:    make(map[SQLUSMALLINT][]byte),
		sets:       sets,
		bound:      make(map[SQLUSMALLINT]fakeBound),
		getOff:     make(map[SQLUSMALLINT]int),
		getCalls:   make(map[SQLUSMALLINT]int),
		getSizes:   make(map[SQLUSMALLINT][]int),
		cursorName: "SQL_CUR1",
	}
}

func (f *fakeAPI) called(name string) bool {
	return slices.Contains(f.calls, name)
}

func (f *fakeAPI) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) set() *fakeResultSet {
	if f.cur >= len(f.sets) {
		return nil
	}
	return &f.sets[f.cur]
}

func (f *fakeAPI) AllocHandle(handleType SQLSMALLINT, input SQLHANDLE) (SQLHANDLE, SQLRETURN) {
	f.calls = append(f.calls, "AllocHandle")
	f.nextHandle++
	return f.nextHandle, SQL_SUCCESS
}

func (f *fakeAPI) FreeHandle(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN {
	f.calls = append(f.calls, "FreeHandle")
	f.freed = append(f.freed, handle)
	return SQL_SUCCESS
}

func (f *fakeAPI) SetEnvAttr(env SQLHENV, attribute SQLINTEGER, value uintptr) SQLRETURN {
	f.calls = append(f.calls, "SetEnvAttr")
	return SQL_SUCCESS
}

func (f *fakeAPI) DriverConnect(dbc SQLHDBC, connStr string) SQLRETURN {
	f.calls = append(f.calls, "DriverConnect")
	return f.connectRet
}

func (f *fakeAPI) Disconnect(dbc SQLHDBC) SQLRETURN {
	f.calls = append(f.calls, "Disconnect")
	return SQL_SUCCESS
}

func (f *fakeAPI) SetConnectAttr(dbc SQLHDBC, attribute SQLINTEGER, value uintptr) SQLRETURN {
	f.calls = append(f.calls, "SetConnectAttr")
	f.connAttrs[attribute] = value
	return SQL_SUCCESS
}

func (f *fakeAPI) EndTran(handleType SQLSMALLINT, handle SQLHANDLE, completionType SQLSMALLINT) SQLRETURN {
	f.calls = append(f.calls, "EndTran")
	f.endTran = append(f.endTran, completionType)
	return SQL_SUCCESS
}

func (f *fakeAPI) Prepare(stmt SQLHSTMT, query string) SQLRETURN {
	f.calls = append(f.calls, "Prepare")
	f.prepared = append(f.prepared, query)
	return SQL_SUCCESS
}

func (f *fakeAPI) NumParams(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	return f.numParams, SQL_SUCCESS
}

func (f *fakeAPI) DescribeParam(stmt SQLHSTMT, param SQLUSMALLINT) (ParamDescription, SQLRETURN) {
	f.calls = append(f.calls, "DescribeParam")
	d, ok := f.paramDescs[param]
	if !ok {
		return ParamDescription{}, SQL_ERROR
	}
	return d, SQL_SUCCESS
}

func (f *fakeAPI) BindParameter(stmt SQLHSTMT, param SQLUSMALLINT, b ParamBinding) SQLRETURN {
	f.calls = append(f.calls, "BindParameter")
	if f.bindRet != SQL_SUCCESS {
		return f.bindRet
	}
	f.bindings[param] = b
	return SQL_SUCCESS
}

func (f *fakeAPI) Execute(stmt SQLHSTMT) SQLRETURN {
	f.calls = append(f.calls, "Execute")
	f.cur, f.pos, f.needIdx = 0, 0, 0
	if len(f.execRets) > 0 {
		ret := f.execRets[0]
		f.execRets = f.execRets[1:]
		if ret == SQL_SUCCESS_WITH_INFO {
			f.writeOutputs()
		}
		if ret != SQL_SUCCESS {
			return ret
		}
	}
	if len(f.needData) > 0 {
		return SQL_NEED_DATA
	}
	f.writeOutputs()
	return SQL_SUCCESS
}

func (f *fakeAPI) writeOutputs() {
	for pos, v := range f.outputs {
		b, ok := f.bindings[pos]
		if !ok || b.Indicator == nil {
			continue
		}
		if v == nil {
			*b.Indicator = SQL_NULL_DATA
			continue
		}
		*b.Indicator = SQLLEN(copy(b.Buffer, v))
		if len(v) > len(b.Buffer) {
			*b.Indicator = SQLLEN(len(v))
		}
	}
}

func (f *fakeAPI) ParamData(stmt SQLHSTMT) (SQLUSMALLINT, SQLRETURN) {
	f.calls = append(f.calls, "ParamData")
	if f.needIdx < len(f.needData) {
		f.putTarget = f.needData[f.needIdx]
		f.needIdx++
		return f.putTarget, SQL_NEED_DATA
	}
	f.writeOutputs()
	return 0, SQL_SUCCESS
}

func (f *fakeAPI) PutData(stmt SQLHSTMT, data []byte) SQLRETURN {
	f.calls = append(f.calls, "PutData")
	if f.putRet != SQL_SUCCESS {
		return f.putRet
	}
	f.puts[f.putTarget] = append(f.puts[f.putTarget], slices.Clone(data))
	return SQL_SUCCESS
}

func (f *fakeAPI) RowCount(stmt SQLHSTMT) (SQLLEN, SQLRETURN) {
	return f.rowCount, SQL_SUCCESS
}

func (f *fakeAPI) NumResultCols(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	f.calls = append(f.calls, "NumResultCols")
	rs := f.set()
	if rs == nil {
		return 0, SQL_SUCCESS
	}
	return SQLSMALLINT(len(rs.cols)), SQL_SUCCESS
}

func (f *fakeAPI) DescribeCol(stmt SQLHSTMT, col SQLUSMALLINT) (ColumnDescription, SQLRETURN) {
	f.calls = append(f.calls, "DescribeCol")
	rs := f.set()
	if rs == nil || int(col) > len(rs.cols) || col == 0 {
		return ColumnDescription{}, SQL_ERROR
	}
	return rs.cols[col-1].desc, SQL_SUCCESS
}

func (f *fakeAPI) ColAttribute(stmt SQLHSTMT, col SQLUSMALLINT, field SQLUSMALLINT) (SQLLEN, SQLRETURN) {
	rs := f.set()
	if rs == nil || int(col) > len(rs.cols) || col == 0 {
		return 0, SQL_ERROR
	}
	return rs.cols[col-1].display, SQL_SUCCESS
}

func (f *fakeAPI) BindCol(stmt SQLHSTMT, col SQLUSMALLINT, cType SQLSMALLINT, buf []byte, ind *SQLLEN) SQLRETURN {
	f.calls = append(f.calls, "BindCol")
	f.bound[col] = fakeBound{cType: cType, buf: buf, ind: ind}
	return SQL_SUCCESS
}

// capacityOf is how many data bytes buf takes for cType.
func capacityOf(cType SQLSMALLINT, buf []byte) int {
	if cType == SQL_C_BINARY {
		return len(buf)
	}
	return max(len(buf)-1, 0)
}

func (f *fakeAPI) GetData(stmt SQLHSTMT, col SQLUSMALLINT, cType SQLSMALLINT, buf []byte, ind *SQLLEN) SQLRETURN {
	f.calls = append(f.calls, "GetData")
	f.getSizes[col] = append(f.getSizes[col], len(buf))
	rs := f.set()
	if rs == nil || f.pos < 1 || f.pos > len(rs.rows) {
		return SQL_ERROR
	}
	v := rs.rows[f.pos-1][col-1]
	calls := f.getCalls[col]
	f.getCalls[col]++
	if v == nil {
		if calls > 0 {
			return SQL_NO_DATA
		}
		*ind = SQL_NULL_DATA
		return SQL_SUCCESS
	}

	off := f.getOff[col]
	if calls > 0 && off >= len(v) {
		return SQL_NO_DATA
	}
	remaining := v[off:]
	n := copy(buf[:capacityOf(cType, buf)], remaining)
	if cType != SQL_C_BINARY && len(buf) > n {
		buf[n] = 0
	}
	f.getOff[col] = off + n

	*ind = SQLLEN(len(remaining))
	if rs.cols[col-1].noTotal && n < len(remaining) {
		*ind = SQL_NO_TOTAL
	}
	if n < len(remaining) {
		f.diag = []DiagRecord{{SQLState: SQLStateDataTruncation, Message: "String data, right truncated"}}
		return SQL_SUCCESS_WITH_INFO
	}
	return SQL_SUCCESS
}

func (f *fakeAPI) FetchScroll(stmt SQLHSTMT, orientation SQLSMALLINT, offset SQLLEN) SQLRETURN {
	f.calls = append(f.calls, "FetchScroll")
	if f.fetchRet != SQL_SUCCESS {
		return f.fetchRet
	}
	rs := f.set()
	if rs == nil {
		return SQL_ERROR
	}
	n := len(rs.rows)
	switch orientation {
	case SQL_FETCH_NEXT:
		f.pos++
	case SQL_FETCH_PRIOR:
		f.pos--
	case SQL_FETCH_FIRST:
		f.pos = 1
	case SQL_FETCH_LAST:
		f.pos = n
	case SQL_FETCH_ABSOLUTE:
		switch {
		case offset < 0:
			f.pos = n + 1 + int(offset)
		default:
			f.pos = int(offset)
		}
	case SQL_FETCH_RELATIVE:
		f.pos += int(offset)
	default:
		return SQL_ERROR
	}
	if f.pos < 1 {
		f.pos = 0
		return SQL_NO_DATA
	}
	if f.pos > n {
		f.pos = n + 1
		return SQL_NO_DATA
	}

	clear(f.getOff)
	clear(f.getCalls)
	row := rs.rows[f.pos-1]
	for col, b := range f.bound {
		v := row[col-1]
		if v == nil {
			*b.ind = SQL_NULL_DATA
			continue
		}
		n := copy(b.buf[:capacityOf(b.cType, b.buf)], v)
		if b.cType != SQL_C_BINARY && len(b.buf) > n {
			b.buf[n] = 0
		}
		*b.ind = SQLLEN(len(v))
	}
	return SQL_SUCCESS
}

func (f *fakeAPI) MoreResults(stmt SQLHSTMT) SQLRETURN {
	f.calls = append(f.calls, "MoreResults")
	if f.cur+1 >= len(f.sets) {
		f.cur = len(f.sets)
		return SQL_NO_DATA
	}
	f.cur++
	f.pos = 0
	return SQL_SUCCESS
}

func (f *fakeAPI) GetCursorName(stmt SQLHSTMT) (string, SQLRETURN) {
	return f.cursorName, SQL_SUCCESS
}

func (f *fakeAPI) SetCursorName(stmt SQLHSTMT, name string) SQLRETURN {
	f.calls = append(f.calls, "SetCursorName")
	if name == "" {
		f.diag = []DiagRecord{{SQLState: "34000", Message: "Invalid cursor name"}}
		return SQL_ERROR
	}
	f.cursorName = name
	return SQL_SUCCESS
}

func (f *fakeAPI) CloseCursor(stmt SQLHSTMT) SQLRETURN {
	f.calls = append(f.calls, "CloseCursor")
	f.pos = 0
	return SQL_SUCCESS
}

func (f *fakeAPI) FreeStmt(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN {
	f.calls = append(f.calls, "FreeStmt")
	f.freeStmt = append(f.freeStmt, option)
	switch option {
	case SQL_UNBIND:
		clear(f.bound)
	case SQL_CLOSE:
		f.pos = 0
	case SQL_RESET_PARAMS:
		clear(f.bindings)
	}
	return SQL_SUCCESS
}

func (f *fakeAPI) Diagnostics(handleType SQLSMALLINT, handle SQLHANDLE) []DiagRecord {
	return f.diag
}

var _ API = (*fakeAPI)(nil)

// textCol describes a character column of the given type and size.
func textCol(name string, sqlType SQLSMALLINT, size int) fakeColumn {
	return fakeColumn{desc: ColumnDescription{Name: name, SQLType: sqlType, Size: SQLULEN(size), Nullable: SQL_NULLABLE}}
}

// newTestStatement returns a Statement over f with an executed cursor.
func newTestStatement(f *fakeAPI, opts ...StatementOption) *Statement {
	opts = append([]StatementOption{WithTextCodec(UTF16Codec())}, opts...)
	return NewStatement(f, 7, opts...)
}

// utf16le encodes s for fake wide columns.
func utf16le(s string) []byte {
	out, conv := UTF16Codec().ToWide(nil, []byte(s))
	if conv != ConversionOK {
		panic("utf16le: " + s)
	}
	return slices.Clone(out)
}
