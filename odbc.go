package odbc

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	odbcLib  uintptr
	initOnce sync.Once
	initErr  error
)

// ODBC function pointers - populated by purego
var (
	sqlAllocHandle    func(handleType SQLSMALLINT, inputHandle SQLHANDLE, outputHandle *SQLHANDLE) SQLRETURN
	sqlFreeHandle     func(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN
	sqlSetEnvAttr     func(env SQLHENV, attribute SQLINTEGER, value uintptr, stringLength SQLINTEGER) SQLRETURN
	sqlDriverConnect  func(dbc SQLHDBC, hwnd uintptr, inConnStr *byte, inConnStrLen SQLSMALLINT, outConnStr *byte, outConnStrMax SQLSMALLINT, outConnStrLen *SQLSMALLINT, driverCompletion SQLUSMALLINT) SQLRETURN
	sqlDisconnect     func(dbc SQLHDBC) SQLRETURN
	sqlSetConnectAttr func(dbc SQLHDBC, attribute SQLINTEGER, value uintptr, stringLength SQLINTEGER) SQLRETURN
	sqlEndTran        func(handleType SQLSMALLINT, handle SQLHANDLE, completionType SQLSMALLINT) SQLRETURN
	sqlPrepare        func(stmt SQLHSTMT, stmtText *byte, textLength SQLINTEGER) SQLRETURN
	sqlNumParams      func(stmt SQLHSTMT, paramCount *SQLSMALLINT) SQLRETURN
	sqlDescribeParam  func(stmt SQLHSTMT, paramNum SQLUSMALLINT, dataType *SQLSMALLINT, paramSize *SQLULEN, decDigits *SQLSMALLINT, nullable *SQLSMALLINT) SQLRETURN
	sqlBindParameter  func(stmt SQLHSTMT, paramNum SQLUSMALLINT, ioType SQLSMALLINT, valueType SQLSMALLINT, paramType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, paramValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlExecute        func(stmt SQLHSTMT) SQLRETURN
	sqlParamData      func(stmt SQLHSTMT, value *uintptr) SQLRETURN
	sqlPutData        func(stmt SQLHSTMT, data uintptr, strLenOrInd SQLLEN) SQLRETURN
	sqlRowCount       func(stmt SQLHSTMT, rowCount *SQLLEN) SQLRETURN
	sqlNumResultCols  func(stmt SQLHSTMT, columnCount *SQLSMALLINT) SQLRETURN
	sqlDescribeCol    func(stmt SQLHSTMT, colNum SQLUSMALLINT, colName *byte, bufferLen SQLSMALLINT, nameLen *SQLSMALLINT, dataType *SQLSMALLINT, colSize *SQLULEN, decDigits *SQLSMALLINT, nullable *SQLSMALLINT) SQLRETURN
	sqlColAttribute   func(stmt SQLHSTMT, colNum SQLUSMALLINT, fieldId SQLUSMALLINT, charAttr uintptr, bufferLen SQLSMALLINT, strLen *SQLSMALLINT, numAttr *SQLLEN) SQLRETURN
	sqlBindCol        func(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, targetValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlGetData        func(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, targetValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlFetchScroll    func(stmt SQLHSTMT, fetchOrientation SQLSMALLINT, fetchOffset SQLLEN) SQLRETURN
	sqlMoreResults    func(stmt SQLHSTMT) SQLRETURN
	sqlGetCursorName  func(stmt SQLHSTMT, cursorName *byte, bufferLen SQLSMALLINT, nameLen *SQLSMALLINT) SQLRETURN
	sqlSetCursorName  func(stmt SQLHSTMT, cursorName *byte, nameLen SQLSMALLINT) SQLRETURN
	sqlCloseCursor    func(stmt SQLHSTMT) SQLRETURN
	sqlFreeStmt       func(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN
	sqlGetDiagRec     func(handleType SQLSMALLINT, handle SQLHANDLE, recNum SQLSMALLINT, sqlState *byte, nativeError *SQLINTEGER, msgText *byte, bufferLen SQLSMALLINT, textLen *SQLSMALLINT) SQLRETURN
)

// getLibraryPath returns the platform-specific ODBC library path.
// The GODBC_LIBRARY_PATH environment variable can override the default path.
func getLibraryPath() string {
	if path := os.Getenv("GODBC_LIBRARY_PATH"); path != "" {
		return path
	}

	switch runtime.GOOS {
	case "windows":
		return "odbc32.dll"
	case "darwin":
		paths := []string{
			"/opt/homebrew/lib/libodbc.2.dylib", // Apple Silicon Homebrew
			"/usr/local/lib/libodbc.2.dylib",    // Intel Homebrew
			"/opt/homebrew/lib/libodbc.dylib",
			"/usr/local/lib/libodbc.dylib",
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		return "libodbc.2.dylib"
	default:
		return "libodbc.so.2"
	}
}

// initODBC loads the ODBC library and registers every entry point this
// package calls. If loading fails, set GODBC_LIBRARY_PATH to specify a custom
// library location.
func initODBC() error {
	initOnce.Do(func() {
		libPath := getLibraryPath()

		odbcLib, initErr = loadODBCLibrary(libPath)
		if initErr != nil {
			initErr = fmt.Errorf("failed to load ODBC library %q: %w (set GODBC_LIBRARY_PATH to override)", libPath, initErr)
			return
		}

		purego.RegisterLibFunc(&sqlAllocHandle, odbcLib, "SQLAllocHandle")
		purego.RegisterLibFunc(&sqlFreeHandle, odbcLib, "SQLFreeHandle")
		purego.RegisterLibFunc(&sqlSetEnvAttr, odbcLib, "SQLSetEnvAttr")
		purego.RegisterLibFunc(&sqlDisconnect, odbcLib, "SQLDisconnect")
		purego.RegisterLibFunc(&sqlSetConnectAttr, odbcLib, "SQLSetConnectAttr")
		purego.RegisterLibFunc(&sqlEndTran, odbcLib, "SQLEndTran")

		// Narrow-character entry points carry an 'A' suffix on Windows only
		suffix := ""
		if runtime.GOOS == "windows" {
			suffix = "A"
		}
		purego.RegisterLibFunc(&sqlDriverConnect, odbcLib, "SQLDriverConnect"+suffix)
		purego.RegisterLibFunc(&sqlPrepare, odbcLib, "SQLPrepare"+suffix)
		purego.RegisterLibFunc(&sqlDescribeCol, odbcLib, "SQLDescribeCol"+suffix)
		purego.RegisterLibFunc(&sqlColAttribute, odbcLib, "SQLColAttribute"+suffix)
		purego.RegisterLibFunc(&sqlGetCursorName, odbcLib, "SQLGetCursorName"+suffix)
		purego.RegisterLibFunc(&sqlSetCursorName, odbcLib, "SQLSetCursorName"+suffix)
		purego.RegisterLibFunc(&sqlGetDiagRec, odbcLib, "SQLGetDiagRec"+suffix)

		purego.RegisterLibFunc(&sqlNumParams, odbcLib, "SQLNumParams")
		purego.RegisterLibFunc(&sqlDescribeParam, odbcLib, "SQLDescribeParam")
		purego.RegisterLibFunc(&sqlBindParameter, odbcLib, "SQLBindParameter")
		purego.RegisterLibFunc(&sqlExecute, odbcLib, "SQLExecute")
		purego.RegisterLibFunc(&sqlParamData, odbcLib, "SQLParamData")
		purego.RegisterLibFunc(&sqlPutData, odbcLib, "SQLPutData")
		purego.RegisterLibFunc(&sqlRowCount, odbcLib, "SQLRowCount")
		purego.RegisterLibFunc(&sqlNumResultCols, odbcLib, "SQLNumResultCols")
		purego.RegisterLibFunc(&sqlBindCol, odbcLib, "SQLBindCol")
		purego.RegisterLibFunc(&sqlGetData, odbcLib, "SQLGetData")
		purego.RegisterLibFunc(&sqlFetchScroll, odbcLib, "SQLFetchScroll")
		purego.RegisterLibFunc(&sqlMoreResults, odbcLib, "SQLMoreResults")
		purego.RegisterLibFunc(&sqlCloseCursor, odbcLib, "SQLCloseCursor")
		purego.RegisterLibFunc(&sqlFreeStmt, odbcLib, "SQLFreeStmt")
	})
	return initErr
}

// NativeAPI returns the API backed by the system driver manager. The library
// is loaded on first use.
func NativeAPI() (API, error) {
	if err := initODBC(); err != nil {
		return nil, err
	}
	return nativeAPI{}, nil
}

// nativeAPI forwards every call to the driver manager loaded by initODBC.
type nativeAPI struct{}

// bufPtr returns the address of the first byte of buf, or 0 for an empty buffer.
func bufPtr(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

// cString returns a NUL-terminated copy of s.
func cString(s string) []byte {
	return append([]byte(s), 0)
}

func (nativeAPI) AllocHandle(handleType SQLSMALLINT, input SQLHANDLE) (SQLHANDLE, SQLRETURN) {
	var out SQLHANDLE
	ret := sqlAllocHandle(handleType, input, &out)
	return out, ret
}

func (nativeAPI) FreeHandle(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN {
	return sqlFreeHandle(handleType, handle)
}

func (nativeAPI) SetEnvAttr(env SQLHENV, attribute SQLINTEGER, value uintptr) SQLRETURN {
	return sqlSetEnvAttr(env, attribute, value, 0)
}

func (nativeAPI) DriverConnect(dbc SQLHDBC, connStr string) SQLRETURN {
	in := cString(connStr)
	out := make([]byte, 1024)
	var outLen SQLSMALLINT
	return sqlDriverConnect(dbc, 0, &in[0], SQLSMALLINT(SQL_NTS), &out[0], SQLSMALLINT(len(out)), &outLen, SQL_DRIVER_NOPROMPT)
}

func (nativeAPI) Disconnect(dbc SQLHDBC) SQLRETURN {
	return sqlDisconnect(dbc)
}

func (nativeAPI) SetConnectAttr(dbc SQLHDBC, attribute SQLINTEGER, value uintptr) SQLRETURN {
	return sqlSetConnectAttr(dbc, attribute, value, 0)
}

func (nativeAPI) EndTran(handleType SQLSMALLINT, handle SQLHANDLE, completionType SQLSMALLINT) SQLRETURN {
	return sqlEndTran(handleType, handle, completionType)
}

func (nativeAPI) Prepare(stmt SQLHSTMT, query string) SQLRETURN {
	q := cString(query)
	return sqlPrepare(stmt, &q[0], SQLINTEGER(SQL_NTS))
}

func (nativeAPI) NumParams(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	var n SQLSMALLINT
	ret := sqlNumParams(stmt, &n)
	return n, ret
}

func (nativeAPI) DescribeParam(stmt SQLHSTMT, param SQLUSMALLINT) (ParamDescription, SQLRETURN) {
	var d ParamDescription
	ret := sqlDescribeParam(stmt, param, &d.SQLType, &d.Size, &d.DecimalDigits, &d.Nullable)
	return d, ret
}

// BindParameter registers b with the driver. Parameters without a buffer are
// transferred at execution time; their position doubles as the token that
// SQLParamData hands back.
func (nativeAPI) BindParameter(stmt SQLHSTMT, param SQLUSMALLINT, b ParamBinding) SQLRETURN {
	value := bufPtr(b.Buffer)
	if b.Buffer == nil {
		value = uintptr(param)
	}
	return sqlBindParameter(stmt, param, b.IOType, b.CType, b.SQLType, b.Size, b.DecimalDigits,
		value, SQLLEN(len(b.Buffer)), b.Indicator)
}

func (nativeAPI) Execute(stmt SQLHSTMT) SQLRETURN {
	return sqlExecute(stmt)
}

func (nativeAPI) ParamData(stmt SQLHSTMT) (SQLUSMALLINT, SQLRETURN) {
	var token uintptr
	ret := sqlParamData(stmt, &token)
	return SQLUSMALLINT(token), ret
}

func (nativeAPI) PutData(stmt SQLHSTMT, data []byte) SQLRETURN {
	return sqlPutData(stmt, bufPtr(data), SQLLEN(len(data)))
}

func (nativeAPI) RowCount(stmt SQLHSTMT) (SQLLEN, SQLRETURN) {
	var n SQLLEN
	ret := sqlRowCount(stmt, &n)
	return n, ret
}

func (nativeAPI) NumResultCols(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	var n SQLSMALLINT
	ret := sqlNumResultCols(stmt, &n)
	return n, ret
}

func (nativeAPI) DescribeCol(stmt SQLHSTMT, col SQLUSMALLINT) (ColumnDescription, SQLRETURN) {
	var d ColumnDescription
	name := make([]byte, maxColumnName)
	var nameLen SQLSMALLINT
	ret := sqlDescribeCol(stmt, col, &name[0], SQLSMALLINT(len(name)), &nameLen,
		&d.SQLType, &d.Size, &d.DecimalDigits, &d.Nullable)
	if nameLen > SQLSMALLINT(len(name)-1) {
		nameLen = SQLSMALLINT(len(name) - 1)
	}
	if nameLen > 0 {
		d.Name = string(name[:nameLen])
	}
	return d, ret
}

func (nativeAPI) ColAttribute(stmt SQLHSTMT, col SQLUSMALLINT, field SQLUSMALLINT) (SQLLEN, SQLRETURN) {
	var num SQLLEN
	var strLen SQLSMALLINT
	ret := sqlColAttribute(stmt, col, field, 0, 0, &strLen, &num)
	return num, ret
}

func (nativeAPI) BindCol(stmt SQLHSTMT, col SQLUSMALLINT, cType SQLSMALLINT, buf []byte, ind *SQLLEN) SQLRETURN {
	return sqlBindCol(stmt, col, cType, bufPtr(buf), SQLLEN(len(buf)), ind)
}

func (nativeAPI) GetData(stmt SQLHSTMT, col SQLUSMALLINT, cType SQLSMALLINT, buf []byte, ind *SQLLEN) SQLRETURN {
	return sqlGetData(stmt, col, cType, bufPtr(buf), SQLLEN(len(buf)), ind)
}

func (nativeAPI) FetchScroll(stmt SQLHSTMT, orientation SQLSMALLINT, offset SQLLEN) SQLRETURN {
	return sqlFetchScroll(stmt, orientation, offset)
}

func (nativeAPI) MoreResults(stmt SQLHSTMT) SQLRETURN {
	return sqlMoreResults(stmt)
}

func (nativeAPI) GetCursorName(stmt SQLHSTMT) (string, SQLRETURN) {
	buf := make([]byte, 256)
	var n SQLSMALLINT
	ret := sqlGetCursorName(stmt, &buf[0], SQLSMALLINT(len(buf)), &n)
	if n > SQLSMALLINT(len(buf)-1) {
		n = SQLSMALLINT(len(buf) - 1)
	}
	if n < 0 {
		n = 0
	}
	return string(buf[:n]), ret
}

func (nativeAPI) SetCursorName(stmt SQLHSTMT, name string) SQLRETURN {
	b := cString(name)
	return sqlSetCursorName(stmt, &b[0], SQLSMALLINT(len(name)))
}

func (nativeAPI) CloseCursor(stmt SQLHSTMT) SQLRETURN {
	return sqlCloseCursor(stmt)
}

func (nativeAPI) FreeStmt(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN {
	return sqlFreeStmt(stmt, option)
}

// Diagnostics retrieves all diagnostic records for a handle
func (nativeAPI) Diagnostics(handleType SQLSMALLINT, handle SQLHANDLE) []DiagRecord {
	var records []DiagRecord
	sqlState := make([]byte, 6)
	message := make([]byte, 1024)

	for i := SQLSMALLINT(1); ; i++ {
		var nativeError SQLINTEGER
		var msgLen SQLSMALLINT
		ret := sqlGetDiagRec(handleType, handle, i, &sqlState[0], &nativeError, &message[0], SQLSMALLINT(len(message)), &msgLen)
		if !IsSuccess(ret) {
			break
		}
		if msgLen > SQLSMALLINT(len(message)-1) {
			msgLen = SQLSMALLINT(len(message) - 1)
		}
		records = append(records, DiagRecord{
			SQLState:    string(sqlState[:5]),
			NativeError: int32(nativeError),
			Message:     string(message[:msgLen]),
		})
	}
	return records
}

var _ API = nativeAPI{}
