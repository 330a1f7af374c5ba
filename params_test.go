package odbc

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boundParam binds p through the alloc phase and fails the test on error.
func boundParam(t *testing.T, st *Statement, p *Param) *Param {
	t.Helper()
	require.NoError(t, st.ParamEvent(PhaseAlloc, p))
	return p
}

func TestBindParamUsesDescription(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_VARCHAR, Size: 50}
	st := newTestStatement(f)

	boundParam(t, st, &Param{Position: 1, Type: ParamStr})

	b := f.bindings[1]
	assert.Equal(t, SQL_PARAM_INPUT, b.IOType)
	assert.Equal(t, SQL_C_CHAR, b.CType)
	assert.Equal(t, SQL_VARCHAR, b.SQLType)
	assert.EqualValues(t, 50, b.Size)
	assert.Nil(t, b.Buffer, "input parameters are sent at execution")
	assert.NotNil(t, b.Indicator)
}

func TestBindParamFallback(t *testing.T) {
	tests := []struct {
		name      string
		param     Param
		sqlType   SQLSMALLINT
		cType     SQLSMALLINT
		size      SQLULEN
		direction SQLSMALLINT
	}{
		{"text", Param{Position: 1, Type: ParamStr}, SQL_LONGVARCHAR, SQL_C_CHAR, fallbackPrecision, SQL_PARAM_INPUT},
		{"lob", Param{Position: 1, Type: ParamLOB}, SQL_LONGVARBINARY, SQL_C_BINARY, fallbackPrecision, SQL_PARAM_INPUT},
		{"large output", Param{Position: 1, Type: ParamStr, MaxLength: 9000}, SQL_LONGVARCHAR, SQL_C_CHAR, 9000, SQL_PARAM_OUTPUT},
		{"input output", Param{Position: 1, Type: ParamStr, InputOutput: true, MaxLength: 10}, SQL_LONGVARCHAR, SQL_C_CHAR, fallbackPrecision, SQL_PARAM_INPUT_OUTPUT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAPI()
			st := newTestStatement(f)
			p := tt.param
			boundParam(t, st, &p)

			b := f.bindings[1]
			assert.Equal(t, tt.sqlType, b.SQLType)
			assert.Equal(t, tt.cType, b.CType)
			assert.Equal(t, tt.size, b.Size)
			assert.EqualValues(t, fallbackScale, b.DecimalDigits)
			assert.Equal(t, tt.direction, b.IOType)
		})
	}
}

func TestBindParamOutputBuffer(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_VARCHAR, Size: 20}
	f.paramDescs[2] = ParamDescription{SQLType: SQL_WVARCHAR, Size: 20}
	st := newTestStatement(f, WithAssumeUTF8(true))

	boundParam(t, st, &Param{Position: 1, MaxLength: 100})
	boundParam(t, st, &Param{Position: 2, MaxLength: 8})

	assert.Len(t, f.bindings[1].Buffer, 100, "max of the requested length and the column size")
	assert.Len(t, f.bindings[2].Buffer, 40, "wide buffers hold two bytes per character")
	assert.Equal(t, SQL_C_BINARY, f.bindings[2].CType, "wide parameters are transcoded here")
}

func TestBindParamRejects(t *testing.T) {
	f := newFakeAPI()
	st := newTestStatement(f)

	err := st.BindParam(&Param{Position: 1, Type: ParamLOB, MaxLength: 10})
	assert.ErrorIs(t, err, ErrLOBOutput)

	err = st.BindParam(&Param{Position: 1, Type: ParamLOB, InputOutput: true})
	assert.ErrorIs(t, err, ErrLOBOutput)

	err = st.BindParam(&Param{Position: 1, Type: ParamStmt})
	assert.Equal(t, SQLStateFeatureNotImplemented, sqlStateOf(err))

	err = st.BindParam(&Param{Position: 0})
	assert.Equal(t, SQLStateInvalidDescriptorIndex, sqlStateOf(err))

	assert.False(t, f.called("BindParameter"))
}

func TestBindParamDriverError(t *testing.T) {
	f := newFakeAPI()
	f.bindRet = SQL_ERROR
	f.diag = []DiagRecord{{SQLState: "HY004", Message: "Invalid SQL data type"}}
	st := newTestStatement(f)

	p := &Param{Position: 1}
	err := st.BindParam(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQLBindParameter")
	assert.Nil(t, p.desc)
	require.NotNil(t, st.Diagnostic())
	assert.Equal(t, "HY004", st.Diagnostic().Records[0].SQLState)
}

func TestExecPreIndicators(t *testing.T) {
	f := newFakeAPI()
	st := newTestStatement(f)

	text := boundParam(t, st, &Param{Position: 1, Value: "hello"})
	null := boundParam(t, st, &Param{Position: 2, Type: ParamNull})
	num := boundParam(t, st, &Param{Position: 3, Type: ParamInt, Value: int64(-42)})
	lob := boundParam(t, st, &Param{Position: 4, Type: ParamLOB, Value: []byte{1, 2, 3}})
	nilStr := boundParam(t, st, &Param{Position: 5})

	for _, p := range []*Param{text, null, num, lob, nilStr} {
		require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	}

	assert.Equal(t, SQL_LEN_DATA_AT_EXEC(5), *f.bindings[1].Indicator)
	assert.Equal(t, SQL_NULL_DATA, *f.bindings[2].Indicator)
	assert.Equal(t, SQL_LEN_DATA_AT_EXEC(3), *f.bindings[3].Indicator)
	assert.Equal(t, SQL_LEN_DATA_AT_EXEC(3), *f.bindings[4].Indicator)
	assert.Equal(t, SQL_NULL_DATA, *f.bindings[5].Indicator)
}

func TestExecPreUnbound(t *testing.T) {
	st := newTestStatement(newFakeAPI())
	err := st.ParamEvent(PhaseExecPre, &Param{Position: 1, Value: "x"})
	assert.ErrorContains(t, err, "not bound")
}

func TestExecuteSuppliesDeferredData(t *testing.T) {
	f := newFakeAPI()
	f.needData = []SQLUSMALLINT{1, 2, 3}
	st := newTestStatement(f)

	params := []*Param{
		boundParam(t, st, &Param{Position: 1, Value: "hello"}),
		boundParam(t, st, &Param{Position: 2, Type: ParamInt, Value: int64(42)}),
		boundParam(t, st, &Param{Position: 3, Type: ParamLOB, Value: []byte{0, 0xff}}),
	}
	for _, p := range params {
		require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	}

	_, err := st.Execute()
	require.NoError(t, err)

	assert.Equal(t, [][]byte{[]byte("hello")}, f.puts[1])
	assert.Equal(t, [][]byte{[]byte("42")}, f.puts[2])
	assert.Equal(t, [][]byte{{0, 0xff}}, f.puts[3])
	assert.Equal(t, 4, f.count("ParamData"))
}

func TestExecuteStreamsInChunks(t *testing.T) {
	for _, size := range []int{0, 1, streamChunkSize, streamChunkSize + 1, 20000, 3*streamChunkSize + 17} {
		f := newFakeAPI()
		f.needData = []SQLUSMALLINT{1}
		st := newTestStatement(f)

		data := bytes.Repeat([]byte{0xAB}, size)
		p := boundParam(t, st, &Param{Position: 1, Type: ParamLOB, Value: bytes.NewReader(data)})
		require.NoError(t, st.ParamEvent(PhaseExecPre, p))
		assert.Equal(t, SQL_LEN_DATA_AT_EXEC(int64(size)), *f.bindings[1].Indicator)

		_, err := st.Execute()
		require.NoError(t, err)

		var got []byte
		for _, chunk := range f.puts[1] {
			assert.LessOrEqual(t, len(chunk), streamChunkSize)
			assert.NotEmpty(t, chunk)
			got = append(got, chunk...)
		}
		assert.Equal(t, size, len(got), "size %d", size)
		assert.Equal(t, (size+streamChunkSize-1)/streamChunkSize, len(f.puts[1]))
	}
}

func TestExecuteStreamWithoutSize(t *testing.T) {
	f := newFakeAPI()
	f.needData = []SQLUSMALLINT{1}
	st := newTestStatement(f)

	data := bytes.Repeat([]byte("z"), 10000)
	p := boundParam(t, st, &Param{Position: 1, Type: ParamLOB, Value: io.MultiReader(bytes.NewReader(data))})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	assert.Equal(t, SQL_LEN_DATA_AT_EXEC(0), *f.bindings[1].Indicator)

	_, err := st.Execute()
	require.NoError(t, err)
	assert.Equal(t, data, bytes.Join(f.puts[1], nil))
}

func TestExecuteStreamReadErrorAborts(t *testing.T) {
	f := newFakeAPI()
	f.needData = []SQLUSMALLINT{1}
	st := newTestStatement(f)

	p := boundParam(t, st, &Param{Position: 1, Type: ParamLOB, Value: errReader{}})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))

	_, err := st.Execute()
	assert.ErrorContains(t, err, "broken stream")
	assert.True(t, f.called("CloseCursor"))
}

func TestExecutePutDataFailure(t *testing.T) {
	f := newFakeAPI()
	f.needData = []SQLUSMALLINT{1}
	f.putRet = SQL_ERROR
	f.diag = []DiagRecord{{SQLState: "HY019", Message: "Non-character and non-binary data sent in pieces"}}
	st := newTestStatement(f)

	p := boundParam(t, st, &Param{Position: 1, Value: "x"})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))

	_, err := st.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQLPutData")
	assert.Equal(t, "HY019", sqlStateOf(err))
}

func TestExecuteUnknownParameter(t *testing.T) {
	f := newFakeAPI()
	f.needData = []SQLUSMALLINT{9}
	st := newTestStatement(f)

	_, err := st.Execute()
	assert.ErrorIs(t, err, errUnknownParam)
	assert.True(t, f.called("CloseCursor"))
}

func TestExecuteWideDeferredData(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_WLONGVARCHAR, Size: 0}
	f.needData = []SQLUSMALLINT{1}
	st := newTestStatement(f, WithAssumeUTF8(true))

	p := boundParam(t, st, &Param{Position: 1, Value: "héllo"})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	assert.Equal(t, SQL_LEN_DATA_AT_EXEC(int64(len(utf16le("héllo")))), *f.bindings[1].Indicator, "length of the UTF-16 bytes sent")

	_, err := st.Execute()
	require.NoError(t, err)
	assert.Equal(t, utf16le("héllo"), bytes.Join(f.puts[1], nil))
}

func TestExecuteWideDeferredLOB(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_WLONGVARCHAR, Size: 0}
	f.needData = []SQLUSMALLINT{1}
	st := newTestStatement(f, WithAssumeUTF8(true))

	p := boundParam(t, st, &Param{Position: 1, Type: ParamLOB, Value: []byte("größe")})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	assert.Equal(t, SQL_LEN_DATA_AT_EXEC(10), *f.bindings[1].Indicator)

	_, err := st.Execute()
	require.NoError(t, err)
	assert.Equal(t, utf16le("größe"), bytes.Join(f.puts[1], nil))
}

func TestExecuteWideConversionFailure(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_WVARCHAR, Size: 10}
	f.needData = []SQLUSMALLINT{1}
	st := newTestStatement(f, WithAssumeUTF8(true))

	p := boundParam(t, st, &Param{Position: 1, Value: []byte{0xff, 0xfe}})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))

	_, err := st.Execute()
	assert.ErrorIs(t, err, errConversion)
	assert.Empty(t, f.puts[1])
}

func TestOutputParameter(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_VARCHAR, Size: 10}
	f.outputs[1] = []byte("result")
	st := newTestStatement(f)

	p := boundParam(t, st, &Param{Position: 1, MaxLength: 10})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	_, err := st.Execute()
	require.NoError(t, err)
	require.NoError(t, st.ParamEvent(PhaseExecPost, p))

	assert.Equal(t, "result", p.Value)
	assert.Equal(t, 6, p.Length)
}

func TestOutputParameterNullAndTruncated(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_VARCHAR, Size: 4}
	f.paramDescs[2] = ParamDescription{SQLType: SQL_VARCHAR, Size: 4}
	f.outputs[1] = nil
	f.outputs[2] = []byte("too long for it")
	st := newTestStatement(f)

	p1 := boundParam(t, st, &Param{Position: 1, MaxLength: 4, Value: "ignored"})
	p2 := boundParam(t, st, &Param{Position: 2, MaxLength: 4})
	_, err := st.Execute()
	require.NoError(t, err)

	require.NoError(t, st.ParamEvent(PhaseExecPost, p1))
	require.NoError(t, st.ParamEvent(PhaseExecPost, p2))
	assert.Nil(t, p1.Value)
	assert.Equal(t, "too ", p2.Value, "clamped to the buffer")
}

func TestExecPostKeepsDiagnostic(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_VARCHAR, Size: 10}
	f.outputs[1] = []byte("ok")
	f.execRets = []SQLRETURN{SQL_SUCCESS_WITH_INFO}
	f.diag = []DiagRecord{{SQLState: "01004", Message: "string data, right truncated"}}
	st := newTestStatement(f)

	p := boundParam(t, st, &Param{Position: 1, MaxLength: 10})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	_, err := st.Execute()
	require.NoError(t, err)
	require.NoError(t, st.ParamEvent(PhaseExecPost, p))

	assert.Equal(t, "ok", p.Value)
	require.NotNil(t, st.Diagnostic())
	assert.Equal(t, "SQLExecute", st.Diagnostic().Op)
	assert.Equal(t, StatusSoftDiagnostic, st.Diagnostic().Status())
}

func TestInputOutputParameter(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_VARCHAR, Size: 8}
	st := newTestStatement(f)

	p := boundParam(t, st, &Param{Position: 1, InputOutput: true, MaxLength: 8, Value: "abc"})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	assert.EqualValues(t, 3, *f.bindings[1].Indicator)
	assert.Equal(t, []byte("abc"), f.bindings[1].Buffer[:3])

	p.Value = "far too long"
	err := st.ParamEvent(PhaseExecPre, p)
	assert.ErrorIs(t, err, ErrParamTooLarge)
	assert.True(t, IsDataTruncation(err))
}

func TestWideOutputParameter(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_WVARCHAR, Size: 10}
	f.outputs[1] = utf16le("naïve")
	st := newTestStatement(f, WithAssumeUTF8(true))

	p := boundParam(t, st, &Param{Position: 1, InputOutput: true, MaxLength: 10, Value: "ab"})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	assert.Equal(t, utf16le("ab"), f.bindings[1].Buffer[:4])

	_, err := st.Execute()
	require.NoError(t, err)
	require.NoError(t, st.ParamEvent(PhaseExecPost, p))
	assert.Equal(t, "naïve", p.Value)
	assert.Equal(t, len("naïve"), p.Length)
}

func TestOutputStreamIsBoundedRead(t *testing.T) {
	f := newFakeAPI()
	f.paramDescs[1] = ParamDescription{SQLType: SQL_VARCHAR, Size: 5}
	st := newTestStatement(f)

	p := boundParam(t, st, &Param{Position: 1, InputOutput: true, MaxLength: 5, Value: bytes.NewReader([]byte("0123456789"))})
	require.NoError(t, st.ParamEvent(PhaseExecPre, p))
	assert.EqualValues(t, 5, *f.bindings[1].Indicator)
	assert.Equal(t, []byte("01234"), f.bindings[1].Buffer)
}

func TestRebindRetiresOldBinding(t *testing.T) {
	f := newFakeAPI()
	st := newTestStatement(f)

	old := boundParam(t, st, &Param{Position: 1, Value: "a"})
	repl := boundParam(t, st, &Param{Position: 1, Value: "b"})

	assert.Nil(t, old.desc)
	assert.NotNil(t, repl.desc)
	assert.Same(t, repl, st.params[1])
}

func TestFreeParamResetsWhenLastIsReleased(t *testing.T) {
	f := newFakeAPI()
	st := newTestStatement(f)

	p1 := boundParam(t, st, &Param{Position: 1, Value: "a"})
	p2 := boundParam(t, st, &Param{Position: 2, Value: "b"})

	require.NoError(t, st.ParamEvent(PhaseFree, p1))
	assert.NotContains(t, f.freeStmt, SQL_RESET_PARAMS)
	assert.Len(t, st.retired, 1, "buffers outlive the binding")

	require.NoError(t, st.ParamEvent(PhaseFree, p2))
	assert.Contains(t, f.freeStmt, SQL_RESET_PARAMS)
	assert.Empty(t, st.retired)
	assert.Nil(t, p2.desc)

	// Freeing twice is harmless.
	require.NoError(t, st.ParamEvent(PhaseFree, p2))
}

func TestParamEventUnknownPhase(t *testing.T) {
	st := newTestStatement(newFakeAPI())
	err := st.ParamEvent(ParamPhase(99), &Param{Position: 1})
	assert.Error(t, err)
}

func TestParamEventAfterClose(t *testing.T) {
	st := newTestStatement(newFakeAPI())
	require.NoError(t, st.Close())
	err := st.ParamEvent(PhaseAlloc, &Param{Position: 1})
	assert.True(t, errors.Is(err, ErrStatementClosed))
	err = st.ParamEvent(PhaseExecPost, &Param{Position: 1})
	assert.True(t, errors.Is(err, ErrStatementClosed))
}
