package odbc

import (
	"fmt"
	"io"
	"sync"
)

// ParamType is the logical type a caller binds a parameter as.
type ParamType int

const (
	// ParamStr is sent as text, or as wide text to wide columns.
	ParamStr ParamType = iota
	// ParamLOB is a large object: bytes, text or an io.Reader streamed in
	// chunks. It is input only.
	ParamLOB
	// ParamNull is always SQL NULL.
	ParamNull
	// ParamInt is an integer rendered as decimal text.
	ParamInt
	// ParamBool is sent as "1" or "0".
	ParamBool
	// ParamStmt is a nested statement handle. It cannot be bound.
	ParamStmt
)

// ParamPhase identifies a parameter lifecycle event.
type ParamPhase int

const (
	// PhaseAlloc binds the parameter to its placeholder.
	PhaseAlloc ParamPhase = iota
	// PhaseExecPre loads the current value before Execute.
	PhaseExecPre
	// PhaseExecPost copies output values back into Param.Value.
	PhaseExecPost
	// PhaseFree releases the binding.
	PhaseFree
)

// Param is a statement parameter as seen by the caller.
//
// Value may be nil, a string, a []byte, an io.Reader (for ParamLOB) or any
// value renderText understands. After PhaseExecPost, parameters with an
// output buffer hold the returned text in Value (nil for SQL NULL) and its
// byte length in Length.
type Param struct {
	// Position is the 1-based placeholder number.
	Position    int
	Type        ParamType
	InputOutput bool
	// MaxLength is the largest value the statement may write back. Zero
	// means the parameter is input only.
	MaxLength int
	Value     any
	Length    int

	desc *paramDesc
}

// paramDesc is the binding registered with the driver for one parameter.
type paramDesc struct {
	direction SQLSMALLINT
	sqlType   SQLSMALLINT
	cType     SQLSMALLINT
	size      SQLULEN
	digits    SQLSMALLINT
	wide      bool

	// out is the output buffer, nil for pure input. outLen bytes of it are
	// registered; the rest is room for a terminator.
	out    []byte
	outLen int

	// ind is written by the driver, so it has to live as long as the binding.
	ind SQLLEN

	// pending holds the rendered value awaiting deferred transfer.
	pending []byte
	stream  io.Reader
	// transcoded is set when pending already holds wide text.
	transcoded bool
}

const (
	// fallbackPrecision and fallbackScale describe parameters on drivers
	// that cannot describe them.
	fallbackPrecision = 4000
	fallbackScale     = 5

	// streamChunkSize is the largest piece pushed with SQLPutData.
	streamChunkSize = 8192
)

var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, streamChunkSize)
		return &b
	},
}

// ParamEvent runs one lifecycle phase for p.
func (s *Statement) ParamEvent(phase ParamPhase, p *Param) error {
	switch phase {
	case PhaseAlloc:
		return s.BindParam(p)
	case PhaseExecPre:
		if err := s.begin(); err != nil {
			return err
		}
		return s.execPre(p)
	case PhaseExecPost:
		// No native call is made, so the execution's diagnostic stays readable.
		if s.closed {
			return ErrStatementClosed
		}
		s.execPost(p)
		return nil
	case PhaseFree:
		s.freeParam(p)
		return nil
	default:
		return fmt.Errorf("unknown parameter phase %d", phase)
	}
}

// BindParam registers p with the driver.
func (s *Statement) BindParam(p *Param) error {
	if err := s.begin(); err != nil {
		return err
	}
	if p.Type == ParamStmt {
		return &Error{SQLState: SQLStateFeatureNotImplemented, Message: "statement handles cannot be bound as parameters"}
	}
	if p.Position < 1 {
		return &Error{SQLState: SQLStateInvalidDescriptorIndex, Message: fmt.Sprintf("invalid parameter position %d", p.Position)}
	}

	d := &paramDesc{}
	desc, ret := s.api.DescribeParam(s.handle, SQLUSMALLINT(p.Position))
	if IsSuccess(ret) {
		d.sqlType, d.size, d.digits = desc.SQLType, desc.Size, desc.DecimalDigits
	} else {
		// Simple file-based drivers cannot describe parameters.
		d.sqlType = SQL_LONGVARCHAR
		if p.Type == ParamLOB {
			d.sqlType = SQL_LONGVARBINARY
		}
		d.size, d.digits = fallbackPrecision, fallbackScale
		if p.MaxLength > fallbackPrecision {
			d.size = SQLULEN(p.MaxLength)
		}
	}

	d.cType = SQL_C_CHAR
	if isBinaryType(d.sqlType) {
		d.cType = SQL_C_BINARY
	}
	d.wide = s.isWide(d.sqlType)
	if d.wide {
		// Transcoding happens here, not in the driver manager.
		d.cType = SQL_C_BINARY
	}

	switch {
	case p.InputOutput:
		d.direction = SQL_PARAM_INPUT_OUTPUT
	case p.MaxLength <= 0:
		d.direction = SQL_PARAM_INPUT
	default:
		d.direction = SQL_PARAM_OUTPUT
	}

	if p.Type == ParamLOB && d.direction != SQL_PARAM_INPUT {
		return fmt.Errorf("parameter %d: %w", p.Position, ErrLOBOutput)
	}

	if d.direction != SQL_PARAM_INPUT && p.Type != ParamNull {
		n := max(p.MaxLength, int(d.size))
		term := 1
		if d.wide {
			n *= 2
			term = 2
		}
		d.outLen = n
		d.out = make([]byte, n+term)
	}

	binding := ParamBinding{
		IOType:        d.direction,
		CType:         d.cType,
		SQLType:       d.sqlType,
		Size:          d.size,
		DecimalDigits: d.digits,
		Indicator:     &d.ind,
	}
	if d.out != nil {
		binding.Buffer = d.out[:d.outLen]
	}
	if err := s.check("SQLBindParameter", s.api.BindParameter(s.handle, SQLUSMALLINT(p.Position), binding)); err != nil {
		return err
	}

	// The driver now points at d; any earlier binding here is dead.
	if old, ok := s.params[p.Position]; ok && old != p {
		old.desc = nil
	}
	p.desc = d
	s.params[p.Position] = p
	return nil
}

// execPre loads p's current value into its binding.
func (s *Statement) execPre(p *Param) error {
	d := p.desc
	if d == nil {
		return fmt.Errorf("parameter %d is not bound", p.Position)
	}
	d.pending, d.stream, d.transcoded = nil, nil, false

	if r, ok := p.Value.(io.Reader); ok && (p.Type == ParamLOB || p.Type == ParamStr) {
		return s.execPreStream(p.Position, d, r)
	}

	switch {
	case p.Type == ParamLOB && p.Value != nil:
		data, err := renderBytes(p.Value)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", p.Position, err)
		}
		s.deferData(d, data)
	case p.Value == nil || p.Type == ParamNull:
		d.ind = SQL_NULL_DATA
	default:
		text, err := renderText(p.Value)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", p.Position, err)
		}
		if d.out == nil {
			s.deferData(d, text)
			return nil
		}
		data := text
		if d.wide {
			if wide, conv := s.toWide(text); conv == ConversionOK {
				data = wide
			} else if conv == ConversionFailed {
				s.logger.Warn("odbc: sending parameter untranscoded", "position", p.Position)
			}
		}
		if len(data) > d.outLen {
			return fmt.Errorf("parameter %d: %d bytes into %d: %w", p.Position, len(data), d.outLen, ErrParamTooLarge)
		}
		d.ind = SQLLEN(copy(d.out, data))
	}
	return nil
}

// deferData holds data for transfer at execution time. Wide data is
// transcoded now so the length hint counts the bytes PutData will send.
func (s *Statement) deferData(d *paramDesc, data []byte) {
	d.pending = data
	if d.wide {
		if wide, conv := s.toWide(data); conv == ConversionOK {
			d.pending = append([]byte(nil), wide...)
			d.transcoded = true
		}
	}
	d.ind = SQL_LEN_DATA_AT_EXEC(int64(len(d.pending)))
}

func (s *Statement) execPreStream(pos int, d *paramDesc, r io.Reader) error {
	size, known := streamSize(r)
	if d.out == nil {
		d.stream = r
		if !known {
			size = 0
		}
		d.ind = SQL_LEN_DATA_AT_EXEC(size)
		return nil
	}
	if !known {
		d.ind = 0
		return nil
	}

	n := 0
	for n < d.outLen {
		amount := min(d.outLen-n, streamChunkSize)
		m, err := r.Read(d.out[n : n+amount])
		n += m
		if err == io.EOF || (m == 0 && err == nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("parameter %d: reading stream: %w", pos, err)
		}
	}
	d.ind = SQLLEN(n)
	return nil
}

// execPost copies the driver's output back into p.Value.
func (s *Statement) execPost(p *Param) {
	d := p.desc
	if d == nil || d.out == nil {
		return
	}

	switch {
	case d.ind == SQL_NULL_DATA:
		p.Value, p.Length = nil, 0
	case d.ind >= 0:
		raw := d.out[:min(int(d.ind), d.outLen)]
		data := raw
		if d.wide {
			if text, conv := s.fromWide(raw); conv == ConversionOK {
				data = text
			} else if conv == ConversionFailed {
				s.logger.Warn("odbc: returning output parameter untranscoded", "position", p.Position)
			}
		}
		p.Value, p.Length = string(data), len(data)
	default:
		p.Value, p.Length = nil, 0
	}
}

// freeParam drops p's binding. The driver may still reference the buffers,
// so they stay reachable until every parameter is released and the driver
// forgets them.
func (s *Statement) freeParam(p *Param) {
	if p.desc == nil {
		return
	}
	if s.params[p.Position] == p {
		delete(s.params, p.Position)
	}
	s.retired = append(s.retired, p.desc)
	p.desc = nil

	if len(s.params) == 0 && !s.closed {
		s.api.FreeStmt(s.handle, SQL_RESET_PARAMS)
		s.retired = nil
	}
}

// supplyParamData answers SQL_NEED_DATA until the driver has every deferred
// value, returning the final status of the execution.
func (s *Statement) supplyParamData() (SQLRETURN, error) {
	for {
		pos, ret := s.api.ParamData(s.handle)
		if Classify(ret) != StatusNeedMoreData {
			return ret, nil
		}

		p, ok := s.params[int(pos)]
		if !ok || p.desc == nil {
			return ret, fmt.Errorf("parameter %d: %w", pos, errUnknownParam)
		}
		if err := s.putParamData(p); err != nil {
			return ret, err
		}
	}
}

func (s *Statement) putParamData(p *Param) error {
	d := p.desc
	if d.stream != nil {
		return s.putStream(p.Position, d.stream)
	}

	data := d.pending
	if data == nil {
		var err error
		if data, err = renderText(p.Value); err != nil {
			return fmt.Errorf("parameter %d: %w", p.Position, err)
		}
	}
	if d.wide && !d.transcoded {
		wide, conv := s.toWide(data)
		switch conv {
		case ConversionOK:
			data = wide
		case ConversionFailed:
			return fmt.Errorf("parameter %d: %w", p.Position, errConversion)
		}
	}
	return s.check("SQLPutData", s.api.PutData(s.handle, data))
}

// putStream pushes r to the driver in chunks. Stream data is sent as is.
func (s *Statement) putStream(pos int, r io.Reader) error {
	bp := chunkPool.Get().(*[]byte)
	defer chunkPool.Put(bp)
	buf := *bp

	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if err := s.check("SQLPutData", s.api.PutData(s.handle, buf[:n])); err != nil {
				return err
			}
			total += int64(n)
		}
		if err == io.EOF || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("parameter %d: reading stream: %w", pos, err)
		}
	}
	s.logger.Debug("odbc: streamed parameter", "position", pos, "bytes", total)
	return nil
}

var errConversion = &Error{SQLState: SQLStateGeneralError, Message: "error converting input string"}
