package odbc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
)

// maxParameters limits the number of parameters to prevent unbounded memory allocation.
const maxParameters = 10000

// Stmt implements driver.Stmt for prepared statements
type Stmt struct {
	conn     *Conn
	st       *Statement
	query    string
	numInput int
	mu       sync.Mutex
	closed   bool

	// params is indexed by position-1. A parameter is re-bound only when
	// its type, direction or size changes.
	params []*Param
	// outs holds the sql.Out destinations of the current execution.
	outs map[int]sql.Out
}

// Close closes the statement
func (s *Stmt) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.params = nil
	return s.st.Close()
}

// NumInput returns the number of placeholder parameters
func (s *Stmt) NumInput() int {
	return s.numInput
}

// Exec executes a prepared statement (deprecated, use ExecContext)
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

// ExecContext executes a prepared statement with context. All result sets
// are drained so output parameters are final when it returns.
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, driver.ErrBadConn
	}

	rowCount, err := s.execute(args)
	if err != nil {
		return nil, err
	}

	for {
		more, err := s.st.NextResultSet()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	outputs, err := s.collectOutputs(len(args))
	if err != nil {
		return nil, err
	}
	return &Result{rowsAffected: rowCount, outputParams: outputs}, nil
}

// Query executes a prepared query (deprecated, use QueryContext)
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

// QueryContext executes a prepared query with context
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, driver.ErrBadConn
	}

	if _, err := s.execute(args); err != nil {
		return nil, err
	}
	return newRows(s, s.st)
}

// execute binds args, loads their values and runs the statement.
func (s *Stmt) execute(args []driver.NamedValue) (int64, error) {
	s.outs = nil
	for _, arg := range args {
		p, err := s.bindArg(arg)
		if err != nil {
			return 0, err
		}
		if err := s.st.ParamEvent(PhaseExecPre, p); err != nil {
			return 0, err
		}
	}
	return s.st.Execute()
}

// bindArg maps one argument onto its Param, binding it if the binding it
// needs differs from the current one.
func (s *Stmt) bindArg(arg driver.NamedValue) (*Param, error) {
	if arg.Ordinal < 1 {
		return nil, fmt.Errorf("invalid parameter number %d: must be positive", arg.Ordinal)
	}
	if arg.Ordinal > maxParameters {
		return nil, fmt.Errorf("parameter number %d exceeds maximum %d", arg.Ordinal, maxParameters)
	}

	want := paramFor(arg)
	if out, ok := arg.Value.(sql.Out); ok {
		if s.outs == nil {
			s.outs = make(map[int]sql.Out)
		}
		s.outs[arg.Ordinal] = out
	}

	for len(s.params) < arg.Ordinal {
		s.params = append(s.params, nil)
	}
	cur := s.params[arg.Ordinal-1]
	if cur != nil && cur.Type == want.Type && cur.InputOutput == want.InputOutput && cur.MaxLength == want.MaxLength {
		cur.Value = want.Value
		return cur, nil
	}

	if err := s.st.BindParam(want); err != nil {
		return nil, err
	}
	s.params[arg.Ordinal-1] = want
	return want, nil
}

// paramFor derives the parameter binding for a driver argument.
func paramFor(arg driver.NamedValue) *Param {
	p := &Param{Position: arg.Ordinal, Type: ParamStr, Value: arg.Value}
	switch v := arg.Value.(type) {
	case nil:
		p.Type = ParamNull
	case io.Reader, []byte:
		p.Type = ParamLOB
	case bool:
		p.Type = ParamBool
	case int64:
		p.Type = ParamInt
	case OutputParam:
		outputParam(p, v)
	case *OutputParam:
		outputParam(p, *v)
	case sql.Out:
		p.InputOutput = v.In
		p.MaxLength = defaultOutputSize
		p.Value = nil
		if v.In {
			p.Value = derefOut(v.Dest)
		}
	}
	return p
}

func outputParam(p *Param, op OutputParam) {
	p.MaxLength = op.Size
	if p.MaxLength <= 0 {
		p.MaxLength = defaultOutputSize
	}
	switch op.Direction {
	case ParamInputOutput:
		p.InputOutput = true
		p.Value = op.Value
	case ParamOutput:
		p.Value = nil
	default:
		p.MaxLength = 0
		p.Value = op.Value
	}
}

// collectOutputs runs PhaseExecPost and returns the output values by
// position, filling any sql.Out destinations.
func (s *Stmt) collectOutputs(n int) ([]any, error) {
	var outputs []any
	for i, p := range s.params {
		if p == nil || i >= n {
			continue
		}
		if err := s.st.ParamEvent(PhaseExecPost, p); err != nil {
			return nil, err
		}
		if p.MaxLength <= 0 && !p.InputOutput {
			continue
		}
		if outputs == nil {
			outputs = make([]any, n)
		}
		outputs[i] = p.Value
		if out, ok := s.outs[p.Position]; ok {
			if err := assignOut(out.Dest, p.Value); err != nil {
				return nil, fmt.Errorf("parameter %d: %w", p.Position, err)
			}
		}
	}
	return outputs, nil
}

func derefOut(dest any) any {
	switch d := dest.(type) {
	case *string:
		return *d
	case *[]byte:
		return *d
	case *sql.NullString:
		if !d.Valid {
			return nil
		}
		return d.String
	case *any:
		return *d
	}
	return nil
}

func assignOut(dest any, value any) error {
	switch d := dest.(type) {
	case *string:
		if value == nil {
			*d = ""
			return nil
		}
		*d = value.(string)
	case *[]byte:
		if value == nil {
			*d = nil
			return nil
		}
		*d = []byte(value.(string))
	case *sql.NullString:
		if value == nil {
			*d = sql.NullString{}
			return nil
		}
		*d = sql.NullString{String: value.(string), Valid: true}
	case *any:
		*d = value
	default:
		return fmt.Errorf("unsupported sql.Out destination %T", dest)
	}
	return nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{
			Ordinal: i + 1,
			Value:   arg,
		}
	}
	return namedArgs
}

// Ensure Stmt implements the required interfaces
var (
	_ driver.Stmt             = (*Stmt)(nil)
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)
