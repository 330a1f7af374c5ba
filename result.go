package odbc

import (
	"database/sql/driver"
	"errors"
)

// Result implements driver.Result for INSERT, UPDATE, DELETE operations
type Result struct {
	rowsAffected int64
	outputParams []any
}

// LastInsertId is not available: identity retrieval is database specific
// and would need SQL this driver does not write.
func (r *Result) LastInsertId() (int64, error) {
	return 0, errors.New("odbc: LastInsertId is not supported")
}

// RowsAffected returns the number of rows affected by the query, or -1 when
// the driver does not report it.
func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// OutputParams returns the values of output parameters after executing a stored procedure.
// The values are returned in the same order as the parameters were bound.
// Each value is a string, or nil for SQL NULL and for input-only parameters.
func (r *Result) OutputParams() []any {
	return r.outputParams
}

// OutputParam returns a single output parameter value by index (0-based).
// Returns nil if the index is out of range or if the parameter was input-only.
func (r *Result) OutputParam(index int) any {
	if index < 0 || index >= len(r.outputParams) {
		return nil
	}
	return r.outputParams[index]
}

// Ensure Result implements driver.Result
var _ driver.Result = (*Result)(nil)
