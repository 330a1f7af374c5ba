package odbc

// Status is the outcome class of a native call.
type Status int

const (
	// StatusClean means the call succeeded without diagnostics.
	StatusClean Status = iota
	// StatusSoftDiagnostic means the call succeeded and left diagnostics
	// worth reading, such as truncation.
	StatusSoftDiagnostic
	// StatusNoData means there is nothing more: end of rows, no further
	// result sets, or a searched statement that touched no rows.
	StatusNoData
	// StatusNeedMoreData means the driver is waiting for deferred parameter data.
	StatusNeedMoreData
	// StatusHardFailure covers errors, invalid handles and anything unrecognised.
	StatusHardFailure
)

// Classify maps a native return code onto a Status.
func Classify(ret SQLRETURN) Status {
	switch ret {
	case SQL_SUCCESS:
		return StatusClean
	case SQL_SUCCESS_WITH_INFO:
		return StatusSoftDiagnostic
	case SQL_NO_DATA:
		return StatusNoData
	case SQL_NEED_DATA:
		return StatusNeedMoreData
	default:
		return StatusHardFailure
	}
}

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusSoftDiagnostic:
		return "soft-diagnostic"
	case StatusNoData:
		return "no-data"
	case StatusNeedMoreData:
		return "need-more-data"
	default:
		return "hard-failure"
	}
}
