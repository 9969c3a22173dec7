package flight

import (
	"errors"

	"flightcalc/internal/aviapages"
	"flightcalc/internal/query"
)

// Error kinds recorded in history and returned by the API.
const (
	KindInvalidQuery = "InvalidQuery"
	KindCountOrder   = "CountOrder"
	KindNotFound     = "NotFound"
	KindCalc         = "CalcError"
	KindConnection   = "Connection"
	KindInternal     = "Internal"
)

// ErrorKind classifies err. It returns "" for a nil error.
func ErrorKind(err error) string {
	var (
		nf *aviapages.NotFoundError
		ce *aviapages.CalcError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, query.ErrInvalidQuery):
		return KindInvalidQuery
	case errors.Is(err, query.ErrCountOrder):
		return KindCountOrder
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &ce):
		return KindCalc
	case errors.Is(err, aviapages.ErrConnection):
		return KindConnection
	}
	return KindInternal
}

// UserMessage returns the text a user should see for err. Internal
// failures are not echoed back.
func UserMessage(err error) string {
	switch ErrorKind(err) {
	case KindInvalidQuery:
		return query.ErrInvalidQuery.Error()
	case KindCountOrder:
		return query.ErrCountOrder.Error()
	case KindNotFound:
		var nf *aviapages.NotFoundError
		errors.As(err, &nf)
		return nf.Error()
	case KindCalc:
		var ce *aviapages.CalcError
		errors.As(err, &ce)
		return ce.Error()
	case KindConnection:
		return aviapages.ErrConnection.Error()
	}
	return "Internal error"
}
