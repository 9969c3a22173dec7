package query

// Kind identifies a class of query parse failure.
type Kind int

const (
	// KindInvalidQuery is a structural failure inside a single line.
	KindInvalidQuery Kind = iota + 1
	// KindCountOrder is a mix of numbered and unnumbered lines in a batch.
	KindCountOrder
)

// Messages shown to users. They are part of the bot's public surface and
// must not change.
const (
	msgInvalidQuery = "Invalid query"
	msgCountOrder   = "Each line should be started with count number"
)

// String returns the user-facing message for the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidQuery:
		return msgInvalidQuery
	case KindCountOrder:
		return msgCountOrder
	}
	return "unknown query error"
}

// Error is returned by the parser. The message depends only on Kind, never
// on which field failed.
type Error struct {
	Kind Kind
}

func (e *Error) Error() string { return e.Kind.String() }

// Is reports kind equality so errors.Is works against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidQuery = &Error{Kind: KindInvalidQuery}
	ErrCountOrder   = &Error{Kind: KindCountOrder}
)
