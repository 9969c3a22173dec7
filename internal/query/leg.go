// Package query turns free-text flight requests into structured leg queries.
//
// A request line looks like
//
//	[ORDINAL[.|)]] DEPARTURE (-|space) ARRIVAL PAX[PAX] AIRCRAFT [no AVOID[,;]AVOID...]
//
// for example "1) KIV - VKO 2 pax Global 5000 no UHMM, Belarus". Several lines
// form a multi-leg batch.
package query

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// minFieldLen is the shortest accepted airport or aircraft token. Three
// characters is the length of an IATA code.
const minFieldLen = 3

// avoidMarker starts the optional avoid clause. It is case-sensitive.
const avoidMarker = "no "

// LegQuery is one parsed line of a request.
type LegQuery struct {
	Ordinal   string   `json:"ordinal,omitempty"` // Digits the user numbered the line with, or empty.
	Departure string   `json:"departure"`
	Arrival   string   `json:"arrival"`
	Pax       int      `json:"pax"`
	Aircraft  string   `json:"aircraft"`
	Avoid     AvoidSet `json:"avoid"`
}

// ParseLeg parses a single request line. Any structural problem yields
// ErrInvalidQuery regardless of which field was at fault.
func ParseLeg(line string) (LegQuery, error) {
	text := Normalise(line)
	if text == "" {
		return LegQuery{}, ErrInvalidQuery
	}

	var (
		leg LegQuery
		pos int
		ok  bool
	)

	leg.Ordinal, pos = scanOrdinal(text, 0)

	if leg.Departure, pos, ok = scanDeparture(text, pos); !ok {
		return LegQuery{}, ErrInvalidQuery
	}
	if leg.Arrival, pos, ok = scanArrival(text, pos); !ok {
		return LegQuery{}, ErrInvalidQuery
	}
	if leg.Pax, pos, ok = scanPax(text, pos); !ok {
		return LegQuery{}, ErrInvalidQuery
	}
	if leg.Aircraft, pos, ok = scanAircraft(text, pos); !ok {
		return LegQuery{}, ErrInvalidQuery
	}
	leg.Avoid = ParseAvoid(text[pos:])

	return leg, nil
}

// scanOrdinal consumes leading digits plus one optional "." or ")" and the
// whitespace around it. An empty ordinal is valid.
func scanOrdinal(text string, pos int) (string, int) {
	end := skipDigits(text, pos)
	ordinal := text[pos:end]

	pos = skipSpace(text, end)
	if pos < len(text) && (text[pos] == '.' || text[pos] == ')') {
		pos = skipSpace(text, pos+1)
	}
	return ordinal, pos
}

// scanDeparture reads up to the first hyphen, or the first space when the
// line has no hyphen. The returned cursor points past the separator.
func scanDeparture(text string, pos int) (string, int, bool) {
	rest := text[pos:]
	sep := strings.IndexByte(rest, '-')
	if sep < 0 {
		sep = strings.IndexByte(rest, ' ')
	}
	if sep < 0 {
		return "", pos, false
	}

	dep := strings.TrimSpace(rest[:sep])
	if utf8.RuneCountInString(dep) < minFieldLen {
		return "", pos, false
	}
	return strings.ToUpper(dep), skipSpace(text, pos+sep+1), true
}

// scanArrival reads up to the first digit, which must exist: it is where the
// passenger count starts.
func scanArrival(text string, pos int) (string, int, bool) {
	end := pos
	for end < len(text) && !isDigit(text[end]) {
		end++
	}
	if end == len(text) {
		return "", pos, false
	}

	arr := strings.TrimSpace(text[pos:end])
	if utf8.RuneCountInString(arr) < minFieldLen {
		return "", pos, false
	}
	return strings.ToUpper(arr), end, true
}

// scanPax reads the passenger count and an optional "PAX" keyword after it.
// The digits may not run to the end of the line: an aircraft must follow.
func scanPax(text string, pos int) (int, int, bool) {
	end := skipDigits(text, pos)
	if end == pos || end == len(text) {
		return 0, pos, false
	}

	pax, err := strconv.Atoi(text[pos:end])
	if err != nil {
		return 0, pos, false
	}

	pos = skipSpace(text, end)
	if len(text)-pos >= 3 && strings.EqualFold(text[pos:pos+3], "PAX") {
		pos = skipSpace(text, pos+3)
	}
	return pax, pos, true
}

// scanAircraft reads until the avoid marker or end of line. When the marker
// is present the cursor is left just after it.
func scanAircraft(text string, pos int) (string, int, bool) {
	rest := text[pos:]
	end := len(text)
	next := len(text)
	if i := strings.Index(rest, avoidMarker); i >= 0 {
		end = pos + i
		next = end + len(avoidMarker)
	}

	aircraft := strings.TrimSpace(text[pos:end])
	if utf8.RuneCountInString(aircraft) < minFieldLen {
		return "", pos, false
	}
	return strings.ToUpper(aircraft), next, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func skipDigits(text string, pos int) int {
	for pos < len(text) && isDigit(text[pos]) {
		pos++
	}
	return pos
}

func skipSpace(text string, pos int) int {
	for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t') {
		pos++
	}
	return pos
}
