package query

import (
	"sort"
	"strings"
)

// Batch is the ordered list of legs of one request.
type Batch []LegQuery

// HasOrdinals reports whether any leg was numbered by the user.
func (b Batch) HasOrdinals() bool {
	for _, leg := range b {
		if leg.Ordinal != "" {
			return true
		}
	}
	return false
}

// ParseBatch parses a multi-line request. Blank lines are skipped and the
// first invalid line aborts the whole batch.
//
// When more than one leg is present and any of them is numbered, all of them
// must be, and the batch is returned sorted by number. Otherwise input order
// is kept.
func ParseBatch(text string) (Batch, error) {
	var batch Batch
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		leg, err := ParseLeg(line)
		if err != nil {
			return nil, err
		}
		batch = append(batch, leg)
	}

	if len(batch) == 0 {
		return nil, ErrInvalidQuery
	}
	if len(batch) == 1 || !batch.HasOrdinals() {
		return batch, nil
	}

	for _, leg := range batch {
		if leg.Ordinal == "" {
			return nil, ErrCountOrder
		}
	}
	sort.SliceStable(batch, func(i, j int) bool {
		return compareOrdinals(batch[i].Ordinal, batch[j].Ordinal) < 0
	})

	return batch, nil
}

// compareOrdinals compares two digit strings by numeric value without
// converting them, so arbitrarily long numbers cannot overflow.
func compareOrdinals(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
