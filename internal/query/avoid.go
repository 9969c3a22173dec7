package query

import (
	"encoding/json"
	"sort"
	"strings"
)

// AvoidSet holds upper-cased country names and FIR codes a leg must not
// cross. Iteration order is unspecified; use Sorted for stable output.
type AvoidSet map[string]struct{}

// NewAvoidSet builds a set from already-normalised tokens.
func NewAvoidSet(tokens ...string) AvoidSet {
	s := make(AvoidSet, len(tokens))
	for _, t := range tokens {
		s.add(t)
	}
	return s
}

func (s AvoidSet) add(token string) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return
	}
	s[token] = struct{}{}
}

// Has reports whether the token is in the set.
func (s AvoidSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Sorted returns the tokens in lexical order.
func (s AvoidSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s AvoidSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts an array of tokens.
func (s *AvoidSet) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	*s = NewAvoidSet(tokens...)
	return nil
}

// ParseAvoid splits an avoid clause such as "Ukraine, Belarus; UHMM" on
// commas and semicolons. Tokens are trimmed and upper-cased; empty tokens
// are dropped.
func ParseAvoid(text string) AvoidSet {
	set := AvoidSet{}

	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ',' || text[i] == ';' {
			set.add(text[start:i])
			start = i + 1
		}
	}
	set.add(text[start:])

	return set
}
