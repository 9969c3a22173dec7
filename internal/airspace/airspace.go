// Package airspace classifies avoid-list tokens as countries or flight
// information regions.
package airspace

import (
	"sort"
	"strings"
)

// Kind is the category of an avoid token.
type Kind int

const (
	Country Kind = iota
	FIR
)

func (k Kind) String() string {
	if k == FIR {
		return "fir"
	}
	return "country"
}

// Classify reports whether token names a FIR or a country. FIRs are
// identified by their 4-letter ICAO code (UHMM, EVRR, UKBV); anything else
// is treated as a country name.
func Classify(token string) Kind {
	token = strings.TrimSpace(token)
	if len(token) != 4 {
		return Country
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return Country
		}
	}
	if knownFourLetterCountries[strings.ToUpper(token)] {
		return Country
	}
	return FIR
}

// knownFourLetterCountries are country names that would otherwise look like
// FIR codes.
var knownFourLetterCountries = map[string]bool{
	"CHAD": true,
	"CUBA": true,
	"FIJI": true,
	"GUAM": true,
	"IRAN": true,
	"IRAQ": true,
	"LAOS": true,
	"MALI": true,
	"NIUE": true,
	"OMAN": true,
	"PERU": true,
	"TOGO": true,
}

// Split partitions tokens into sorted country names and FIR codes.
func Split(tokens []string) (countries, firs []string) {
	for _, t := range tokens {
		if Classify(t) == FIR {
			firs = append(firs, t)
		} else {
			countries = append(countries, t)
		}
	}
	sort.Strings(countries)
	sort.Strings(firs)
	return countries, firs
}
