package airspace

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		token string
		want  Kind
	}{
		{"UHMM", FIR},
		{"evrr", FIR},
		{"BELARUS", Country},
		{"UKRAINE", Country},
		{"IRAN", Country},
		{"UK", Country},
		{"UHM1", Country},
		{"", Country},
	}

	for _, tt := range tests {
		if got := Classify(tt.token); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestSplit(t *testing.T) {
	countries, firs := Split([]string{"UKRAINE", "UHMM", "BELARUS", "EVRR", "OMAN"})

	if diff := cmp.Diff([]string{"BELARUS", "OMAN", "UKRAINE"}, countries); diff != "" {
		t.Errorf("countries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"EVRR", "UHMM"}, firs); diff != "" {
		t.Errorf("firs mismatch (-want +got):\n%s", diff)
	}
}
