package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCleanDeviceName(t *testing.T) {
	suffixes := []string{"corp.example.com", ".lab.example.com"}
	tests := []struct {
		name  string
		in    string
		upper bool
		want  string
	}{
		{name: "plain", in: "SW1", want: "SW1"},
		{name: "serial", in: "CORE-NX1(FOX1234ABCD)", want: "CORE-NX1"},
		{name: "domain", in: "dist-sw1.corp.example.com", want: "dist-sw1"},
		{name: "domain case-insensitive", in: "DIST-SW1.CORP.EXAMPLE.COM", want: "DIST-SW1"},
		{name: "domain then serial", in: "nx2.lab.example.com(FOX999)", want: "nx2"},
		{name: "uppercase", in: "dist-sw1.corp.example.com", upper: true, want: "DIST-SW1"},
		{name: "unknown domain kept", in: "sw9.other.net", want: "sw9.other.net"},
		{name: "whitespace", in: "  SW2  ", want: "SW2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanDeviceName(tt.in, NameOptions{DomainSuffixes: suffixes, UpperCase: tt.upper})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanDeviceNameIdempotent(t *testing.T) {
	options := NameOptions{DomainSuffixes: []string{"corp.example.com"}}
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.StringMatching(`[A-Za-z0-9\-]{1,8}(\.corp\.example\.com)?(\([A-Z0-9]{0,6}\))?`).Draw(t, "raw")
		once := CleanDeviceName(raw, options)
		if twice := CleanDeviceName(once, options); twice != once {
			t.Fatalf("CleanDeviceName not idempotent for %q: %q then %q", raw, once, twice)
		}
	})
}
