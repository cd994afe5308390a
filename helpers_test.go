package pe

import (
	"testing"
)

func mustParse(t *testing.T, data []byte, opts *Options) *File {
	t.Helper()
	f, err := Parse(data, opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return f
}
