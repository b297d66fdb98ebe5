package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	b := Info()
	if b.Version == "" || b.Commit == "" || b.Date == "" {
		t.Fatalf("build info must not be empty: %+v", b)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "resale version=") {
		t.Fatalf("unexpected version string %q", s)
	}
	if !strings.Contains(s, "commit="+Info().Commit) {
		t.Fatalf("commit missing from %q", s)
	}
}
