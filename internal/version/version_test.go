package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	if Version == "" || BuildTime == "" || GitCommit == "" {
		t.Fatal("build metadata must never be empty")
	}
	s := String()
	if !strings.HasPrefix(s, "boqbuilder "+Version) {
		t.Fatalf("unexpected version line %q", s)
	}
}
