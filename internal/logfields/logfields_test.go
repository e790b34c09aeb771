package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		attr slog.Attr
		key  string
		val  string
	}{
		{JobID("j1"), KeyJobID, "j1"},
		{JobStatus("queued"), KeyJobStatus, "queued"},
		{Stage("converting"), KeyStage, "converting"},
		{Backend("libredwg"), KeyBackend, "libredwg"},
		{Path("/tmp/x.dwg"), KeyPath, "/tmp/x.dwg"},
		{Layer("A-DOOR"), KeyLayer, "A-DOOR"},
		{Block("DOOR-900"), KeyBlock, "DOOR-900"},
		{Error(errors.New("boom")), KeyError, "boom"},
		{Error(nil), KeyError, ""},
	}
	for _, c := range cases {
		if c.attr.Key != c.key {
			t.Errorf("key: got %q want %q", c.attr.Key, c.key)
		}
		if c.attr.Value.String() != c.val {
			t.Errorf("%s: got %q want %q", c.key, c.attr.Value.String(), c.val)
		}
	}
}

func TestDuration(t *testing.T) {
	a := Duration(1500 * time.Microsecond)
	if a.Key != KeyDurationMS || a.Value.Float64() != 1.5 {
		t.Errorf("unexpected duration attr %v", a)
	}
}
