package speaker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

func TestOperationsLookup(t *testing.T) {
	f := newFixture(t, fixtureOpts{ext: &fakeExtractor{emb: []float32{1, 0}}})

	want := []string{
		"register", "identify", "record-register", "record-identify",
		"auto-register", "delete", "threshold", "list", "history", "clear-log",
	}
	ops := f.ctrl.Operations()
	if len(ops) != len(want) {
		t.Fatalf("got %d operations, want %d", len(ops), len(want))
	}
	for i, name := range want {
		if ops[i].Name != name {
			t.Errorf("ops[%d] = %s, want %s", i, ops[i].Name, name)
		}
		op, found := f.ctrl.Operation(name)
		if !found || op.Name != name || op.Usage == "" {
			t.Errorf("Operation(%q) = %+v, %v", name, op.Operation.Name, found)
		}
	}
	if _, found := f.ctrl.Operation("nope"); found {
		t.Error("Operation(nope) found")
	}
}

func TestOperationUsageError(t *testing.T) {
	f := newFixture(t, fixtureOpts{ext: &fakeExtractor{emb: []float32{1, 0}}})
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
	}{
		{"register", []string{"only-one"}},
		{"register", []string{"a", "b", "c"}},
		{"identify", nil},
		{"record-identify", []string{"extra"}},
		{"delete", nil},
		{"threshold", []string{"0.5", "0.6"}},
	}
	for _, tt := range tests {
		op, _ := f.ctrl.Operation(tt.name)
		res := op.Execute(ctx, tt.args)
		if res.OK || !strings.HasPrefix(res.Message, "usage: ") {
			t.Errorf("%s %v = %+v, want usage error", tt.name, tt.args, res)
		}
	}
}

func TestOperationRegisterIdentifyDelete(t *testing.T) {
	f := newFixture(t, fixtureOpts{ext: &fakeExtractor{emb: []float32{1, 0}}})
	ctx := context.Background()
	path := f.clip(t, "a.wav", 120, 16000, 3*time.Second, 1)

	run := func(name string, args ...string) Result {
		t.Helper()
		op, found := f.ctrl.Operation(name)
		if !found {
			t.Fatalf("operation %s missing", name)
		}
		return op.Execute(ctx, args)
	}

	if res := run("identify", path); res.OK || !errors.Is(res.Err, ErrNoTemplates) {
		t.Fatalf("identify on empty store = %+v", res)
	}
	if res := run("register", path, "alice"); !res.OK {
		t.Fatalf("register = %+v", res)
	}

	res := run("identify", path)
	if !res.OK || !strings.Contains(res.Message, "matched alice") {
		t.Fatalf("identify = %+v", res)
	}
	if m, isMatch := res.Data.(voiceprint.MatchResult); !isMatch || !m.Accepted {
		t.Fatalf("identify data = %#v", res.Data)
	}

	if res := run("list"); !res.OK || !strings.Contains(res.Message, "alice voice:") {
		t.Errorf("list = %+v", res)
	}
	if res := run("delete", "nobody"); !res.OK || !strings.Contains(res.Message, "not found") {
		t.Errorf("delete nobody = %+v", res)
	}
	if res := run("delete", "alice"); !res.OK || res.Message != "deleted alice" {
		t.Errorf("delete alice = %+v", res)
	}
	if res := run("history", "5"); !res.OK || res.Message != "1 attempt(s)" {
		t.Errorf("history = %+v", res)
	}
}

func TestOperationThreshold(t *testing.T) {
	f := newFixture(t, fixtureOpts{ext: &fakeExtractor{emb: []float32{1}}})
	ctx := context.Background()
	op, _ := f.ctrl.Operation("threshold")

	if res := op.Execute(ctx, nil); !res.OK || res.Message != "threshold 0.75" {
		t.Errorf("threshold = %+v", res)
	}
	if res := op.Execute(ctx, []string{"0.6"}); !res.OK || f.ctrl.Threshold() != 0.6 {
		t.Errorf("threshold 0.6 = %+v", res)
	}
	for _, arg := range []string{"0.1", "1", "abc"} {
		res := op.Execute(ctx, []string{arg})
		if res.OK || !errors.Is(res.Err, ErrThresholdRange) {
			t.Errorf("threshold %s = %+v, want ErrThresholdRange", arg, res)
		}
	}
	if f.ctrl.Threshold() != 0.6 {
		t.Errorf("threshold changed by rejected values: %.2f", f.ctrl.Threshold())
	}
}

func TestOperationClearLog(t *testing.T) {
	f := newFixture(t, fixtureOpts{ext: &fakeExtractor{emb: []float32{1}}})
	f.ctrl.Activity().Info("hello")
	op, _ := f.ctrl.Operation("clear-log")
	if res := op.Execute(context.Background(), nil); !res.OK {
		t.Fatalf("clear-log = %+v", res)
	}
	if lines := f.ctrl.Activity().Lines(); len(lines) != 1 {
		t.Errorf("lines after clear = %d, want 1", len(lines))
	}
}
