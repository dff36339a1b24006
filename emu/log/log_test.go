package log

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"gopkg.in/Sirupsen/logrus.v0"
)

type cycleContext struct{ cycles int64 }

func (c *cycleContext) AddLogContext(z *EntryZ) { z.Int64("cycle", c.cycles) }

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		DisableDebugModules(ModuleMaskAll)
	})
	return buf
}

func TestDisabledModuleIsNil(t *testing.T) {
	buf := captureOutput(t)

	if z := ModLink.DebugZ("not logged"); z != nil {
		t.Fatalf("DebugZ on disabled module = %p, want nil", z)
	}

	// Methods on a nil entry must be no-ops.
	ModLink.DebugZ("not logged").Hex8("val", 0x42).String("s", "x").End()
	if buf.Len() != 0 {
		t.Errorf("disabled module wrote %q", buf.String())
	}
}

func TestWarningsAlwaysEnabled(t *testing.T) {
	buf := captureOutput(t)

	ModSerial.WarnZ("line floating").Hex8("sb", 0xff).End()
	if got := buf.String(); !strings.Contains(got, "line floating") || !strings.Contains(got, "sb=ff") {
		t.Errorf("warning output = %q", got)
	}
}

func TestEnableDebugModule(t *testing.T) {
	buf := captureOutput(t)
	EnableDebugModules(ModLink.Mask())

	ModLink.DebugZ("frame").Hex8("tag", 1).Int("n", -3).Bool("ok", true).End()
	ModTiming.DebugZ("hidden").End()

	got := buf.String()
	for _, want := range []string{"msg=frame", "_mod=link", "tag=01", "n=-3", "ok=true"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q misses %q", got, want)
		}
	}
	if strings.Contains(got, "hidden") {
		t.Errorf("timing module should be disabled, got %q", got)
	}
}

func TestContext(t *testing.T) {
	buf := captureOutput(t)
	ctx := &cycleContext{cycles: 1234}
	AddContext(ctx)
	defer RemoveContext(ctx)

	ModEmu.WarnZ("with context").End()
	if got := buf.String(); !strings.Contains(got, "cycle=1234") {
		t.Errorf("output %q misses the cycle context", got)
	}
}

func TestModuleByName(t *testing.T) {
	mod := NewModule("testmod")
	got, ok := ModuleByName("testmod")
	if !ok || got != mod {
		t.Fatalf("ModuleByName(testmod) = %v, %t, want %v, true", got, ok, mod)
	}
	if _, ok := ModuleByName("<error>"); ok {
		t.Errorf("the placeholder module should not be found")
	}
	if _, ok := ModuleByName("nope"); ok {
		t.Errorf("unknown module found")
	}
}
