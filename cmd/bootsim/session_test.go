package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"bootcode-go/boot"
)

func script(lines ...string) func() (string, error) {
	return func() (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		l := lines[0]
		lines = lines[1:]
		return l, nil
	}
}

func newTestSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := newSession(&out, boot.MustPlan("teensy31"), 2)
	t.Cleanup(func() {
		if err := s.release(nil); err != nil {
			t.Errorf("release: %v", err)
		}
	})
	return s, &out
}

func TestStepToPEE(t *testing.T) {
	s, out := newTestSession(t)
	err := repl(s, script("wdog", "dividers", "osc", "acquire", "fbe", "pbe", "pee", "dump mcg"))
	if err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"watchdog enabled: false",
		"outdiv1 0 outdiv2 1 outdiv4 2",
		"mode fei\n", "mode fbe\n", "mode pbe\n", "mode pee\n",
		"C1:32 C2:36 ",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "error:") {
		t.Fatalf("unexpected error:\n%s", got)
	}
}

func TestStepOutOfOrder(t *testing.T) {
	s, out := newTestSession(t)
	if err := repl(s, script("pbe", "acquire", "pee", "fbe")); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"error: clock generator not held, run acquire",
		"error: clock generator is in fei, need pbe",
		// fbe without osc has no token.
		"error: mcg.enable_external_reference: consumed",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if s.clock != nil {
		t.Fatal("failed step kept the clock handle")
	}
}

func TestPollLimitTimeout(t *testing.T) {
	s, out := newTestSession(t)
	err := repl(s, script("reset 0", "limit 16", "freeze 0x40064006", "osc", "acquire", "fbe", "thaw 0x40064006", "acquire"))
	if err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "timeout: oscillator init") {
		t.Fatalf("no timeout:\n%s", got)
	}
	if !strings.HasSuffix(got, "mode fbe\n") {
		t.Fatalf("reacquire after thaw:\n%s", got)
	}
}

func TestBootAndReport(t *testing.T) {
	s, out := newTestSession(t)
	if err := repl(s, script("osc", "boot", "report", "console")); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"[boot] board teensy31", "core    72000000 Hz", "[boot] console uart0"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if s.osc != nil || s.sys == nil {
		t.Fatal("boot did not take over from the stepper")
	}
}

func TestQuitAndQuoting(t *testing.T) {
	s, out := newTestSession(t)
	if err := repl(s, script(`use "teensy32"`, "bogus", `unterminated "quote`, "quit", "boards")); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if s.plan.Board != "teensy32" {
		t.Fatalf("board = %q", s.plan.Board)
	}
	if !strings.Contains(got, `unknown command "bogus"`) {
		t.Fatalf("output:\n%s", got)
	}
	if strings.Contains(got, "teensy31\n") {
		t.Fatal("commands ran after quit")
	}
}
