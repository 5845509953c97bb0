package fault

import (
	"bytes"
	"errors"
	"testing"

	"bootcode-go/errcode"
	"bootcode-go/hal/fakehw"
)

// console is a serial line that only records what is sent.
type console struct{ bytes.Buffer }

func (*console) Buffered() int { return 0 }

func catch(f func()) (h Halted, ok bool) {
	defer func() {
		h, ok = recover().(Halted)
	}()
	f()
	return
}

func TestFatalReportsAndResets(t *testing.T) {
	chip := fakehw.New()
	var out console
	r := &Reporter{Sink: &out, Bus: chip}
	cause := errcode.New(errcode.ModeMismatch, "mcg.acquire", "not in fei")

	h, ok := catch(func() { r.Fatal(cause) })
	if !ok {
		t.Fatal("Fatal returned")
	}
	if !errors.Is(h, errcode.ModeMismatch) {
		t.Fatalf("halt value %v lost the cause", h)
	}
	want := "Panic occured! mcg.acquire: mode_mismatch: not in fei\r\n"
	if out.String() != want {
		t.Fatalf("report = %q", out.String())
	}
	if chip.Resets() != 1 {
		t.Fatalf("resets = %d", chip.Resets())
	}
}

func TestFatalWithoutConsole(t *testing.T) {
	chip := fakehw.New()
	SetSink(nil)
	SetBus(chip)
	t.Cleanup(func() { SetBus(nil) })

	if _, ok := catch(func() { Fatal(errors.New("boom")) }); !ok {
		t.Fatal("Fatal returned")
	}
	if chip.Resets() != 1 {
		t.Fatal("no reset without a console")
	}
	if _, ok := catch(func() { Check(nil) }); ok {
		t.Fatal("Check(nil) halted")
	}
}
