package osc

import (
	"errors"
	"testing"

	"bootcode-go/errcode"
	"bootcode-go/hal/fakehw"
)

func newOsc(t *testing.T) (*fakehw.Chip, *Oscillator) {
	t.Helper()
	chip := fakehw.New()
	o, err := New(chip)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		o.outstanding = nil
		_ = o.Release()
	})
	return chip, o
}

func TestCapacitanceBitsReversed(t *testing.T) {
	cases := map[uint8]uint8{
		0:  0x0,
		2:  0x8,
		4:  0x4,
		8:  0x2,
		10: 0xA,
		16: 0x1,
		30: 0xF,
	}
	for pf, want := range cases {
		got, err := CapacitanceBits(pf)
		if err != nil || got != want {
			t.Fatalf("CapacitanceBits(%d) = %#x, %v; want %#x", pf, got, err, want)
		}
	}
}

func TestEnableAllEvenValues(t *testing.T) {
	for pf := uint8(2); pf <= 30; pf += 2 {
		chip, o := newOsc(t)
		tok, err := o.Enable(pf)
		if err != nil {
			t.Fatalf("Enable(%d): %v", pf, err)
		}
		cr := chip.Peek8(Base)
		if cr&0x80 == 0 {
			t.Fatalf("Enable(%d): ERCLKEN clear, cr=%#x", pf, cr)
		}
		want, _ := CapacitanceBits(pf)
		if cr&0x0F != want {
			t.Fatalf("Enable(%d): cap bits %#x want %#x", pf, cr&0x0F, want)
		}
		if err := tok.Redeem(); err != nil {
			t.Fatalf("Redeem: %v", err)
		}
		if err := o.Release(); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
}

func TestEnableRejectsBeforeWriting(t *testing.T) {
	for _, pf := range []uint8{1, 3, 29, 31, 32, 255} {
		chip, o := newOsc(t)
		if _, err := o.Enable(pf); !errors.Is(err, errcode.InvalidConfig) {
			t.Fatalf("Enable(%d) err = %v", pf, err)
		}
		if len(chip.Writes()) != 0 {
			t.Fatalf("Enable(%d) wrote registers before failing", pf)
		}
		_ = o.Release()
	}
}

func TestSingleton(t *testing.T) {
	chip, o := newOsc(t)
	if _, err := New(chip); !errors.Is(err, errcode.InUse) {
		t.Fatalf("second New err = %v", err)
	}
	if err := o.Release(); err != nil {
		t.Fatal(err)
	}
	o2, err := New(chip)
	if err != nil {
		t.Fatalf("New after release: %v", err)
	}
	_ = o2.Release()
}

func TestTokenLifecycle(t *testing.T) {
	_, o := newOsc(t)
	tok, err := o.Enable(10)
	if err != nil {
		t.Fatal(err)
	}
	if !o.Enabled() {
		t.Fatal("oscillator not enabled")
	}
	if _, err := o.Enable(10); !errors.Is(err, errcode.InUse) {
		t.Fatalf("second token err = %v", err)
	}
	if err := o.Release(); !errors.Is(err, errcode.Busy) {
		t.Fatalf("release with token out err = %v", err)
	}
	if err := tok.Redeem(); err != nil {
		t.Fatal(err)
	}
	if err := tok.Redeem(); !errors.Is(err, errcode.Consumed) {
		t.Fatalf("double redeem err = %v", err)
	}
	var forged Token
	if forged.Valid() {
		t.Fatal("zero token is valid")
	}
	if _, err := o.Enable(12); err != nil {
		t.Fatalf("re-enable after redeem: %v", err)
	}
}
