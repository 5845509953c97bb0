package errcode

import (
	"errors"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"ok":             OK,
		"invalid_config": InvalidConfig,
		"in_use":         InUse,
		"wrong_pin":      WrongPin,
		"mode_mismatch":  ModeMismatch,
		"consumed":       Consumed,
		"unknown_unit":   UnknownUnit,
		"unknown_port":   UnknownPort,
		"busy":           Busy,
		"unsupported":    Unsupported,
		"timeout":        Timeout,
		"error":          Error,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestEFormatsOpAndMsg(t *testing.T) {
	e := New(InUse, "sim.gate", "scgc5 bit 11")
	if got, want := e.Error(), "sim.gate: in_use: scgc5 bit 11"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := (&E{C: Busy}).Error(); got != "busy" {
		t.Fatalf("bare E: got %q", got)
	}
}

func TestOfAndIs(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to ok")
	}
	if Of(Timeout) != Timeout {
		t.Fatal("bare code lost")
	}
	var err error = New(WrongPin, "port.make_rx", "")
	if Of(err) != WrongPin {
		t.Fatalf("Of(E) = %q", Of(err))
	}
	if !errors.Is(err, WrongPin) {
		t.Fatal("errors.Is should match wrapped code")
	}
	if errors.Is(err, InUse) {
		t.Fatal("errors.Is matched the wrong code")
	}
	if Of(errors.New("x")) != Error {
		t.Fatal("foreign error should map to generic code")
	}
}
