package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.bug.st/serial/enumerator"
)

func TestLineFilter(t *testing.T) {
	in := "[boot] board teensy31\r\n[boot] sdid 00000e35\r\nheartbeat\r\n"
	var out bytes.Buffer
	if err := (lineFilter{}).copy(&out, strings.NewReader(in)); err != nil {
		t.Fatal(err)
	}
	if want := "[boot] board teensy31\n[boot] sdid 00000e35\nheartbeat\n"; out.String() != want {
		t.Fatalf("got %q", out.String())
	}

	out.Reset()
	f := lineFilter{stamp: func() string { return "12:00" }, until: "sdid"}
	if err := f.copy(&out, strings.NewReader(in)); !errors.Is(err, errStop) {
		t.Fatalf("err = %v", err)
	}
	if want := "12:00 [boot] board teensy31\n12:00 [boot] sdid 00000e35\n"; out.String() != want {
		t.Fatalf("got %q", out.String())
	}
}

func TestLineFilterPartialLine(t *testing.T) {
	var out bytes.Buffer
	if err := (lineFilter{}).copy(&out, strings.NewReader("Panic occured!")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Panic occured!\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestFindBoard(t *testing.T) {
	tty := &enumerator.PortDetails{Name: "/dev/ttyS0"}
	teensy := &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "16c0", PID: "0483"}
	other := &enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"}

	if name, err := findBoard([]*enumerator.PortDetails{tty, teensy, other}); err != nil || name != "/dev/ttyACM0" {
		t.Fatalf("findBoard = %q, %v", name, err)
	}
	if _, err := findBoard([]*enumerator.PortDetails{tty, other}); err == nil {
		t.Fatal("found a board among non-Teensy ports")
	}
	if _, err := findBoard([]*enumerator.PortDetails{teensy, teensy}); err == nil {
		t.Fatal("two boards should be ambiguous")
	}
	if got := describe(teensy); got != "/dev/ttyACM0  usb 16c0:0483  (teensy)" {
		t.Fatalf("describe = %q", got)
	}
}
