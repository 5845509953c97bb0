package sim

import (
	"errors"
	"testing"

	"bootcode-go/errcode"
	"bootcode-go/hal/fakehw"
	"bootcode-go/hal/port"
	"bootcode-go/hal/uart"
)

func newSIM(t *testing.T) (*fakehw.Chip, *SIM) {
	t.Helper()
	chip := fakehw.New()
	s, err := New(chip)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Release)
	return chip, s
}

func TestSingleton(t *testing.T) {
	_, s := newSIM(t)
	if _, err := New(fakehw.New()); !errors.Is(err, errcode.InUse) {
		t.Fatalf("err = %v", err)
	}
	s.Release()
	s.Release()
	again, err := New(fakehw.New())
	if err != nil {
		t.Fatalf("after release: %v", err)
	}
	again.Release()
	if _, err := s.Gate(SCGC5, 11); !errors.Is(err, errcode.Consumed) {
		t.Fatalf("released SIM err = %v", err)
	}
}

func TestGateAlias(t *testing.T) {
	cases := []struct {
		reg  GateRegister
		bit  uint8
		want uintptr
	}{
		{SCGC1, 0, 0x42900500},
		{SCGC4, 10, 0x42900500 + 3*128 + 10*4},
		{SCGC5, 11, 0x4290072C},
		{SCGC7, 31, 0x42900500 + 6*128 + 31*4},
	}
	for _, c := range cases {
		got, err := GateAlias(c.reg, c.bit)
		if err != nil || got != c.want {
			t.Fatalf("GateAlias(%d,%d) = %#x, %v; want %#x", c.reg, c.bit, got, err, c.want)
		}
	}
	for _, bad := range []GateID{{0, 0}, {8, 0}, {SCGC5, 32}} {
		if _, err := GateAlias(bad.Reg, bad.Bit); !errors.Is(err, errcode.InvalidConfig) {
			t.Fatalf("%+v err = %v", bad, err)
		}
	}
}

func TestGateOwnership(t *testing.T) {
	chip, s := newSIM(t)
	scgc5 := uintptr(Base + offSCGC1 + 4*4)

	g, err := s.Gate(SCGC5, 11)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Enabled() || chip.Peek32(scgc5)&(1<<11) == 0 {
		t.Fatal("port C clock not running")
	}
	if _, err := s.Gate(SCGC5, 11); !errors.Is(err, errcode.InUse) {
		t.Fatalf("second gate err = %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatal(err)
	}
	if g.Enabled() || chip.Peek32(scgc5) != 0x00040182 {
		t.Fatalf("SCGC5 after release = %#x", chip.Peek32(scgc5))
	}
	_ = g.Release()
	g, err = s.GateFor(GatePortC)
	if err != nil {
		t.Fatalf("regate: %v", err)
	}
	_ = g.Release()

	// Bits already on at reset are owned by whoever turned them on.
	if _, err := s.Gate(SCGC5, 8); !errors.Is(err, errcode.InUse) {
		t.Fatalf("reset-enabled gate err = %v", err)
	}
}

func TestSetDividers(t *testing.T) {
	chip, s := newSIM(t)
	clkdiv1 := uintptr(Base + offCLKDIV1)
	chip.Poke32(clkdiv1, chip.Peek32(clkdiv1)|0x00000F0F)

	if err := s.SetDividers(1, 2, 3); err != nil {
		t.Fatal(err)
	}
	core, bus, flash := s.Dividers()
	if core != 0 || bus != 1 || flash != 2 {
		t.Fatalf("Dividers = %d %d %d", core, bus, flash)
	}
	if got := chip.Peek32(clkdiv1); got != 0x01020F0F {
		t.Fatalf("CLKDIV1 = %#x", got)
	}

	chip.ClearWrites()
	for _, d := range [][3]uint8{{0, 2, 3}, {1, 17, 3}, {1, 2, 0}} {
		if err := s.SetDividers(d[0], d[1], d[2]); !errors.Is(err, errcode.InvalidConfig) {
			t.Fatalf("SetDividers%v err = %v", d, err)
		}
	}
	if len(chip.Writes()) != 0 {
		t.Fatal("rejected dividers were written")
	}
	if err := s.SetDividers(16, 16, 16); err != nil {
		t.Fatal(err)
	}
	if c, b, f := s.Dividers(); c != 15 || b != 15 || f != 15 {
		t.Fatalf("max dividers read %d %d %d", c, b, f)
	}
}

func TestIdentification(t *testing.T) {
	_, s := newSIM(t)
	if s.DeviceID() != 0x00000E35 {
		t.Fatalf("SDID = %#x", s.DeviceID())
	}
	id := s.UniqueID()
	if id[0] != 0x12 || id[3] != 0x12345678 {
		t.Fatalf("UID = %x", id)
	}
}

func TestPortAndUART(t *testing.T) {
	chip, s := newSIM(t)
	pb, err := s.Port(port.B)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Port(port.B); !errors.Is(err, errcode.InUse) {
		t.Fatalf("second port B err = %v", err)
	}
	pin, _ := pb.Pin(16)
	rx, _ := pin.MakeRx()
	pin, _ = pb.Pin(17)
	tx, _ := pin.MakeTx()

	if _, err := s.UART(1, rx, tx, uart.Divisor{SBR: 468, BRFA: 24}); !errors.Is(err, errcode.WrongPin) {
		t.Fatalf("unit 1 err = %v", err)
	}
	uart1, _ := GateAlias(GateUART1.Reg, GateUART1.Bit)
	if chip.Load32(uart1) != 0 {
		t.Fatal("refused transceiver left its gate on")
	}
	if _, err := s.UART(3, rx, tx, uart.Divisor{SBR: 468, BRFA: 24}); !errors.Is(err, errcode.UnknownUnit) {
		t.Fatalf("unit 3 err = %v", err)
	}

	u, err := s.UART(0, rx, tx, uart.Divisor{SBR: 468, BRFA: 24})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := u.WriteString("hi"); err != nil {
		t.Fatal(err)
	}
	if string(chip.TxData(0)) != "hi" {
		t.Fatalf("tx = %q", chip.TxData(0))
	}
	if err := u.Release(); err != nil {
		t.Fatal(err)
	}
	uart0, _ := GateAlias(GateUART0.Reg, GateUART0.Bit)
	if chip.Load32(uart0) != 0 {
		t.Fatal("released transceiver left its gate on")
	}
	if err := pb.Release(); err != nil {
		t.Fatal(err)
	}
	portB, _ := GateAlias(GatePortB.Reg, GatePortB.Bit)
	if chip.Load32(portB) != 0 {
		t.Fatal("released port left its gate on")
	}
}

func TestSnapshot(t *testing.T) {
	r := Snapshot(fakehw.New())
	if r.SDID != 0x00000E35 || r.SCGC[4] != 0x00040182 || r.CLKDIV1 != 0x00010000 {
		t.Fatalf("snapshot = %+v", r)
	}
}
