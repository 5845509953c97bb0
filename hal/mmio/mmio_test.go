package mmio

import "testing"

// memBus is a flat little-endian byte store.
type memBus map[uintptr]uint8

func (m memBus) Load8(a uintptr) uint8     { return m[a] }
func (m memBus) Store8(a uintptr, v uint8) { m[a] = v }
func (m memBus) Load16(a uintptr) uint16   { return uint16(m[a]) | uint16(m[a+1])<<8 }
func (m memBus) Store16(a uintptr, v uint16) {
	m[a], m[a+1] = uint8(v), uint8(v>>8)
}
func (m memBus) Load32(a uintptr) uint32 {
	return uint32(m.Load16(a)) | uint32(m.Load16(a+2))<<16
}
func (m memBus) Store32(a uintptr, v uint32) {
	m.Store16(a, uint16(v))
	m.Store16(a+2, uint16(v>>16))
}

func TestReg8Fields(t *testing.T) {
	bus := memBus{}
	r := R8(bus, 0x40064000)
	r.Set(0x04)
	r.ReplaceField(2, 6, 2)
	r.ReplaceField(4, 3, 3)
	if got := r.Get(); got != 0xA4 {
		t.Fatalf("C1 = %#x", got)
	}
	if r.Field(6, 2) != 2 || r.Field(3, 3) != 4 {
		t.Fatal("field read-back wrong")
	}
	r.ClearBits(0x04)
	if r.HasBits(0x04) {
		t.Fatal("bit still set")
	}
	r.SetBits(0x01)
	if r.Get() != 0xA1 {
		t.Fatalf("got %#x", r.Get())
	}
}

func TestReg32Fields(t *testing.T) {
	bus := memBus{}
	r := R32(bus, 0x40048044)
	r.Set(0x00010000)
	r.ReplaceField(0, 28, 4)
	r.ReplaceField(1, 24, 4)
	r.ReplaceField(2, 16, 4)
	if r.Get() != 0x01020000 {
		t.Fatalf("clkdiv1 = %#x", r.Get())
	}
	r.Update(func(v uint32) uint32 { return v | 1 })
	if !r.HasBits(1) {
		t.Fatal("update lost")
	}
}

func TestBitbandAlias(t *testing.T) {
	cases := []struct {
		addr uintptr
		bit  uint
		want uintptr
	}{
		{0x40048028, 0, 0x42900500},  // SCGC1 bit 0, clock-gate array base
		{0x40048034, 10, 0x429006A8}, // SCGC4 UART0
		{0x400FF040, 0, 0x43FE0800},  // GPIOB PDOR
		{0x400FF080, 0, 0x43FE1000},  // GPIOC PDOR
	}
	for _, c := range cases {
		if got := BitbandAlias(c.addr, c.bit); got != c.want {
			t.Fatalf("BitbandAlias(%#x,%d) = %#x, want %#x", c.addr, c.bit, got, c.want)
		}
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic outside bit-band region")
		}
	}()
	BitbandAlias(0x20000000, 0)
}

func TestBitWord(t *testing.T) {
	bus := memBus{}
	b := BitAt(bus, 0x42900500)
	b.Set(true)
	if !b.Get() || bus.Load32(0x42900500) != 1 {
		t.Fatal("bit word not set")
	}
	b.Set(false)
	if b.Get() {
		t.Fatal("bit word not cleared")
	}
}

func TestSpin(t *testing.T) {
	n := 0
	if !Spin(0, func() bool { n++; return n == 5 }) {
		t.Fatal("unbounded spin gave up")
	}
	if Spin(3, func() bool { return false }) {
		t.Fatal("bounded spin reported success")
	}
	n = 0
	if !Spin(3, func() bool { n++; return n == 3 }) {
		t.Fatal("success on the last allowed poll was missed")
	}
}
