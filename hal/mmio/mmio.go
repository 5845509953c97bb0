// Package mmio is the volatile register layer every peripheral driver goes
// through. On the target a Bus is the real address space; on the host it is
// a simulated register file (see hal/fakehw).
package mmio

// Bus is a memory-mapped address space. Implementations must perform every
// access exactly once and in program order.
type Bus interface {
	Load8(addr uintptr) uint8
	Store8(addr uintptr, v uint8)
	Load16(addr uintptr) uint16
	Store16(addr uintptr, v uint16)
	Load32(addr uintptr) uint32
	Store32(addr uintptr, v uint32)
}

// Reg8 is an 8-bit register at a fixed address.
type Reg8 struct {
	bus  Bus
	addr uintptr
}

func R8(bus Bus, addr uintptr) Reg8 { return Reg8{bus: bus, addr: addr} }

func (r Reg8) Addr() uintptr        { return r.addr }
func (r Reg8) Get() uint8           { return r.bus.Load8(r.addr) }
func (r Reg8) Set(v uint8)          { r.bus.Store8(r.addr, v) }
func (r Reg8) HasBits(m uint8) bool { return r.Get()&m != 0 }
func (r Reg8) SetBits(m uint8)      { r.Set(r.Get() | m) }
func (r Reg8) ClearBits(m uint8)    { r.Set(r.Get() &^ m) }

func (r Reg8) Update(f func(uint8) uint8) { r.Set(f(r.Get())) }

// Field reads bits [lo, lo+width).
func (r Reg8) Field(lo, width uint) uint8 {
	return (r.Get() >> lo) & (1<<width - 1)
}

// ReplaceField rewrites bits [lo, lo+width) with v, leaving the rest.
func (r Reg8) ReplaceField(v uint8, lo, width uint) {
	m := uint8(1<<width-1) << lo
	r.Update(func(x uint8) uint8 { return x&^m | (v<<lo)&m })
}

// Reg16 is a 16-bit register at a fixed address.
type Reg16 struct {
	bus  Bus
	addr uintptr
}

func R16(bus Bus, addr uintptr) Reg16 { return Reg16{bus: bus, addr: addr} }

func (r Reg16) Addr() uintptr      { return r.addr }
func (r Reg16) Get() uint16        { return r.bus.Load16(r.addr) }
func (r Reg16) Set(v uint16)       { r.bus.Store16(r.addr, v) }
func (r Reg16) ClearBits(m uint16) { r.Set(r.Get() &^ m) }

// Reg32 is a 32-bit register at a fixed address.
type Reg32 struct {
	bus  Bus
	addr uintptr
}

func R32(bus Bus, addr uintptr) Reg32 { return Reg32{bus: bus, addr: addr} }

func (r Reg32) Addr() uintptr         { return r.addr }
func (r Reg32) Get() uint32           { return r.bus.Load32(r.addr) }
func (r Reg32) Set(v uint32)          { r.bus.Store32(r.addr, v) }
func (r Reg32) HasBits(m uint32) bool { return r.Get()&m != 0 }
func (r Reg32) SetBits(m uint32)      { r.Set(r.Get() | m) }
func (r Reg32) ClearBits(m uint32)    { r.Set(r.Get() &^ m) }

func (r Reg32) Update(f func(uint32) uint32) { r.Set(f(r.Get())) }

func (r Reg32) Field(lo, width uint) uint32 {
	return (r.Get() >> lo) & (1<<width - 1)
}

func (r Reg32) ReplaceField(v uint32, lo, width uint) {
	m := uint32(1<<width-1) << lo
	r.Update(func(x uint32) uint32 { return x&^m | (v<<lo)&m })
}

// Peripheral bit-band: every bit of 0x40000000..0x400FFFFF has its own word
// in the alias region, so a single store sets or clears one bit atomically.
const (
	PeripheralBase = 0x40000000
	PeripheralEnd  = 0x40100000
	BitbandBase    = 0x42000000
)

// BitbandAlias returns the alias word address for bit of the byte at addr.
// Bits above 7 roll into the following bytes, matching a 32-bit register
// view of the same location.
func BitbandAlias(addr uintptr, bit uint) uintptr {
	if addr < PeripheralBase || addr >= PeripheralEnd {
		panic("mmio: register outside bit-band region")
	}
	if bit > 31 {
		panic("mmio: invalid bit position")
	}
	return BitbandBase + (addr-PeripheralBase)*32 + uintptr(bit)*4
}

// Bit is a single bit-band alias word.
type Bit struct{ Reg32 }

func BitAt(bus Bus, alias uintptr) Bit { return Bit{R32(bus, alias)} }

func (b Bit) Get() bool { return b.Reg32.Get()&1 != 0 }
func (b Bit) Set(on bool) {
	if on {
		b.Reg32.Set(1)
	} else {
		b.Reg32.Set(0)
	}
}
