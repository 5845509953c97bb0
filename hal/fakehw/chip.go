// Package fakehw simulates the slice of a K20 register file the boot code
// touches, so the drivers can run unmodified on the host. It models the
// clock generator's status register following its control registers (with an
// optional settle delay), the peripheral bit-band alias region, GPIO
// set/clear/toggle registers, UART status and data, and the AIRCR reset key.
package fakehw

import (
	"sync"

	"bootcode-go/hal/mmio"
)

// Addresses the model reacts to.
const (
	mcgBase  = 0x40064000
	mcgC1    = mcgBase + 0
	mcgC2    = mcgBase + 1
	mcgC5    = mcgBase + 4
	mcgC6    = mcgBase + 5
	mcgS     = mcgBase + 6
	oscCR    = 0x40065000
	simBase  = 0x40047000
	wdogBase = 0x40052000
	gpioB    = 0x400FF040
	gpioC    = 0x400FF080
	aircr    = 0xE000ED0C
	aliasEnd = 0x44000000

	resetKey = 0x05FA0004
)

var uartBases = [...]uintptr{0x4006A000, 0x4006B000}

// Write is one store seen by the chip, in program order.
type Write struct {
	Addr  uintptr
	Width uint8 // 8, 16 or 32
	Value uint32
}

// Chip is a simulated register file. The zero value is not usable; call New.
type Chip struct {
	mu  sync.Mutex
	mem map[uintptr]uint8

	settle    int   // status reads before the MCG catches up
	staged    bool  // publish one status field per settle period
	countdown int   // remaining reads for the pending status
	pendingS  uint8 // status the MCG is converging to
	frozen    map[uintptr]bool

	tx     [len(uartBases)][]byte
	rx     [len(uartBases)][]byte
	resets int
	writes []Write
	depth  int // nested stores from alias and word decomposition
}

var _ mmio.Bus = (*Chip)(nil)

// Option configures a Chip.
type Option func(*Chip)

// WithSettle makes every clock generator status change visible only after n
// reads of the status register, so polling loops actually spin.
func WithSettle(n int) Option { return func(c *Chip) { c.settle = n } }

// WithStagedStatus is WithSettle, except that a status change lands one
// field at a time, each after another n reads, in the order the silicon
// reports them: OSCINIT0, IREFST, CLKST, PLLST, LOCK0. A driver that polls
// those fields out of order needs several settle periods for one wait.
func WithStagedStatus(n int) Option {
	return func(c *Chip) { c.settle, c.staged = n, true }
}

// Status fields in publication order.
var statusStages = [...]uint8{1 << 1, 1 << 4, 3 << 2, 1 << 5, 1 << 6}

func nextStage(cur, target uint8) uint8 {
	for _, m := range statusStages {
		if cur&m != target&m {
			return cur&^m | target&m
		}
	}
	return target
}

// New returns a chip in its power-on reset state.
func New(opts ...Option) *Chip {
	c := &Chip{mem: make(map[uintptr]uint8), frozen: make(map[uintptr]bool)}
	for _, o := range opts {
		o(c)
	}
	c.reset()
	return c
}

func (c *Chip) reset() {
	// MCG: FEI, FLL referenced to the slow internal clock.
	c.mem[mcgC1] = 0x04
	c.mem[mcgC2] = 0x80
	c.mem[mcgS] = 0x10
	c.mem[mcgBase+8] = 0x02
	c.mem[mcgBase+13] = 0x80
	c.put32(simBase+0x1024, 0x00000E35) // SDID
	c.put32(simBase+0x1034, 0xF0100030) // SCGC4
	c.put32(simBase+0x1038, 0x00040182) // SCGC5
	c.put32(simBase+0x103C, 0x40000001) // SCGC6
	c.put32(simBase+0x1044, 0x00010000) // CLKDIV1
	c.put32(simBase+0x1054, 0x00000012) // UIDH
	c.put32(simBase+0x1058, 0x00340056)
	c.put32(simBase+0x105C, 0x4E45000F)
	c.put32(simBase+0x1060, 0x12345678)
	c.mem[wdogBase] = 0xD3
	c.mem[wdogBase+1] = 0x01
}

func (c *Chip) put32(a uintptr, v uint32) {
	for i := uintptr(0); i < 4; i++ {
		c.mem[a+i] = uint8(v >> (8 * i))
	}
}

func (c *Chip) get32(a uintptr) uint32 {
	var v uint32
	for i := uintptr(0); i < 4; i++ {
		v |= uint32(c.mem[a+i]) << (8 * i)
	}
	return v
}

// ---- mmio.Bus ----

func (c *Chip) Load8(a uintptr) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load8(a)
}

func (c *Chip) Store8(a uintptr, v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(a, 8, uint32(v))
	c.store8(a, v)
}

func (c *Chip) Load16(a uintptr) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint16(c.load8(a)) | uint16(c.load8(a+1))<<8
}

func (c *Chip) Store16(a uintptr, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(a, 16, uint32(v))
	c.depth++
	c.store8(a, uint8(v))
	c.store8(a+1, uint8(v>>8))
	c.depth--
}

func (c *Chip) Load32(a uintptr) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isAlias(a) {
		byteAddr, bit := aliasTarget(a)
		return uint32(c.load8(byteAddr)>>bit) & 1
	}
	var v uint32
	for i := uintptr(0); i < 4; i++ {
		v |= uint32(c.load8(a+i)) << (8 * i)
	}
	return v
}

func (c *Chip) Store32(a uintptr, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(a, 32, v)
	switch {
	case a == aircr:
		if v == resetKey {
			c.resets++
		}
		return
	case isAlias(a):
		c.storeBit(a, v&1 != 0)
		return
	}
	c.depth++
	for i := uintptr(0); i < 4; i++ {
		c.store8(a+i, uint8(v>>(8*i)))
	}
	c.depth--
}

func (c *Chip) record(a uintptr, width uint8, v uint32) {
	if c.depth == 0 {
		c.writes = append(c.writes, Write{Addr: a, Width: width, Value: v})
	}
}

// ---- model ----

func isAlias(a uintptr) bool { return a >= mmio.BitbandBase && a < aliasEnd }

func aliasTarget(a uintptr) (uintptr, uint) {
	off := a - mmio.BitbandBase
	return mmio.PeripheralBase + off/32, uint(off%32) / 4
}

func (c *Chip) storeBit(a uintptr, on bool) {
	byteAddr, bit := aliasTarget(a)
	v := c.load8(byteAddr)
	if on {
		v |= 1 << bit
	} else {
		v &^= 1 << bit
	}
	c.depth++
	c.store8(byteAddr, v)
	c.depth--
}

func (c *Chip) load8(a uintptr) uint8 {
	if isAlias(a) {
		byteAddr, bit := aliasTarget(a)
		return (c.load8(byteAddr) >> bit) & 1
	}
	if a == mcgS && c.countdown > 0 {
		c.countdown--
		if c.countdown == 0 && !c.frozen[mcgS] {
			if c.staged {
				c.mem[mcgS] = nextStage(c.mem[mcgS], c.pendingS)
				if c.mem[mcgS] != c.pendingS {
					c.countdown = c.settle
				}
			} else {
				c.mem[mcgS] = c.pendingS
			}
		}
	}
	if u, off, ok := uartReg(a); ok {
		switch off {
		case 4: // S1: transmitter always drains, RDRF follows the rx queue
			s1 := c.mem[a] | 0xC0
			if len(c.rx[u]) > 0 {
				s1 |= 0x20
			}
			if c.frozen[a] {
				s1 = c.mem[a]
			}
			return s1
		case 7: // D
			if len(c.rx[u]) == 0 {
				return 0
			}
			b := c.rx[u][0]
			c.rx[u] = c.rx[u][1:]
			return b
		}
	}
	return c.mem[a]
}

func (c *Chip) store8(a uintptr, v uint8) {
	if isAlias(a) {
		c.storeBit(a, v&1 != 0)
		return
	}
	if a == mcgS {
		return // read-only
	}
	c.mem[a] = v
	switch {
	case a == mcgC1 || a == mcgC2 || a == mcgC5 || a == mcgC6 || a == oscCR:
		c.mcgChanged()
	case inGPIO(a, gpioB) || inGPIO(a, gpioC):
		c.gpioWrite(a, v)
	}
	if u, off, ok := uartReg(a); ok && off == 7 {
		if c.mem[uartBases[u]+3]&0x08 != 0 { // C2.TE
			c.tx[u] = append(c.tx[u], v)
		}
	}
}

// mcgStatus derives S from the control registers the way the silicon ends
// up once every transition has settled.
func (c *Chip) mcgStatus() uint8 {
	c1, c2, c6 := c.mem[mcgC1], c.mem[mcgC2], c.mem[mcgC6]
	var s uint8
	osc := c2&0x04 != 0
	if osc {
		s |= 1 << 1 // OSCINIT0
	}
	if c1&0x04 != 0 {
		s |= 1 << 4 // IREFST
	}
	pll := c6&0x40 != 0
	locked := pll && osc
	if pll {
		s |= 1 << 5 // PLLST
	}
	if locked {
		s |= 1 << 6 // LOCK0
	}
	var clkst uint8
	switch c1 >> 6 {
	case 0:
		if locked {
			clkst = 3
		}
	case 1:
		clkst = 1
	case 2:
		clkst = 2
	}
	return s | clkst<<2
}

func (c *Chip) mcgChanged() {
	if c.frozen[mcgS] {
		return
	}
	s := c.mcgStatus()
	if c.settle <= 0 {
		c.mem[mcgS] = s
		return
	}
	c.pendingS = s
	c.countdown = c.settle
}

func inGPIO(a, base uintptr) bool { return a >= base && a < base+0x18 }

func (c *Chip) gpioWrite(a uintptr, v uint8) {
	base := uintptr(gpioB)
	if a >= gpioC {
		base = gpioC
	}
	off, lane := (a-base)/4, (a-base)%4
	pdor := base + lane
	switch off {
	case 1: // PSOR
		c.mem[pdor] |= v
	case 2: // PCOR
		c.mem[pdor] &^= v
	case 3: // PTOR
		c.mem[pdor] ^= v
	}
	if off >= 1 && off <= 3 {
		c.mem[a] = 0 // write-only
	}
	// PDIR mirrors the output latch on pins configured as outputs.
	ddr := c.mem[base+0x14+lane]
	pdir := base + 0x10 + lane
	c.mem[pdir] = c.mem[pdir]&^ddr | c.mem[pdor]&ddr
}

func uartReg(a uintptr) (unit int, off uintptr, ok bool) {
	for i, b := range uartBases {
		if a >= b && a < b+0x20 {
			return i, a - b, true
		}
	}
	return 0, 0, false
}
