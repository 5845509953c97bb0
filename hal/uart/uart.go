// Package uart drives the polled serial transceivers. A Transceiver is only
// built from pins already muxed to its unit, with a divisor that fits the
// baud registers, so a live value is always a working byte sink.
package uart

import (
	"io"

	"tinygo.org/x/drivers"

	"bootcode-go/errcode"
	"bootcode-go/hal/internal/guard"
	"bootcode-go/hal/mmio"
	"bootcode-go/hal/port"
	"bootcode-go/x/mathx"
)

const (
	UART0 = 0x4006A000
	UART1 = 0x4006B000
)

// Register offsets.
const (
	offBDH   = 0x0
	offBDL   = 0x1
	offC1    = 0x2
	offC2    = 0x3
	offS1    = 0x4
	offS2    = 0x5
	offC3    = 0x6
	offD     = 0x7
	offMA1   = 0x8
	offMA2   = 0x9
	offC4    = 0xA
	offC5    = 0xB
	offED    = 0xC
	offMODEM = 0xD
	offIR    = 0xE
)

const (
	c2RE   = 1 << 2
	c2TE   = 1 << 3
	s1RDRF = 1 << 5
	s1TC   = 1 << 6
	s1TDRE = 1 << 7

	// MaxSBR and MaxBRFA are the widths of the baud rate fields.
	MaxSBR  = 1<<13 - 1
	MaxBRFA = 1<<5 - 1
)

var bases = [...]uintptr{UART0, UART1}

var owned [len(bases)]guard.Flag

// Units is the number of serial units this package drives.
const Units = len(bases)

// Gate is the clock gate feeding the unit.
type Gate interface {
	Enabled() bool
	Release() error
}

// Divisor is the baud generator setting: the module clock is divided by
// 16*(SBR + BRFA/32).
type Divisor struct {
	SBR  uint16 `yaml:"sbr"`
	BRFA uint8  `yaml:"brfa"`
}

// Validate checks both fields fit their registers.
func (d Divisor) Validate() error {
	if d.SBR > MaxSBR {
		return errcode.New(errcode.InvalidConfig, "uart.divisor", "SBR must be below 8192")
	}
	if d.BRFA > MaxBRFA {
		return errcode.New(errcode.InvalidConfig, "uart.divisor", "BRFA must be below 32")
	}
	return nil
}

// Baud returns the rate d yields from a module clock of moduleHz.
func (d Divisor) Baud(moduleHz uint32) uint32 {
	x32 := uint64(d.SBR)*32 + uint64(d.BRFA)
	if x32 == 0 {
		return 0
	}
	return uint32(mathx.RoundDiv(uint64(moduleHz)*2, x32))
}

// DivisorFor picks the divisor closest to baud for a module clock of
// moduleHz. 72 MHz at 9600 baud gives SBR 468, BRFA 24.
func DivisorFor(moduleHz, baud uint32) (Divisor, error) {
	if baud == 0 {
		return Divisor{}, errcode.New(errcode.InvalidConfig, "uart.divisor", "baud must be positive")
	}
	// In 1/32 steps: moduleHz*32 / (16*baud).
	x32 := mathx.RoundDiv(uint64(moduleHz)*2, uint64(baud))
	if x32 < 32 {
		return Divisor{}, errcode.New(errcode.InvalidConfig, "uart.divisor", "baud too high for the module clock")
	}
	d := Divisor{SBR: uint16(min(x32/32, MaxSBR+1)), BRFA: uint8(x32 % 32)}
	if err := d.Validate(); err != nil {
		return Divisor{}, err
	}
	return d, nil
}

// Transceiver is an exclusive, configured serial unit.
type Transceiver struct {
	unit int
	base uintptr
	bus  mmio.Bus
	rx   *port.Rx
	tx   *port.Tx
	gate Gate
	done bool
}

var (
	_ drivers.UART  = (*Transceiver)(nil)
	_ io.ByteWriter = (*Transceiver)(nil)
)

// New configures unit for polled operation. Either line may be nil for a
// one-directional unit; with both nil the unit is programmed but neither
// direction is enabled. Lines must be live and muxed to unit. Nothing is
// written until every argument has been checked. On success the transceiver
// takes rx, tx and gate: the caller's line handles are spent.
func New(bus mmio.Bus, unit int, rx *port.Rx, tx *port.Tx, div Divisor, gate Gate) (*Transceiver, error) {
	const op = "uart.new"
	if unit < 0 || unit >= len(bases) {
		return nil, errcode.New(errcode.UnknownUnit, op, "no such serial unit")
	}
	if rx != nil && !rx.Live() {
		return nil, errcode.New(errcode.Consumed, op, "receive pin already released")
	}
	if tx != nil && !tx.Live() {
		return nil, errcode.New(errcode.Consumed, op, "transmit pin already released")
	}
	if rx != nil && rx.Unit() != unit {
		return nil, errcode.New(errcode.WrongPin, op, "receive pin belongs to another unit")
	}
	if tx != nil && tx.Unit() != unit {
		return nil, errcode.New(errcode.WrongPin, op, "transmit pin belongs to another unit")
	}
	if err := div.Validate(); err != nil {
		return nil, err
	}
	if gate == nil || !gate.Enabled() {
		return nil, errcode.New(errcode.InvalidConfig, op, "serial unit clock is gated off")
	}
	if !owned[unit].Acquire() {
		return nil, errcode.New(errcode.InUse, op, "serial unit already owned")
	}

	u := &Transceiver{unit: unit, base: bases[unit], bus: bus, gate: gate}
	// Both lines were checked live above, so neither claim can fail.
	if rx != nil {
		u.rx, _ = rx.Claim()
	}
	if tx != nil {
		u.tx, _ = tx.Claim()
	}
	u.reg(offC4).ReplaceField(div.BRFA, 0, 5)
	u.reg(offBDH).ReplaceField(uint8(div.SBR>>8), 0, 5)
	u.reg(offBDL).Set(uint8(div.SBR))
	u.reg(offC2).Update(func(v uint8) uint8 {
		v = mathx.WithBit(v, 2, u.rx != nil)
		return mathx.WithBit(v, 3, u.tx != nil)
	})
	return u, nil
}

func (u *Transceiver) reg(off uintptr) mmio.Reg8 { return mmio.R8(u.bus, u.base+off) }

// Unit is the serial unit number.
func (u *Transceiver) Unit() int { return u.unit }

// Divisor reads the programmed baud divisor back.
func (u *Transceiver) Divisor() Divisor {
	return Divisor{
		SBR:  uint16(u.reg(offBDH).Field(0, 5))<<8 | uint16(u.reg(offBDL).Get()),
		BRFA: u.reg(offC4).Field(0, 5),
	}
}

func (u *Transceiver) canSend(op string) error {
	if u == nil || u.done {
		return errcode.New(errcode.Consumed, op, "transceiver released")
	}
	if !u.reg(offC2).HasBits(c2TE) {
		return errcode.New(errcode.Unsupported, op, "transmitter not enabled")
	}
	return nil
}

func (u *Transceiver) put(b byte) {
	s1 := u.reg(offS1)
	mmio.Spin(0, func() bool { return s1.HasBits(s1TDRE) })
	u.reg(offD).Set(b)
}

func (u *Transceiver) drain() {
	s1 := u.reg(offS1)
	mmio.Spin(0, func() bool { return s1.HasBits(s1TC) })
}

// Write sends p one byte at a time and returns once the last byte has left
// the shift register.
func (u *Transceiver) Write(p []byte) (int, error) {
	if err := u.canSend("uart.write"); err != nil {
		return 0, err
	}
	for _, b := range p {
		u.put(b)
	}
	u.drain()
	return len(p), nil
}

// WriteString is Write without the conversion.
func (u *Transceiver) WriteString(s string) (int, error) {
	if err := u.canSend("uart.write"); err != nil {
		return 0, err
	}
	for i := 0; i < len(s); i++ {
		u.put(s[i])
	}
	u.drain()
	return len(s), nil
}

// WriteByte sends one byte.
func (u *Transceiver) WriteByte(b byte) error {
	if err := u.canSend("uart.write"); err != nil {
		return err
	}
	u.put(b)
	u.drain()
	return nil
}

// Flush waits for the transmitter to go idle.
func (u *Transceiver) Flush() error {
	if err := u.canSend("uart.flush"); err != nil {
		return err
	}
	u.drain()
	return nil
}

func (u *Transceiver) canReceive(op string) error {
	if u == nil || u.done {
		return errcode.New(errcode.Consumed, op, "transceiver released")
	}
	if !u.reg(offC2).HasBits(c2RE) {
		return errcode.New(errcode.Unsupported, op, "receiver not enabled")
	}
	return nil
}

// Buffered reports whether a received byte is waiting. The unit has no
// FIFO enabled, so the answer is 0 or 1.
func (u *Transceiver) Buffered() int {
	if u.canReceive("uart.buffered") != nil || !u.reg(offS1).HasBits(s1RDRF) {
		return 0
	}
	return 1
}

// Read copies whatever has arrived into p without waiting. It returns 0, nil
// when nothing is pending.
func (u *Transceiver) Read(p []byte) (int, error) {
	if err := u.canReceive("uart.read"); err != nil {
		return 0, err
	}
	s1, d := u.reg(offS1), u.reg(offD)
	n := 0
	for n < len(p) && s1.HasBits(s1RDRF) {
		p[n] = d.Get()
		n++
	}
	return n, nil
}

// Release turns the unit off and gives back its pins and clock gate.
func (u *Transceiver) Release() error {
	if u == nil || u.done {
		return nil
	}
	u.reg(offC2).ClearBits(c2RE | c2TE)
	if u.rx != nil {
		u.rx.Release()
	}
	if u.tx != nil {
		u.tx.Release()
	}
	if err := u.gate.Release(); err != nil {
		return err
	}
	u.done = true
	owned[u.unit].Release()
	return nil
}

// Registers is a raw copy of the unit's register block.
type Registers struct {
	BDH, BDL, C1, C2, S1, S2, C3, MA1, MA2, C4, C5, ED, MODEM, IR uint8
}

// Snapshot reads the unit's registers except D, which would consume a
// received byte.
func Snapshot(bus mmio.Bus, unit int) (Registers, error) {
	if unit < 0 || unit >= len(bases) {
		return Registers{}, errcode.New(errcode.UnknownUnit, "uart.snapshot", "no such serial unit")
	}
	r := func(off uintptr) uint8 { return bus.Load8(bases[unit] + off) }
	return Registers{
		BDH: r(offBDH), BDL: r(offBDL), C1: r(offC1), C2: r(offC2),
		S1: r(offS1), S2: r(offS2), C3: r(offC3), MA1: r(offMA1),
		MA2: r(offMA2), C4: r(offC4), C5: r(offC5), ED: r(offED),
		MODEM: r(offMODEM), IR: r(offIR),
	}, nil
}
