// Package port hands out exclusive ownership of port B and C pins and turns
// them into GPIO lines or serial receive/transmit lines.
//
// A Port needs its clock gate. Pins are locked one by one in a per-port
// bitmap; converting a Pin consumes it, and releasing the result returns the
// pin multiplexer to its disabled setting and frees the lock.
package port

import (
	"bootcode-go/errcode"
	"bootcode-go/hal/internal/guard"
	"bootcode-go/hal/mmio"
	"bootcode-go/x/mathx"
)

// Name identifies a port.
type Name uint8

const (
	B Name = iota
	C
)

func (n Name) String() string {
	switch n {
	case B:
		return "B"
	case C:
		return "C"
	}
	return "?"
}

// ParseName accepts "B" or "C", either case.
func ParseName(s string) (Name, error) {
	switch s {
	case "B", "b":
		return B, nil
	case "C", "c":
		return C, nil
	}
	return 0, errcode.New(errcode.UnknownPort, "port.parse", "unknown port "+s)
}

func (n Name) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *Name) UnmarshalText(b []byte) error {
	v, err := ParseName(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

const (
	BaseB = 0x4004A000
	BaseC = 0x4004B000

	gpioB = 0x400FF040
	gpioC = 0x400FF080

	// NumPins is the pin count per port, and the width of the lock bitmap.
	NumPins = 32

	pcrMUX = 8 // 3 bits

	muxDisabled = 0
	muxGPIO     = 1
	muxAlt3     = 3
)

// GPIO register offsets from the port's GPIO base.
const (
	pdor = 0x00
	psor = 0x04
	pcor = 0x08
	ptor = 0x0C
	pdir = 0x10
	pddr = 0x14
)

var layout = [...]struct{ pcr, gpio uintptr }{
	B: {BaseB, gpioB},
	C: {BaseC, gpioC},
}

var owned [len(layout)]guard.Flag

// Gate is the clock gate feeding the port.
type Gate interface {
	Enabled() bool
	Release() error
}

// Port is the exclusive handle on one port's pin control block.
type Port struct {
	bus   mmio.Bus
	name  Name
	gate  Gate
	locks guard.Set32
	done  bool
}

// New takes port name. gate must be the enabled clock gate for that port;
// it is released along with the port.
func New(bus mmio.Bus, name Name, gate Gate) (*Port, error) {
	const op = "port.new"
	if int(name) >= len(layout) {
		return nil, errcode.New(errcode.UnknownPort, op, "no such port")
	}
	if gate == nil || !gate.Enabled() {
		return nil, errcode.New(errcode.InvalidConfig, op, "port "+name.String()+" clock is gated off")
	}
	if !owned[name].Acquire() {
		return nil, errcode.New(errcode.InUse, op, "port "+name.String()+" already owned")
	}
	return &Port{bus: bus, name: name, gate: gate}, nil
}

// Name reports which port p controls.
func (p *Port) Name() Name { return p.name }

// Locked reports whether pin index is held.
func (p *Port) Locked(index uint8) bool {
	return index < NumPins && p.locks.Held(index)
}

// Pin locks pin index.
func (p *Port) Pin(index uint8) (*Pin, error) {
	const op = "port.pin"
	if p == nil || p.done {
		return nil, errcode.New(errcode.Consumed, op, "port released")
	}
	if index >= NumPins {
		return nil, errcode.New(errcode.InvalidConfig, op, "pin index must be below 32")
	}
	if !p.locks.Acquire(index) {
		return nil, errcode.New(errcode.InUse, op, "pin already locked")
	}
	return &Pin{line{p: p, index: index}}, nil
}

// Release gives the port and its clock gate back. Every pin must have been
// released first.
func (p *Port) Release() error {
	if p == nil || p.done {
		return nil
	}
	if p.locks.Any() {
		return errcode.New(errcode.Busy, "port.release", "pins still locked")
	}
	if err := p.gate.Release(); err != nil {
		return err
	}
	p.done = true
	owned[p.name].Release()
	return nil
}

func (p *Port) pcr(index uint8) mmio.Reg32 {
	return mmio.R32(p.bus, layout[p.name].pcr+uintptr(index)*4)
}

func (p *Port) gpioBit(off uintptr, index uint8) mmio.Bit {
	return mmio.BitAt(p.bus, mmio.BitbandAlias(layout[p.name].gpio+off, uint(index)))
}

// line is a locked pin. Every pin-backed handle embeds one.
type line struct {
	p     *Port
	index uint8
}

// Index is the pin number within its port.
func (l *line) Index() uint8 { return l.index }

// Port names the port the pin belongs to.
func (l *line) Port() Name {
	if l.p == nil {
		return 0
	}
	return l.p.name
}

func (l *line) live() bool { return l.p != nil }

// take moves ownership out of l so the caller can hand it to a new handle.
func (l *line) take(op string) (line, error) {
	if l.p == nil {
		return line{}, errcode.New(errcode.Consumed, op, "pin already converted or released")
	}
	out := *l
	l.p = nil
	return out, nil
}

func (l *line) mux(v uint32) { l.p.pcr(l.index).ReplaceField(v, pcrMUX, 3) }

// Release disables the pin multiplexer and unlocks the pin. Releasing twice
// does nothing.
func (l *line) Release() {
	if l.p == nil {
		return
	}
	l.mux(muxDisabled)
	l.p.locks.Release(l.index)
	l.p = nil
}

// Mux reports the pin's current multiplexer setting.
func (l *line) Mux() uint8 {
	if l.p == nil {
		return 0
	}
	return uint8(mathx.Field(l.p.pcr(l.index).Get(), pcrMUX, 3))
}

// Pin is a locked pin with no function assigned.
type Pin struct{ line }

// MakeGPIO muxes the pin as a digital line.
func (pin *Pin) MakeGPIO() (*Gpio, error) {
	l, err := pin.take("port.make_gpio")
	if err != nil {
		return nil, err
	}
	l.mux(muxGPIO)
	return &Gpio{l}, nil
}

// MakeRx muxes the pin as a serial receive line. Only pins wired to a
// receiver are accepted; the pin is left untouched otherwise.
func (pin *Pin) MakeRx() (*Rx, error) {
	const op = "port.make_rx"
	if !pin.live() {
		return nil, errcode.New(errcode.Consumed, op, "pin already converted or released")
	}
	unit, ok := RxUnit(pin.p.name, pin.index)
	if !ok {
		return nil, errcode.New(errcode.WrongPin, op, "pin has no serial receive function")
	}
	l, _ := pin.take(op)
	l.mux(muxAlt3)
	return &Rx{line: l, unit: unit}, nil
}

// MakeTx muxes the pin as a serial transmit line.
func (pin *Pin) MakeTx() (*Tx, error) {
	const op = "port.make_tx"
	if !pin.live() {
		return nil, errcode.New(errcode.Consumed, op, "pin already converted or released")
	}
	unit, ok := TxUnit(pin.p.name, pin.index)
	if !ok {
		return nil, errcode.New(errcode.WrongPin, op, "pin has no serial transmit function")
	}
	l, _ := pin.take(op)
	l.mux(muxAlt3)
	return &Tx{line: l, unit: unit}, nil
}

// Rx is a pin muxed to a serial receiver.
type Rx struct {
	line
	unit int
}

// Unit is the serial unit the pin feeds.
func (r *Rx) Unit() int { return r.unit }

// Live reports whether r still owns its pin.
func (r *Rx) Live() bool { return r.live() }

// Claim moves the pin into a new handle; r is spent afterwards.
func (r *Rx) Claim() (*Rx, error) {
	l, err := r.take("port.claim_rx")
	if err != nil {
		return nil, err
	}
	return &Rx{line: l, unit: r.unit}, nil
}

// Tx is a pin muxed to a serial transmitter.
type Tx struct {
	line
	unit int
}

// Unit is the serial unit driving the pin.
func (t *Tx) Unit() int { return t.unit }

// Live reports whether t still owns its pin.
func (t *Tx) Live() bool { return t.live() }

// Claim moves the pin into a new handle; t is spent afterwards.
func (t *Tx) Claim() (*Tx, error) {
	l, err := t.take("port.claim_tx")
	if err != nil {
		return nil, err
	}
	return &Tx{line: l, unit: t.unit}, nil
}
