// Package sim owns the system integration module: the per-peripheral clock
// gates, the system clock dividers and the identification registers.
//
// Clock gates are set and cleared through their bit-band alias words, so
// handing out one gate never disturbs a neighbour in the same register.
package sim

import (
	"bootcode-go/errcode"
	"bootcode-go/hal/internal/guard"
	"bootcode-go/hal/mmio"
	"bootcode-go/hal/port"
	"bootcode-go/hal/uart"
	"bootcode-go/x/mathx"
)

const Base = 0x40047000

// Register offsets.
const (
	offSOPT1   = 0x0000
	offSOPT2   = 0x1004
	offSOPT4   = 0x100C
	offSOPT5   = 0x1010
	offSOPT7   = 0x1018
	offSDID    = 0x1024
	offSCGC1   = 0x1028
	offCLKDIV1 = 0x1044
	offCLKDIV2 = 0x1048
	offFCFG1   = 0x104C
	offFCFG2   = 0x1050
	offUIDH    = 0x1054
)

// CLKDIV1 fields, each four bits wide and holding divisor-1.
const (
	outdiv1 = 28 // core and system
	outdiv2 = 24 // bus
	outdiv4 = 16 // flash

	MinDivider = 1
	MaxDivider = 16
)

var active guard.Flag

// GateRegister selects one of SCGC1..SCGC7.
type GateRegister uint8

const (
	SCGC1 GateRegister = iota + 1
	SCGC2
	SCGC3
	SCGC4
	SCGC5
	SCGC6
	SCGC7
)

// GateID names one clock gate bit.
type GateID struct {
	Reg GateRegister
	Bit uint8
}

// Gates this code base uses.
var (
	GatePortB = GateID{SCGC5, 10}
	GatePortC = GateID{SCGC5, 11}
	GateUART0 = GateID{SCGC4, 10}
	GateUART1 = GateID{SCGC4, 11}
)

// PortGate returns the gate feeding port name.
func PortGate(name port.Name) (GateID, error) {
	switch name {
	case port.B:
		return GatePortB, nil
	case port.C:
		return GatePortC, nil
	}
	return GateID{}, errcode.New(errcode.UnknownPort, "sim.port_gate", "no gate for port")
}

// UARTGate returns the gate feeding serial unit.
func UARTGate(unit int) (GateID, error) {
	switch unit {
	case 0:
		return GateUART0, nil
	case 1:
		return GateUART1, nil
	}
	return GateID{}, errcode.New(errcode.UnknownUnit, "sim.uart_gate", "no gate for serial unit")
}

// GateAlias returns the bit-band word for bit of reg.
func GateAlias(reg GateRegister, bit uint8) (uintptr, error) {
	if reg < SCGC1 || reg > SCGC7 {
		return 0, errcode.New(errcode.InvalidConfig, "sim.gate", "gate register must be SCGC1..SCGC7")
	}
	if bit > 31 {
		return 0, errcode.New(errcode.InvalidConfig, "sim.gate", "gate bit must be below 32")
	}
	addr := Base + offSCGC1 + uintptr(reg-SCGC1)*4
	return mmio.BitbandAlias(addr, uint(bit)), nil
}

// SIM is the exclusive handle on the system integration module.
type SIM struct {
	bus  mmio.Bus
	done bool
}

// New takes ownership of the module.
func New(bus mmio.Bus) (*SIM, error) {
	if !active.Acquire() {
		return nil, errcode.New(errcode.InUse, "sim.new", "system integration module already owned")
	}
	return &SIM{bus: bus}, nil
}

// Release gives the module back. Gates already handed out stay valid.
func (s *SIM) Release() {
	if s != nil && !s.done {
		s.done = true
		active.Release()
	}
}

func (s *SIM) live(op string) error {
	if s == nil || s.done {
		return errcode.New(errcode.Consumed, op, "system integration module released")
	}
	return nil
}

// ClockGate is one enabled peripheral clock. At most one exists per bit.
type ClockGate struct {
	id  GateID
	bit mmio.Bit
	on  bool
}

// Gate enables the clock for bit of reg. A gate that is already on is
// owned by someone else and is refused.
func (s *SIM) Gate(reg GateRegister, bit uint8) (*ClockGate, error) {
	const op = "sim.gate"
	if err := s.live(op); err != nil {
		return nil, err
	}
	alias, err := GateAlias(reg, bit)
	if err != nil {
		return nil, err
	}
	b := mmio.BitAt(s.bus, alias)
	if b.Get() {
		return nil, errcode.New(errcode.InUse, op, "clock gate already enabled")
	}
	b.Set(true)
	return &ClockGate{id: GateID{reg, bit}, bit: b, on: true}, nil
}

// GateFor is Gate for a named gate.
func (s *SIM) GateFor(id GateID) (*ClockGate, error) { return s.Gate(id.Reg, id.Bit) }

// ID names the gate.
func (g *ClockGate) ID() GateID { return g.id }

// Enabled reports whether the gate is owned and its clock is running.
func (g *ClockGate) Enabled() bool { return g != nil && g.on && g.bit.Get() }

// Release stops the clock. Releasing twice does nothing.
func (g *ClockGate) Release() error {
	if g == nil || !g.on {
		return nil
	}
	g.bit.Set(false)
	g.on = false
	return nil
}

// SetDividers programs the core, bus and flash clock divisors, each 1..16.
// Out-of-range values are rejected before CLKDIV1 is touched; bits outside
// the three fields are preserved.
func (s *SIM) SetDividers(core, bus, flash uint8) error {
	const op = "sim.set_dividers"
	if err := s.live(op); err != nil {
		return err
	}
	if err := CheckDividers(core, bus, flash); err != nil {
		return err
	}
	mmio.R32(s.bus, Base+offCLKDIV1).Update(func(v uint32) uint32 {
		v = mathx.ReplaceField(v, uint32(core-1), outdiv1, 4)
		v = mathx.ReplaceField(v, uint32(bus-1), outdiv2, 4)
		return mathx.ReplaceField(v, uint32(flash-1), outdiv4, 4)
	})
	return nil
}

// CheckDividers validates SetDividers arguments.
func CheckDividers(core, bus, flash uint8) error {
	for _, d := range [...]uint8{core, bus, flash} {
		if !mathx.Between(d, MinDivider, MaxDivider) {
			return errcode.New(errcode.InvalidConfig, "sim.set_dividers", "divider must be 1..16")
		}
	}
	return nil
}

// Dividers returns the raw CLKDIV1 fields, each one less than its divisor.
func (s *SIM) Dividers() (core, bus, flash uint8) {
	v := mmio.R32(s.bus, Base+offCLKDIV1).Get()
	return uint8(mathx.Field(v, outdiv1, 4)), uint8(mathx.Field(v, outdiv2, 4)), uint8(mathx.Field(v, outdiv4, 4))
}

// DeviceID reads SDID.
func (s *SIM) DeviceID() uint32 { return mmio.R32(s.bus, Base+offSDID).Get() }

// UniqueID reads UIDH, UIDMH, UIDML and UIDL in that order.
func (s *SIM) UniqueID() [4]uint32 {
	var id [4]uint32
	for i := range id {
		id[i] = mmio.R32(s.bus, Base+offUIDH+uintptr(i)*4).Get()
	}
	return id
}

// Port gates port name's clock and takes the port. The gate is switched off
// again if the port cannot be taken.
func (s *SIM) Port(name port.Name) (*port.Port, error) {
	id, err := PortGate(name)
	if err != nil {
		return nil, err
	}
	g, err := s.GateFor(id)
	if err != nil {
		return nil, err
	}
	p, err := port.New(s.bus, name, g)
	if err != nil {
		_ = g.Release()
		return nil, err
	}
	return p, nil
}

// UART gates a serial unit's clock and builds its transceiver on rx and tx.
// The gate is switched off again if the transceiver is refused; on success
// the transceiver takes rx and tx.
func (s *SIM) UART(unit int, rx *port.Rx, tx *port.Tx, div uart.Divisor) (*uart.Transceiver, error) {
	id, err := UARTGate(unit)
	if err != nil {
		return nil, err
	}
	g, err := s.GateFor(id)
	if err != nil {
		return nil, err
	}
	u, err := uart.New(s.bus, unit, rx, tx, div, g)
	if err != nil {
		_ = g.Release()
		return nil, err
	}
	return u, nil
}

// Registers is a raw copy of the module's configuration registers.
type Registers struct {
	SOPT1, SOPT2, SOPT4, SOPT5, SOPT7 uint32
	SDID                              uint32
	SCGC                              [7]uint32
	CLKDIV1, CLKDIV2                  uint32
	FCFG1, FCFG2                      uint32
}

// Snapshot reads the configuration registers without taking ownership.
func Snapshot(bus mmio.Bus) Registers {
	r := func(off uintptr) uint32 { return bus.Load32(Base + off) }
	out := Registers{
		SOPT1: r(offSOPT1), SOPT2: r(offSOPT2), SOPT4: r(offSOPT4),
		SOPT5: r(offSOPT5), SOPT7: r(offSOPT7), SDID: r(offSDID),
		CLKDIV1: r(offCLKDIV1), CLKDIV2: r(offCLKDIV2),
		FCFG1: r(offFCFG1), FCFG2: r(offFCFG2),
	}
	for i := range out.SCGC {
		out.SCGC[i] = r(offSCGC1 + uintptr(i)*4)
	}
	return out
}
