// Package boot brings a board from reset to its running clock configuration
// and hands back every peripheral it claimed along the way.
//
// A Plan describes the board: crystal, clock path, system dividers, the
// diagnostic console and the status LED. Run validates the whole plan
// before touching a register, then walks the hardware through it.
package boot

import (
	"bootcode-go/errcode"
	"bootcode-go/hal/mcg"
	"bootcode-go/hal/osc"
	"bootcode-go/hal/port"
	"bootcode-go/hal/sim"
	"bootcode-go/hal/uart"
)

// Clock ceilings for the 72 MHz K20 parts.
const (
	MaxCoreHz  = 72000000
	MaxBusHz   = 50000000
	MaxFlashHz = 25000000
)

type Plan struct {
	Board          string    `yaml:"board"`
	CrystalHz      uint32    `yaml:"crystal_hz"`
	CapacitancePF  uint8     `yaml:"capacitance_pf"`
	Range          mcg.Range `yaml:"range"`
	FLLDivisor     uint32    `yaml:"fll_divisor"`
	PLLNumerator   uint8     `yaml:"pll_numerator"`
	PLLDenominator uint8     `yaml:"pll_denominator"`
	Dividers       Dividers  `yaml:"dividers"`

	Console *ConsolePlan `yaml:"console,omitempty"`
	Status  *LEDPlan     `yaml:"status_led,omitempty"`

	// PollLimit bounds every clock generator status poll. Zero spins
	// forever, which is what firmware wants.
	PollLimit int `yaml:"poll_limit,omitempty"`
}

// Dividers are the core, bus and flash clock divisors, each 1..16.
type Dividers struct {
	Core  uint8 `yaml:"core"`
	Bus   uint8 `yaml:"bus"`
	Flash uint8 `yaml:"flash"`
}

// ConsolePlan selects the diagnostic serial port. Divisor wins when set;
// otherwise it is derived from Baud and the core clock.
type ConsolePlan struct {
	Unit    int          `yaml:"unit"`
	Baud    uint32       `yaml:"baud,omitempty"`
	Divisor uart.Divisor `yaml:"divisor,omitempty"`
}

// LEDPlan is the heartbeat LED.
type LEDPlan struct {
	Port port.Name `yaml:"port"`
	Pin  uint8     `yaml:"pin"`
}

// Frequencies are the clocks a plan produces, in Hz.
type Frequencies struct {
	PLL   uint32
	Core  uint32
	Bus   uint32
	Flash uint32
}

// Frequencies derives the clock tree from the plan. It assumes the plan is
// valid; zero dividers yield zero clocks.
func (p Plan) Frequencies() Frequencies {
	f := Frequencies{PLL: mcg.PLLOutput(p.CrystalHz, p.PLLNumerator, p.PLLDenominator)}
	div := func(d uint8) uint32 {
		if d == 0 {
			return 0
		}
		return f.PLL / uint32(d)
	}
	f.Core, f.Bus, f.Flash = div(p.Dividers.Core), div(p.Dividers.Bus), div(p.Dividers.Flash)
	return f
}

// Validate checks every field with the same rules the drivers apply, so a
// plan that passes cannot fail on an argument once Run starts writing.
func (p Plan) Validate() error {
	const op = "boot.plan"
	if p.CrystalHz == 0 {
		return errcode.New(errcode.InvalidConfig, op, "crystal frequency missing")
	}
	if _, err := osc.CapacitanceBits(p.CapacitancePF); err != nil {
		return err
	}
	if err := mcg.CheckFrequencies(p.CrystalHz, p.Range, p.FLLDivisor, p.PLLNumerator, p.PLLDenominator); err != nil {
		return err
	}
	d := p.Dividers
	if err := sim.CheckDividers(d.Core, d.Bus, d.Flash); err != nil {
		return err
	}
	f := p.Frequencies()
	switch {
	case f.Core > MaxCoreHz:
		return errcode.New(errcode.InvalidConfig, op, "core clock above 72 MHz")
	case f.Bus > MaxBusHz:
		return errcode.New(errcode.InvalidConfig, op, "bus clock above 50 MHz")
	case f.Flash > MaxFlashHz:
		return errcode.New(errcode.InvalidConfig, op, "flash clock above 25 MHz")
	case f.Bus > f.Core || f.Flash > f.Bus:
		return errcode.New(errcode.InvalidConfig, op, "clocks must not rise from core to bus to flash")
	}
	if p.PollLimit < 0 {
		return errcode.New(errcode.InvalidConfig, op, "poll limit must not be negative")
	}
	if c := p.Console; c != nil {
		if _, err := c.divisor(f.Core); err != nil {
			return err
		}
	}
	if s := p.Status; s != nil {
		if _, err := sim.PortGate(s.Port); err != nil {
			return err
		}
		if s.Pin >= port.NumPins {
			return errcode.New(errcode.InvalidConfig, op, "status LED pin must be below 32")
		}
		if p.Console != nil {
			name, rx, tx, _ := port.SerialPins(p.Console.Unit)
			if s.Port == name && (s.Pin == rx || s.Pin == tx) {
				return errcode.New(errcode.InUse, op, "status LED pin is a console pin")
			}
		}
	}
	return nil
}

// divisor resolves the console baud divisor. Serial units 0 and 1 run from
// the core clock.
func (c *ConsolePlan) divisor(coreHz uint32) (uart.Divisor, error) {
	if _, _, _, ok := port.SerialPins(c.Unit); !ok {
		return uart.Divisor{}, errcode.New(errcode.UnknownUnit, "boot.plan", "console unit has no pins")
	}
	if c.Divisor != (uart.Divisor{}) {
		return c.Divisor, c.Divisor.Validate()
	}
	return uart.DivisorFor(coreHz, c.Baud)
}

// clone copies p deeply enough that edits to the copy never reach p.
func (p Plan) clone() Plan {
	if p.Console != nil {
		c := *p.Console
		p.Console = &c
	}
	if p.Status != nil {
		s := *p.Status
		p.Status = &s
	}
	return p
}
