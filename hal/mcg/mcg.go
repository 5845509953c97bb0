// Package mcg walks the multipurpose clock generator from its reset mode to
// the PLL.
//
// Each clock mode is its own type and owns the register block. A transition
// spends the value it is called on and hands back the next mode, so only one
// live view of the hardware exists at any time and a stale mode cannot be
// used again. The legal path is fixed:
//
//	InternalLocked (FEI) -> ExternalReference (FBE) -> PhaseLocked (PBE) -> PLLEngaged (PEE)
//
// Every register write is preceded by full validation of its inputs, and
// every transition polls the status register until the hardware confirms it.
package mcg

import (
	"bootcode-go/errcode"
	"bootcode-go/hal/internal/guard"
	"bootcode-go/hal/mmio"
	"bootcode-go/x/mathx"
)

const Base = 0x40064000

var active guard.Flag

// Register offsets.
const (
	offC1    = 0x0
	offC2    = 0x1
	offC3    = 0x2
	offC4    = 0x3
	offC5    = 0x4
	offC6    = 0x5
	offS     = 0x6
	offSC    = 0x8
	offATCVH = 0xA
	offATCVL = 0xB
	offC7    = 0xC
	offC8    = 0xD
)

// Field positions.
const (
	c1IREFS  = 2
	c1FRDIV  = 3 // 3 bits
	c1CLKS   = 6 // 2 bits
	c2EREFS  = 2
	c2RANGE  = 4 // 2 bits
	c5PRDIV  = 0 // 5 bits
	c6VDIV   = 0 // 6 bits
	c6PLLS   = 6
	sOSCINIT = 1
	sCLKST   = 2 // 2 bits
	sIREFST  = 4
	sPLLST   = 5
	sLOCK    = 6
)

// Clock source encodings. C1.CLKS uses 0 for "whichever locked loop is
// selected"; S.CLKST tells the FLL (0) and the PLL (3) apart.
const (
	clksLockedLoop = 0
	clksInternal   = 1
	clksExternal   = 2
	clkstPLL       = 3
)

// PLL divider limits.
const (
	MinVCO = 24
	MaxVCO = 55
	MinRef = 1
	MaxRef = 25
)

// Range is the crystal frequency band, C2.RANGE0.
type Range uint8

const (
	Low Range = iota
	High
	VeryHigh
)

func (r Range) String() string {
	switch r {
	case Low:
		return "low"
	case High:
		return "high"
	case VeryHigh:
		return "very_high"
	}
	return "invalid"
}

// ParseRange is the inverse of Range.String.
func ParseRange(s string) (Range, error) {
	for _, r := range []Range{Low, High, VeryHigh} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, errcode.New(errcode.InvalidConfig, "mcg.range", "unknown range "+s)
}

func (r Range) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Range) UnmarshalText(b []byte) error {
	v, err := ParseRange(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// FLL reference divisors, indexed by FRDIV.
var (
	lowRangeDivisors  = []uint32{1, 2, 4, 8, 16, 32, 64, 128}
	highRangeDivisors = []uint32{32, 64, 128, 256, 512, 1024, 1280, 1536}
)

// Divisors returns the legal external reference divisors for r, in FRDIV
// order.
func Divisors(r Range) []uint32 {
	if r == Low {
		return append([]uint32(nil), lowRangeDivisors...)
	}
	return append([]uint32(nil), highRangeDivisors...)
}

// FRDIV returns the divider field value for divisor in range r.
func FRDIV(r Range, divisor uint32) (uint8, error) {
	if r > VeryHigh {
		return 0, errcode.New(errcode.InvalidConfig, "mcg.frdiv", "invalid crystal range")
	}
	table := highRangeDivisors
	if r == Low {
		table = lowRangeDivisors
	}
	i := mathx.IndexOf(table, divisor)
	if i < 0 {
		return 0, errcode.New(errcode.InvalidConfig, "mcg.frdiv",
			"divisor not legal for "+r.String()+" range")
	}
	return uint8(i), nil
}

// CheckPLL validates the PLL multiplier and reference divider.
func CheckPLL(numerator, denominator uint8) error {
	if !mathx.Between(numerator, MinVCO, MaxVCO) {
		return errcode.New(errcode.InvalidConfig, "mcg.pll", "VCO multiplier outside 24..55")
	}
	if !mathx.Between(denominator, MinRef, MaxRef) {
		return errcode.New(errcode.InvalidConfig, "mcg.pll", "reference divider outside 1..25")
	}
	return nil
}

// Reference frequency windows from the K20 datasheet.
const (
	minFLLRefHz = 31250
	maxFLLRefHz = 39063
	minPLLRefHz = 2000000
	maxPLLRefHz = 4000000
	minVCOHz    = 48000000
	maxVCOHz    = 100000000
)

// PLLOutput returns crystalHz/denominator*numerator.
func PLLOutput(crystalHz uint32, numerator, denominator uint8) uint32 {
	if denominator == 0 {
		return 0
	}
	return uint32(uint64(crystalHz) * uint64(numerator) / uint64(denominator))
}

// CheckFrequencies validates a whole clock path against the crystal: the
// divided FLL reference, the PLL reference and the VCO output must all land
// in their operating windows.
func CheckFrequencies(crystalHz uint32, r Range, divisor uint32, numerator, denominator uint8) error {
	const op = "mcg.frequencies"
	if _, err := FRDIV(r, divisor); err != nil {
		return err
	}
	if err := CheckPLL(numerator, denominator); err != nil {
		return err
	}
	if fll := crystalHz / divisor; !mathx.Between(fll, minFLLRefHz, maxFLLRefHz) {
		return errcode.New(errcode.InvalidConfig, op, "fll reference outside 31.25..39.0625 kHz")
	}
	if ref := crystalHz / uint32(denominator); !mathx.Between(ref, minPLLRefHz, maxPLLRefHz) {
		return errcode.New(errcode.InvalidConfig, op, "pll reference outside 2..4 MHz")
	}
	if vco := PLLOutput(crystalHz, numerator, denominator); !mathx.Between(vco, minVCOHz, maxVCOHz) {
		return errcode.New(errcode.InvalidConfig, op, "pll output outside 48..100 MHz")
	}
	return nil
}

// Registers is a raw copy of the block for diagnostics.
type Registers struct {
	C1, C2, C3, C4, C5, C6, S, SC, ATCVH, ATCVL, C7, C8 uint8
}

// Snapshot reads every register without taking ownership. It is for dumps
// only; nothing may be decided from it.
func Snapshot(bus mmio.Bus) Registers {
	r := func(off uintptr) uint8 { return bus.Load8(Base + off) }
	return Registers{
		C1: r(offC1), C2: r(offC2), C3: r(offC3), C4: r(offC4),
		C5: r(offC5), C6: r(offC6), S: r(offS), SC: r(offSC),
		ATCVH: r(offATCVH), ATCVL: r(offATCVL), C7: r(offC7), C8: r(offC8),
	}
}
