// Package osc drives the external crystal oscillator (OSC0) and issues the
// token the clock generator needs before it can reference the crystal.
package osc

import (
	"bootcode-go/errcode"
	"bootcode-go/hal/internal/guard"
	"bootcode-go/hal/mmio"
	"bootcode-go/x/mathx"
)

const (
	Base = 0x40065000

	crERCLKEN = 1 << 7

	// MaxCapacitancePF is the largest load the SC2P..SC16P bits can add.
	MaxCapacitancePF = 30
)

var active guard.Flag

// Oscillator is the exclusive handle on the OSC0 block.
type Oscillator struct {
	cr          mmio.Reg8
	outstanding *Token
	released    bool
}

// Token proves the crystal oscillator has been enabled. Only Enable creates
// one and it can be redeemed once.
type Token struct {
	o *Oscillator
}

// New takes ownership of the oscillator block.
func New(bus mmio.Bus) (*Oscillator, error) {
	if !active.Acquire() {
		return nil, errcode.New(errcode.InUse, "osc.new", "oscillator already owned")
	}
	return &Oscillator{cr: mmio.R8(bus, Base)}, nil
}

// CapacitanceBits maps a load capacitance in picofarads onto CR[3:0]. The
// select bits run in the opposite order to their weights: bit3 adds 2 pF,
// bit2 4 pF, bit1 8 pF and bit0 16 pF.
func CapacitanceBits(pF uint8) (uint8, error) {
	if !mathx.Even(pF) || pF > MaxCapacitancePF {
		return 0, errcode.New(errcode.InvalidConfig, "osc.enable",
			"capacitance must be even and at most 30 pF")
	}
	var cr uint8
	cr = mathx.WithBit(cr, 3, mathx.Bit(pF, 1))
	cr = mathx.WithBit(cr, 2, mathx.Bit(pF, 2))
	cr = mathx.WithBit(cr, 1, mathx.Bit(pF, 3))
	cr = mathx.WithBit(cr, 0, mathx.Bit(pF, 4))
	return cr, nil
}

// Enable programs the load capacitance and starts the crystal. The value is
// validated before the register is touched. Only one token may be
// outstanding at a time.
func (o *Oscillator) Enable(capacitancePF uint8) (*Token, error) {
	if o == nil || o.released {
		return nil, errcode.New(errcode.Consumed, "osc.enable", "oscillator released")
	}
	bits, err := CapacitanceBits(capacitancePF)
	if err != nil {
		return nil, err
	}
	if o.outstanding != nil {
		return nil, errcode.New(errcode.InUse, "osc.enable", "token not yet redeemed")
	}
	o.cr.Set(bits | crERCLKEN)
	o.outstanding = &Token{o: o}
	return o.outstanding, nil
}

// Enabled reports whether the external reference clock is switched on.
func (o *Oscillator) Enabled() bool { return o.cr.HasBits(crERCLKEN) }

// Release gives the block back. It fails while a token is outstanding,
// since that token still vouches for this handle.
func (o *Oscillator) Release() error {
	if o == nil || o.released {
		return nil
	}
	if o.outstanding != nil {
		return errcode.New(errcode.Busy, "osc.release", "token outstanding")
	}
	o.released = true
	active.Release()
	return nil
}

// Valid reports whether t can still be redeemed.
func (t *Token) Valid() bool { return t != nil && t.o != nil && t.o.outstanding == t }

// Redeem spends the token.
func (t *Token) Redeem() error {
	if !t.Valid() {
		return errcode.New(errcode.Consumed, "osc.token", "token invalid or already redeemed")
	}
	t.o.outstanding = nil
	t.o = nil
	return nil
}
