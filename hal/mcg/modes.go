package mcg

import (
	"bootcode-go/errcode"
	"bootcode-go/hal/mmio"
	"bootcode-go/hal/osc"
	"bootcode-go/x/mathx"
)

// Mode names the clock generator operating mode.
type Mode uint8

const (
	FEI Mode = iota // FLL engaged, internal reference
	FBE             // FLL bypassed, external reference
	PBE             // PLL bypassed, external reference
	PEE             // PLL engaged, external reference
)

func (m Mode) String() string {
	switch m {
	case FEI:
		return "fei"
	case FBE:
		return "fbe"
	case PBE:
		return "pbe"
	case PEE:
		return "pee"
	}
	return "unknown"
}

// Clock is one of *InternalLocked, *ExternalReference, *PhaseLocked or
// *PLLEngaged. Type-switch on it to reach the transitions that are legal
// from the current mode.
type Clock interface {
	Mode() Mode
	Release()
	clock()
}

// block is the register set shared by whichever mode currently owns it.
type block struct {
	c1, c2, c5, c6, s mmio.Reg8
	pollLimit         int
}

// Option configures Acquire.
type Option func(*block)

// WithPollLimit bounds every status poll to n reads, after which the
// transition fails with errcode.Timeout. Zero (the default) polls forever.
func WithPollLimit(n int) Option { return func(b *block) { b.pollLimit = n } }

// Acquire takes the clock generator and returns the mode the hardware is in.
// Control and status bits must agree on a known mode; anything else is
// errcode.ModeMismatch and leaves the block free.
func Acquire(bus mmio.Bus, opts ...Option) (Clock, error) {
	if !active.Acquire() {
		return nil, errcode.New(errcode.InUse, "mcg.acquire", "clock generator already owned")
	}
	b := &block{
		c1: mmio.R8(bus, Base+offC1),
		c2: mmio.R8(bus, Base+offC2),
		c5: mmio.R8(bus, Base+offC5),
		c6: mmio.R8(bus, Base+offC6),
		s:  mmio.R8(bus, Base+offS),
	}
	for _, o := range opts {
		o(b)
	}
	m, err := b.classify()
	if err != nil {
		active.Release()
		return nil, err
	}
	h := handle{b: b}
	switch m {
	case FEI:
		return &InternalLocked{h}, nil
	case FBE:
		return &ExternalReference{h}, nil
	case PBE:
		return &PhaseLocked{h}, nil
	default:
		return &PLLEngaged{h}, nil
	}
}

func (b *block) classify() (Mode, error) {
	c1, c6, s := b.c1.Get(), b.c6.Get(), b.s.Get()
	irefs := mathx.Bit(c1, c1IREFS)
	clks := mathx.Field(c1, c1CLKS, 2)
	plls := mathx.Bit(c6, c6PLLS)

	var m Mode
	var clkst uint8
	switch {
	case irefs && !plls && clks == clksLockedLoop:
		m, clkst = FEI, clksLockedLoop
	case !irefs && !plls && clks == clksExternal:
		m, clkst = FBE, clksExternal
	case plls && clks == clksExternal:
		m, clkst = PBE, clksExternal
	case !irefs && plls && clks == clksLockedLoop:
		m, clkst = PEE, clkstPLL
	default:
		return 0, errcode.New(errcode.ModeMismatch, "mcg.acquire", "control bits match no known mode")
	}
	if mathx.Bit(s, sIREFST) != irefs || mathx.Bit(s, sPLLST) != plls || mathx.Field(s, sCLKST, 2) != clkst {
		return 0, errcode.New(errcode.ModeMismatch, "mcg.acquire", "status disagrees with "+m.String())
	}
	return m, nil
}

// wait polls cond, giving the block back on timeout so the caller can
// re-acquire and inspect where the hardware stopped.
func (b *block) wait(op, what string, cond func() bool) error {
	if mmio.Spin(b.pollLimit, cond) {
		return nil
	}
	active.Release()
	return errcode.New(errcode.Timeout, op, what)
}

// handle carries ownership of the block from mode to mode.
type handle struct{ b *block }

// Release gives up the clock generator without changing the hardware. A
// later Acquire returns the mode the hardware is in.
func (h *handle) Release() {
	if h.b != nil {
		h.b = nil
		active.Release()
	}
}

func (h *handle) live(op string) error {
	if h.b == nil {
		return errcode.New(errcode.Consumed, op, "clock mode already spent")
	}
	return nil
}

func (h *handle) take() *block {
	b := h.b
	h.b = nil
	return b
}

// InternalLocked is FEI, the reset mode.
type InternalLocked struct{ handle }

// ExternalReference is FBE: the core runs from the crystal while the FLL
// is referenced to the divided crystal.
type ExternalReference struct{ handle }

// PhaseLocked is PBE: the PLL is running and locked, the core still runs
// from the crystal.
type PhaseLocked struct{ handle }

// PLLEngaged is PEE, the terminal boot mode.
type PLLEngaged struct{ handle }

func (*InternalLocked) Mode() Mode    { return FEI }
func (*ExternalReference) Mode() Mode { return FBE }
func (*PhaseLocked) Mode() Mode       { return PBE }
func (*PLLEngaged) Mode() Mode        { return PEE }

func (*InternalLocked) clock()    {}
func (*ExternalReference) clock() {}
func (*PhaseLocked) clock()       {}
func (*PLLEngaged) clock()        {}

// EnableExternalReference starts the crystal path and switches the core
// clock to it. r selects the crystal band, which decides the legal divisor
// table; tok proves the oscillator is running and is spent on success.
//
// Nothing is written unless every argument is valid. Once written, the call
// waits for the oscillator to initialise, for the FLL to leave the internal
// reference and for the external clock to be selected, in that order.
func (m *InternalLocked) EnableExternalReference(r Range, divisor uint32, tok *osc.Token) (*ExternalReference, error) {
	const op = "mcg.enable_external_reference"
	if err := m.live(op); err != nil {
		return nil, err
	}
	frdiv, err := FRDIV(r, divisor)
	if err != nil {
		return nil, err
	}
	if !tok.Valid() {
		return nil, errcode.New(errcode.Consumed, op, "oscillator token missing or spent")
	}
	if err := tok.Redeem(); err != nil {
		return nil, err
	}
	b := m.take()

	c2 := mathx.ReplaceField(uint8(0), uint8(r), c2RANGE, 2)
	b.c2.Set(mathx.WithBit(c2, c2EREFS, true))

	c1 := mathx.ReplaceField(uint8(0), frdiv, c1FRDIV, 3)
	b.c1.Set(mathx.ReplaceField(c1, clksExternal, c1CLKS, 2))

	if err := b.wait(op, "oscillator init", func() bool { return b.s.HasBits(1 << sOSCINIT) }); err != nil {
		return nil, err
	}
	if err := b.wait(op, "fll reference", func() bool { return !b.s.HasBits(1 << sIREFST) }); err != nil {
		return nil, err
	}
	if err := b.wait(op, "clock source", func() bool { return b.s.Field(sCLKST, 2) == clksExternal }); err != nil {
		return nil, err
	}
	return &ExternalReference{handle{b}}, nil
}

// EnablePhaseLock programs the PLL as crystal/denominator*numerator and
// waits until it reports enabled and locked.
func (m *ExternalReference) EnablePhaseLock(numerator, denominator uint8) (*PhaseLocked, error) {
	const op = "mcg.enable_phase_lock"
	if err := m.live(op); err != nil {
		return nil, err
	}
	if err := CheckPLL(numerator, denominator); err != nil {
		return nil, err
	}
	b := m.take()

	b.c5.ReplaceField(denominator-MinRef, c5PRDIV, 5)
	b.c6.Update(func(v uint8) uint8 {
		v = mathx.ReplaceField(v, numerator-MinVCO, c6VDIV, 6)
		return mathx.WithBit(v, c6PLLS, true)
	})

	if err := b.wait(op, "pll select", func() bool { return b.s.HasBits(1 << sPLLST) }); err != nil {
		return nil, err
	}
	if err := b.wait(op, "pll lock", func() bool { return b.s.HasBits(1 << sLOCK) }); err != nil {
		return nil, err
	}
	return &PhaseLocked{handle{b}}, nil
}

// SelectPhaseLockedSource switches the core clock to the PLL output.
func (m *PhaseLocked) SelectPhaseLockedSource() (*PLLEngaged, error) {
	const op = "mcg.select_phase_locked_source"
	if err := m.live(op); err != nil {
		return nil, err
	}
	b := m.take()

	b.c1.ReplaceField(clksLockedLoop, c1CLKS, 2)

	if err := b.wait(op, "pll source", func() bool { return b.s.Field(sCLKST, 2) == clkstPLL }); err != nil {
		return nil, err
	}
	return &PLLEngaged{handle{b}}, nil
}
