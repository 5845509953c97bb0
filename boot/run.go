package boot

import (
	"io"

	"bootcode-go/errcode"
	"bootcode-go/hal/mcg"
	"bootcode-go/hal/mmio"
	"bootcode-go/hal/osc"
	"bootcode-go/hal/port"
	"bootcode-go/hal/sim"
	"bootcode-go/hal/uart"
	"bootcode-go/hal/wdog"
	"bootcode-go/x/fmtx"
)

// System is everything Run claimed. Close gives it all back.
type System struct {
	Plan  Plan
	Freq  Frequencies
	SIM   *sim.SIM
	Osc   *osc.Oscillator
	Clock *mcg.PLLEngaged

	// Console and Status are nil when the plan leaves them out.
	Console *uart.Transceiver
	Status  *port.Gpio

	ports map[port.Name]*port.Port
	log   []io.Writer
}

// Option configures Run.
type Option func(*System)

// WithLog mirrors boot progress to w from the first step, before the
// console exists.
func WithLog(w io.Writer) Option {
	return func(s *System) {
		if w != nil {
			s.log = append(s.log, w)
		}
	}
}

func (s *System) logf(format string, a ...any) {
	for _, w := range s.log {
		_, _ = fmtx.Fprintf(w, "[boot] "+format+"\r\n", a...)
	}
}

// Run validates plan and brings the hardware up in order: watchdog off,
// system dividers, crystal, FEI to FBE to PBE to PEE, console, status LED.
// The clock generator must be in FEI when Run starts.
//
// On error everything claimed so far is released again; the clock
// configuration already applied stays as it is.
func Run(bus mmio.Bus, plan Plan, opts ...Option) (*System, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	sys := &System{Plan: plan.clone(), Freq: plan.Frequencies(), ports: make(map[port.Name]*port.Port)}
	for _, o := range opts {
		o(sys)
	}
	if err := sys.bringUp(bus); err != nil {
		sys.logf("failed: %v", err)
		_ = sys.Close()
		return nil, err
	}
	return sys, nil
}

func (s *System) bringUp(bus mmio.Bus) error {
	p := s.Plan
	s.logf("board %s", p.Board)

	wdog.Disable(bus)
	s.logf("watchdog disabled")

	var err error
	if s.SIM, err = sim.New(bus); err != nil {
		return err
	}
	d := p.Dividers
	if err := s.SIM.SetDividers(d.Core, d.Bus, d.Flash); err != nil {
		return err
	}
	s.logf("dividers core /%d bus /%d flash /%d", d.Core, d.Bus, d.Flash)

	if s.Osc, err = osc.New(bus); err != nil {
		return err
	}
	tok, err := s.Osc.Enable(p.CapacitancePF)
	if err != nil {
		return err
	}
	s.logf("crystal %d Hz, %d pF", p.CrystalHz, p.CapacitancePF)

	if err := s.clocks(bus, tok); err != nil {
		// A token the clock generator never took is still outstanding and
		// would pin the oscillator.
		if tok.Valid() {
			_ = tok.Redeem()
		}
		return err
	}
	s.logf("pll %d Hz: core %d bus %d flash %d", s.Freq.PLL, s.Freq.Core, s.Freq.Bus, s.Freq.Flash)

	if c := p.Console; c != nil {
		if err := s.console(c); err != nil {
			return err
		}
		s.log = append(s.log, s.Console)
		s.logf("console uart%d sbr %d brfa %d", c.Unit, s.Console.Divisor().SBR, s.Console.Divisor().BRFA)
	}
	if l := p.Status; l != nil {
		if err := s.status(l); err != nil {
			return err
		}
		s.logf("status led PT%v%d", l.Port, l.Pin)
	}
	s.logf("sdid %08x", s.SIM.DeviceID())
	return nil
}

func (s *System) clocks(bus mmio.Bus, tok *osc.Token) error {
	p := s.Plan
	var opts []mcg.Option
	if p.PollLimit > 0 {
		opts = append(opts, mcg.WithPollLimit(p.PollLimit))
	}
	c, err := mcg.Acquire(bus, opts...)
	if err != nil {
		return err
	}
	fei, ok := c.(*mcg.InternalLocked)
	if !ok {
		c.Release()
		return errcode.New(errcode.ModeMismatch, "boot.run", "clock generator in "+c.Mode().String()+", want fei")
	}
	fbe, err := fei.EnableExternalReference(p.Range, p.FLLDivisor, tok)
	if err != nil {
		return err
	}
	s.logf("fbe: range %v, fll divisor %d", p.Range, p.FLLDivisor)
	pbe, err := fbe.EnablePhaseLock(p.PLLNumerator, p.PLLDenominator)
	if err != nil {
		return err
	}
	s.logf("pbe: pll %d/%d locked", p.PLLNumerator, p.PLLDenominator)
	s.Clock, err = pbe.SelectPhaseLockedSource()
	return err
}

func (s *System) port(name port.Name) (*port.Port, error) {
	if p, ok := s.ports[name]; ok {
		return p, nil
	}
	p, err := s.SIM.Port(name)
	if err != nil {
		return nil, err
	}
	s.ports[name] = p
	return p, nil
}

func (s *System) console(c *ConsolePlan) error {
	div, err := c.divisor(s.Freq.Core)
	if err != nil {
		return err
	}
	name, rxPin, txPin, _ := port.SerialPins(c.Unit)
	p, err := s.port(name)
	if err != nil {
		return err
	}
	pin, err := p.Pin(rxPin)
	if err != nil {
		return err
	}
	rx, err := pin.MakeRx()
	if err != nil {
		pin.Release()
		return err
	}
	if pin, err = p.Pin(txPin); err != nil {
		rx.Release()
		return err
	}
	tx, err := pin.MakeTx()
	if err != nil {
		pin.Release()
		rx.Release()
		return err
	}
	if s.Console, err = s.SIM.UART(c.Unit, rx, tx, div); err != nil {
		rx.Release()
		tx.Release()
		return err
	}
	return nil
}

func (s *System) status(l *LEDPlan) error {
	p, err := s.port(l.Port)
	if err != nil {
		return err
	}
	pin, err := p.Pin(l.Pin)
	if err != nil {
		return err
	}
	if s.Status, err = pin.MakeGPIO(); err != nil {
		pin.Release()
		return err
	}
	s.Status.Output()
	s.Status.High()
	return nil
}

// Close releases everything in reverse order of acquisition and returns
// the first error. The clock configuration is left running.
func (s *System) Close() error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	if s.Status != nil {
		s.Status.Release()
		s.Status = nil
	}
	if s.Console != nil {
		keep(s.Console.Release())
		s.Console = nil
	}
	for name, p := range s.ports {
		keep(p.Release())
		delete(s.ports, name)
	}
	if s.Clock != nil {
		s.Clock.Release()
		s.Clock = nil
	}
	if s.Osc != nil {
		keep(s.Osc.Release())
		s.Osc = nil
	}
	if s.SIM != nil {
		s.SIM.Release()
		s.SIM = nil
	}
	s.log = nil
	return first
}

// Report writes a summary of the running system to w.
func (s *System) Report(w io.Writer) {
	_, _ = fmtx.Fprintf(w, "board   %s\r\n", s.Plan.Board)
	_, _ = fmtx.Fprintf(w, "pll     %d Hz\r\n", s.Freq.PLL)
	_, _ = fmtx.Fprintf(w, "core    %d Hz\r\n", s.Freq.Core)
	_, _ = fmtx.Fprintf(w, "bus     %d Hz\r\n", s.Freq.Bus)
	_, _ = fmtx.Fprintf(w, "flash   %d Hz\r\n", s.Freq.Flash)
	if s.SIM != nil {
		id := s.SIM.UniqueID()
		_, _ = fmtx.Fprintf(w, "sdid    %08x\r\n", s.SIM.DeviceID())
		_, _ = fmtx.Fprintf(w, "uid     %08x-%08x-%08x-%08x\r\n", id[0], id[1], id[2], id[3])
	}
}
