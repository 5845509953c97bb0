package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"bootcode-go/boot"
	"bootcode-go/hal/fakehw"
	"bootcode-go/hal/mcg"
	"bootcode-go/hal/osc"
	"bootcode-go/hal/sim"
	"bootcode-go/hal/uart"
	"bootcode-go/hal/wdog"
)

var errQuit = errors.New("quit")

// session is the state behind the shell: one simulated chip, the plan the
// steps read their arguments from, and whatever handles the steps hold.
type session struct {
	out    io.Writer
	plan   boot.Plan
	settle int
	chip   *fakehw.Chip

	osc   *osc.Oscillator
	tok   *osc.Token
	sim   *sim.SIM
	clock mcg.Clock
	sys   *boot.System
}

func newSession(out io.Writer, plan boot.Plan, settle int) *session {
	s := &session{out: out, plan: plan, settle: settle}
	s.chip = fakehw.New(fakehw.WithSettle(settle))
	return s
}

type command struct {
	usage string
	run   func(s *session, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":     {"help", (*session).help},
		"boards":   {"boards", (*session).boards},
		"plan":     {"plan", (*session).showPlan},
		"use":      {"use <board>", (*session).use},
		"load":     {"load <file>", (*session).load},
		"limit":    {"limit <polls>", (*session).limit},
		"reset":    {"reset [settle]", (*session).reset},
		"wdog":     {"wdog", (*session).wdog},
		"dividers": {"dividers", (*session).dividers},
		"osc":      {"osc", (*session).enableOsc},
		"acquire":  {"acquire", (*session).acquire},
		"fbe":      {"fbe", (*session).fbe},
		"pbe":      {"pbe", (*session).pbe},
		"pee":      {"pee", (*session).pee},
		"boot":     {"boot", (*session).boot},
		"report":   {"report", (*session).report},
		"dump":     {"dump mcg|sim|uart0|uart1", (*session).dump},
		"console":  {"console [unit]", (*session).console},
		"freeze":   {"freeze <addr>", (*session).freeze},
		"thaw":     {"thaw <addr>", (*session).thaw},
		"release":  {"release", (*session).release},
		"quit":     {"quit", func(*session, []string) error { return errQuit }},
	}
	commands["exit"] = commands["quit"]
}

// exec runs one command line already split into words.
func (s *session) exec(words []string) error {
	if len(words) == 0 {
		return nil
	}
	c, ok := commands[strings.ToLower(words[0])]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", words[0])
	}
	return c.run(s, words[1:])
}

func (s *session) help([]string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		if name != "exit" {
			names = append(names, commands[name].usage)
		}
	}
	slices.Sort(names)
	for _, u := range names {
		fmt.Fprintln(s.out, " ", u)
	}
	return nil
}

func (s *session) boards([]string) error {
	for _, b := range boot.Boards() {
		fmt.Fprintln(s.out, b)
	}
	return nil
}

func (s *session) showPlan([]string) error {
	b, err := boot.MarshalPlanYAML(s.plan)
	if err != nil {
		return err
	}
	_, err = s.out.Write(b)
	return err
}

func (s *session) use(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: use <board>")
	}
	p, err := boot.LookupPlan(args[0])
	if err != nil {
		return err
	}
	s.plan = p
	return nil
}

func (s *session) load(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: load <file>")
	}
	p, err := boot.ReadPlanFile(args[0])
	if err != nil {
		return err
	}
	s.plan = p
	return nil
}

func (s *session) limit(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: limit <polls>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return fmt.Errorf("bad poll limit %q", args[0])
	}
	s.plan.PollLimit = n
	return nil
}

// reset gives back every handle and starts over on a fresh chip.
func (s *session) reset(args []string) error {
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("bad settle %q", args[0])
		}
		s.settle = n
	}
	if err := s.release(nil); err != nil {
		return err
	}
	s.chip = fakehw.New(fakehw.WithSettle(s.settle))
	return nil
}

func (s *session) wdog([]string) error {
	wdog.Disable(s.chip)
	fmt.Fprintln(s.out, "watchdog enabled:", wdog.Enabled(s.chip))
	return nil
}

func (s *session) dividers([]string) error {
	if s.sim == nil {
		g, err := sim.New(s.chip)
		if err != nil {
			return err
		}
		s.sim = g
	}
	d := s.plan.Dividers
	if err := s.sim.SetDividers(d.Core, d.Bus, d.Flash); err != nil {
		return err
	}
	core, bus, flash := s.sim.Dividers()
	fmt.Fprintf(s.out, "outdiv1 %d outdiv2 %d outdiv4 %d\n", core, bus, flash)
	return nil
}

func (s *session) enableOsc([]string) error {
	if s.osc == nil {
		o, err := osc.New(s.chip)
		if err != nil {
			return err
		}
		s.osc = o
	}
	tok, err := s.osc.Enable(s.plan.CapacitancePF)
	if err != nil {
		return err
	}
	s.tok = tok
	fmt.Fprintf(s.out, "crystal enabled, %d pF\n", s.plan.CapacitancePF)
	return nil
}

func (s *session) acquire([]string) error {
	if s.clock != nil {
		return fmt.Errorf("already holding the clock generator in %v", s.clock.Mode())
	}
	var opts []mcg.Option
	if s.plan.PollLimit > 0 {
		opts = append(opts, mcg.WithPollLimit(s.plan.PollLimit))
	}
	c, err := mcg.Acquire(s.chip, opts...)
	if err != nil {
		return err
	}
	s.clock = c
	fmt.Fprintln(s.out, "mode", c.Mode())
	return nil
}

// step runs one transition. On failure the old handle is released as well,
// so the next step starts from acquire.
func (s *session) step(next func() (mcg.Clock, error)) error {
	old := s.clock
	c, err := next()
	if err != nil {
		old.Release()
		s.clock = nil
		return err
	}
	s.clock = c
	fmt.Fprintln(s.out, "mode", c.Mode())
	return nil
}

func (s *session) fbe([]string) error {
	fei, ok := s.clock.(*mcg.InternalLocked)
	if !ok {
		return s.wrongMode("fei")
	}
	return s.step(func() (mcg.Clock, error) {
		c, err := fei.EnableExternalReference(s.plan.Range, s.plan.FLLDivisor, s.tok)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func (s *session) pbe([]string) error {
	fbe, ok := s.clock.(*mcg.ExternalReference)
	if !ok {
		return s.wrongMode("fbe")
	}
	return s.step(func() (mcg.Clock, error) {
		c, err := fbe.EnablePhaseLock(s.plan.PLLNumerator, s.plan.PLLDenominator)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func (s *session) pee([]string) error {
	pbe, ok := s.clock.(*mcg.PhaseLocked)
	if !ok {
		return s.wrongMode("pbe")
	}
	return s.step(func() (mcg.Clock, error) {
		c, err := pbe.SelectPhaseLockedSource()
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func (s *session) wrongMode(want string) error {
	if s.clock == nil {
		return errors.New("clock generator not held, run acquire")
	}
	return fmt.Errorf("clock generator is in %v, need %s", s.clock.Mode(), want)
}

// boot drops the stepper's handles and runs the whole plan.
func (s *session) boot([]string) error {
	if err := s.release(nil); err != nil {
		return err
	}
	sys, err := boot.Run(s.chip, s.plan, boot.WithLog(s.out))
	if err != nil {
		return err
	}
	s.sys = sys
	return nil
}

func (s *session) report([]string) error {
	if s.sys == nil {
		return errors.New("nothing booted")
	}
	s.sys.Report(s.out)
	return nil
}

func (s *session) dump(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dump mcg|sim|uart0|uart1")
	}
	switch what := args[0]; what {
	case "mcg":
		fmt.Fprintf(s.out, "%+v\n", mcg.Snapshot(s.chip))
	case "sim":
		fmt.Fprintf(s.out, "%+v\n", sim.Snapshot(s.chip))
	case "uart0", "uart1":
		r, err := uart.Snapshot(s.chip, int(what[4]-'0'))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%+v\n", r)
	default:
		return fmt.Errorf("cannot dump %q", what)
	}
	return nil
}

func (s *session) console(args []string) error {
	unit := 0
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad unit %q", args[0])
		}
		unit = n
	}
	if _, err := uart.Snapshot(s.chip, unit); err != nil {
		return err
	}
	_, err := s.out.Write(s.chip.TxData(unit))
	return err
}

func parseAddr(args []string) (uintptr, error) {
	if len(args) != 1 {
		return 0, errors.New("need one register address")
	}
	v, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", args[0])
	}
	return uintptr(v), nil
}

func (s *session) freeze(args []string) error {
	a, err := parseAddr(args)
	if err != nil {
		return err
	}
	s.chip.Freeze(a)
	return nil
}

func (s *session) thaw(args []string) error {
	a, err := parseAddr(args)
	if err != nil {
		return err
	}
	s.chip.Thaw(a)
	return nil
}

// release gives back everything the session holds. The chip keeps its
// register contents.
func (s *session) release([]string) error {
	if s.sys != nil {
		if err := s.sys.Close(); err != nil {
			return err
		}
		s.sys = nil
	}
	if s.clock != nil {
		s.clock.Release()
		s.clock = nil
	}
	if s.tok.Valid() {
		_ = s.tok.Redeem()
	}
	s.tok = nil
	if s.osc != nil {
		if err := s.osc.Release(); err != nil {
			return err
		}
		s.osc = nil
	}
	if s.sim != nil {
		s.sim.Release()
		s.sim = nil
	}
	return nil
}
