package port

// Serial pin map. Only these pins carry a UART function on alternative 3.
var serialPins = [...]struct {
	port   Name
	rx, tx uint8
}{
	0: {B, 16, 17},
	1: {C, 3, 4},
}

// RxUnit reports which serial unit pin index of port name receives for.
func RxUnit(name Name, index uint8) (int, bool) {
	for unit, s := range serialPins {
		if s.port == name && s.rx == index {
			return unit, true
		}
	}
	return 0, false
}

// TxUnit reports which serial unit pin index of port name transmits for.
func TxUnit(name Name, index uint8) (int, bool) {
	for unit, s := range serialPins {
		if s.port == name && s.tx == index {
			return unit, true
		}
	}
	return 0, false
}

// SerialPins returns the receive and transmit pins wired to unit.
func SerialPins(unit int) (name Name, rx, tx uint8, ok bool) {
	if unit < 0 || unit >= len(serialPins) {
		return 0, 0, 0, false
	}
	s := serialPins[unit]
	return s.port, s.rx, s.tx, true
}

// Gpio is a pin muxed as a digital line. All accesses go through the
// bit-band alias, so each one touches only this pin. A released line
// ignores writes and reads low.
type Gpio struct{ line }

func (g *Gpio) drive(off uintptr, v bool) {
	if g.live() {
		g.p.gpioBit(off, g.index).Set(v)
	}
}

func (g *Gpio) sample(off uintptr) bool {
	return g.live() && g.p.gpioBit(off, g.index).Get()
}

// Output makes the line drive its output latch.
func (g *Gpio) Output() { g.drive(pddr, true) }

// Input makes the line high impedance.
func (g *Gpio) Input() { g.drive(pddr, false) }

// Set drives the output latch high or low.
func (g *Gpio) Set(high bool) {
	if high {
		g.High()
	} else {
		g.Low()
	}
}

func (g *Gpio) High()   { g.drive(psor, true) }
func (g *Gpio) Low()    { g.drive(pcor, true) }
func (g *Gpio) Toggle() { g.drive(ptor, true) }

// Get samples the pin.
func (g *Gpio) Get() bool { return g.sample(pdir) }

// Latched reports the output latch rather than the pin level.
func (g *Gpio) Latched() bool { return g.sample(pdor) }
