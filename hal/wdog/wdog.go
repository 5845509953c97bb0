// Package wdog switches the watchdog off at reset. The watchdog is armed
// out of reset and has to be unlocked and disabled within a few bus cycles,
// so there is no handle and no state: firmware calls Disable first thing.
package wdog

import "bootcode-go/hal/mmio"

const Base = 0x40052000

const (
	offSTCTRLH = 0x00
	offUNLOCK  = 0x0E

	unlockKey1 = 0xC520
	unlockKey2 = 0xD928

	stctrlhWDOGEN = 1 << 0
)

// Disable writes the two-word unlock sequence and clears the enable bit.
func Disable(bus mmio.Bus) {
	unlock := mmio.R16(bus, Base+offUNLOCK)
	unlock.Set(unlockKey1)
	unlock.Set(unlockKey2)
	mmio.R16(bus, Base+offSTCTRLH).ClearBits(stctrlhWDOGEN)
}

// Enabled reports the watchdog enable bit.
func Enabled(bus mmio.Bus) bool {
	return mmio.R16(bus, Base+offSTCTRLH).Get()&stctrlhWDOGEN != 0
}
