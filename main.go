//go:build mk20dx256

package main

import (
	"device/arm"

	"bootcode-go/boot"
	"bootcode-go/hal/fault"
	"bootcode-go/hal/mmio"
)

// Busy-wait iterations for half a heartbeat at 72 MHz.
const halfBeat = 6_000_000

func main() {
	bus := mmio.Hardware()
	fault.SetBus(bus)

	sys, err := boot.Run(bus, boot.MustPlan("teensy31"))
	if sys != nil && sys.Console != nil {
		fault.SetSink(sys.Console)
	}
	fault.Check(err)

	sys.Report(sys.Console)
	for {
		sys.Status.Toggle()
		delay(halfBeat)
	}
}

func delay(n int) {
	for i := 0; i < n; i++ {
		arm.Asm("nop")
	}
}
