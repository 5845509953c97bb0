// Package fault is the end of the line for unrecoverable errors: report the
// error on the diagnostic console if one is attached, request a system reset
// and stop.
package fault

import (
	"tinygo.org/x/drivers"

	"bootcode-go/hal/mmio"
	"bootcode-go/x/fmtx"
)

const (
	// AIRCR is the application interrupt and reset control register.
	AIRCR = 0xE000ED0C
	// ResetRequest is VECTKEY with SYSRESETREQ set.
	ResetRequest = 0x05FA0004
)

// Reporter carries where a fatal error is reported and which bus the reset
// request goes out on. Either may be nil.
type Reporter struct {
	Sink drivers.UART
	Bus  mmio.Bus
}

// Fatal reports err, requests a reset and halts. It does not return.
func (r *Reporter) Fatal(err error) {
	if r.Sink != nil {
		_, _ = fmtx.Fprintf(r.Sink, "Panic occured! %v\r\n", err)
	}
	if r.Bus != nil {
		r.Bus.Store32(AIRCR, ResetRequest)
	}
	halt(err)
}

var std Reporter

// SetSink attaches the console used by Fatal.
func SetSink(u drivers.UART) { std.Sink = u }

// SetBus sets the bus Fatal resets through.
func SetBus(b mmio.Bus) { std.Bus = b }

// Fatal reports through the package reporter.
func Fatal(err error) { std.Fatal(err) }

// Check calls Fatal when err is non-nil.
func Check(err error) {
	if err != nil {
		std.Fatal(err)
	}
}
