//go:build !mk20dx256

package fault

// Halted is the panic value Fatal raises on the host, where there is no
// reset to wait for.
type Halted struct{ Err error }

func (h Halted) Error() string { return "halted: " + h.Err.Error() }
func (h Halted) Unwrap() error { return h.Err }

func halt(err error) { panic(Halted{Err: err}) }
