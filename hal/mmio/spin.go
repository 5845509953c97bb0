package mmio

// Spin polls done until it reports true. limit bounds the number of polls;
// zero spins forever, which is the boot-time behaviour: a status bit that
// never rises hangs the caller. Spin reports whether done became true.
func Spin(limit int, done func() bool) bool {
	for n := 0; limit <= 0 || n < limit; n++ {
		if done() {
			return true
		}
	}
	return false
}
