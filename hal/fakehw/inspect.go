package fakehw

// Test and tooling hooks. None of these go through the model, so peeking a
// status register does not advance a pending settle.

// Peek8 returns the stored byte at a without side effects.
func (c *Chip) Peek8(a uintptr) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem[a]
}

// Peek32 returns the stored little-endian word at a without side effects.
func (c *Chip) Peek32(a uintptr) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get32(a)
}

// Poke8 stores v at a without triggering the model or the write log.
func (c *Chip) Poke8(a uintptr, v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[a] = v
}

// Poke32 stores v at a without triggering the model or the write log.
func (c *Chip) Poke32(a uintptr, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put32(a, v)
}

// Freeze stops the model from updating the status register at a (the clock
// generator S register or a UART S1), simulating hardware that never
// confirms a transition.
func (c *Chip) Freeze(a uintptr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen[a] = true
}

// Thaw undoes Freeze and lets a frozen clock generator catch up.
func (c *Chip) Thaw(a uintptr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.frozen, a)
	if a == mcgS {
		c.mcgChanged()
	}
}

// TxData returns the bytes transmitted so far by UART unit.
func (c *Chip) TxData(unit int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if unit < 0 || unit >= len(c.tx) {
		return nil
	}
	return append([]byte(nil), c.tx[unit]...)
}

// InjectRx queues bytes on the receive side of UART unit.
func (c *Chip) InjectRx(unit int, b ...byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if unit >= 0 && unit < len(c.rx) {
		c.rx[unit] = append(c.rx[unit], b...)
	}
}

// Resets counts system reset requests written to AIRCR.
func (c *Chip) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// Writes returns a copy of the store log.
func (c *Chip) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Write(nil), c.writes...)
}

// ClearWrites empties the store log.
func (c *Chip) ClearWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}
