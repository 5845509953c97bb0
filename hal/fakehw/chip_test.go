package fakehw

import (
	"testing"

	"bootcode-go/hal/mmio"
)

func TestResetState(t *testing.T) {
	c := New()
	if got := c.Load8(mcgC1); got != 0x04 {
		t.Fatalf("C1 reset = %#x", got)
	}
	if got := c.Load8(mcgS); got != 0x10 {
		t.Fatalf("S reset = %#x, want IREFST only", got)
	}
	if len(c.Writes()) != 0 {
		t.Fatal("reset should not log writes")
	}
}

func TestMCGStatusFollowsControl(t *testing.T) {
	c := New()
	c.Store8(mcgC2, 0x24) // very high range, EREFS
	c.Store8(mcgC1, 0xA0) // CLKS=external, FRDIV=4, IREFS=0
	s := c.Load8(mcgS)
	if s&0x02 == 0 || s&0x10 != 0 || (s>>2)&3 != 2 {
		t.Fatalf("FBE status = %#x", s)
	}
	c.Store8(mcgC6, 0x43)
	if s = c.Load8(mcgS); s&0x60 != 0x60 {
		t.Fatalf("PLL status = %#x", s)
	}
	c.Store8(mcgC1, c.Load8(mcgC1)&0x3F)
	if s = c.Load8(mcgS); (s>>2)&3 != 3 {
		t.Fatalf("PEE clkst = %d", (s>>2)&3)
	}
}

func TestSettleDelaysStatus(t *testing.T) {
	c := New(WithSettle(3))
	c.Store8(mcgC2, 0x04)
	seen := 0
	for c.Load8(mcgS)&0x02 == 0 {
		seen++
		if seen > 10 {
			t.Fatal("status never settled")
		}
	}
	if seen != 2 {
		t.Fatalf("stale reads = %d, want 2", seen)
	}
}

func TestStagedStatusOrder(t *testing.T) {
	c := New(WithStagedStatus(2))
	c.Store8(mcgC2, 0x04)
	c.Store8(mcgC1, 0x80)
	want := []uint8{0x12, 0x02, 0x0A}
	var got []uint8
	last := c.Load8(mcgS)
	for i := 0; i < 20 && len(got) < len(want); i++ {
		if s := c.Load8(mcgS); s != last {
			got = append(got, s)
			last = s
		}
	}
	if len(got) != len(want) {
		t.Fatalf("status steps = %#x, want %#x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status steps = %#x, want %#x", got, want)
		}
	}
}

func TestFreezeHoldsStatus(t *testing.T) {
	c := New()
	c.Freeze(mcgS)
	c.Store8(mcgC2, 0x04)
	if c.Load8(mcgS)&0x02 != 0 {
		t.Fatal("frozen status moved")
	}
	c.Thaw(mcgS)
	if c.Load8(mcgS)&0x02 == 0 {
		t.Fatal("thawed status did not catch up")
	}
}

func TestBitbandAliasesBytes(t *testing.T) {
	c := New()
	scgc5 := uintptr(simBase + 0x1038)
	alias := mmio.BitbandAlias(scgc5, 11)
	if alias != 0x4290072C {
		t.Fatalf("alias = %#x", alias)
	}
	if c.Load32(alias) != 0 {
		t.Fatal("port C gate set at reset")
	}
	c.Store32(alias, 1)
	if c.Peek32(scgc5)&(1<<11) == 0 {
		t.Fatal("alias store did not reach the register")
	}
	if c.Load32(alias) != 1 {
		t.Fatal("alias load disagrees")
	}
	c.Store32(alias, 0)
	if c.Peek32(scgc5) != 0x00040182 {
		t.Fatalf("neighbour bits changed: %#x", c.Peek32(scgc5))
	}
}

func TestGPIOSetClearToggle(t *testing.T) {
	c := New()
	const pin = 5
	c.Store32(0x43FE1000+0x280+pin*4, 1) // PDDR
	c.Store32(0x43FE1000+0x080+pin*4, 1) // PSOR
	if c.Load32(0x43FE1000+0x200+pin*4) != 1 {
		t.Fatal("PDIR should follow the set output")
	}
	c.Store32(0x43FE1000+0x180+pin*4, 1) // PTOR
	if c.Load32(0x43FE1000+pin*4) != 0 {
		t.Fatal("toggle did not clear PDOR")
	}
	if c.Peek8(gpioC+4) != 0 {
		t.Fatal("PSOR should read back zero")
	}
}

func TestUARTModel(t *testing.T) {
	c := New()
	base := uartBases[0]
	c.Store8(base+7, 'x')
	if len(c.TxData(0)) != 0 {
		t.Fatal("byte captured with transmitter disabled")
	}
	c.Store8(base+3, 0x0C)
	c.Store8(base+7, 'o')
	c.Store8(base+7, 'k')
	if got := string(c.TxData(0)); got != "ok" {
		t.Fatalf("tx = %q", got)
	}
	if c.Load8(base+4)&0xC0 != 0xC0 {
		t.Fatal("TDRE/TC should be set")
	}
	c.InjectRx(0, 'z')
	if c.Load8(base+4)&0x20 == 0 {
		t.Fatal("RDRF not raised")
	}
	if c.Load8(base+7) != 'z' || c.Load8(base+4)&0x20 != 0 {
		t.Fatal("rx queue not drained")
	}
}

func TestAIRCRResetKey(t *testing.T) {
	c := New()
	c.Store32(aircr, 0x12345678)
	c.Store32(aircr, resetKey)
	if c.Resets() != 1 {
		t.Fatalf("resets = %d", c.Resets())
	}
	if w := c.Writes(); len(w) != 2 || w[1].Value != resetKey || w[1].Width != 32 {
		t.Fatalf("write log = %+v", w)
	}
}
