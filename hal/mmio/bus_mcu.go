//go:build mk20dx256

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// hwBus dereferences physical addresses. Peripheral space on Cortex-M4 is
// device memory, so volatile accesses are neither merged nor reordered.
type hwBus struct{}

// Hardware returns the real address space.
func Hardware() Bus { return hwBus{} }

func (hwBus) Load8(a uintptr) uint8 { return volatile.LoadUint8((*uint8)(unsafe.Pointer(a))) }
func (hwBus) Store8(a uintptr, v uint8) {
	volatile.StoreUint8((*uint8)(unsafe.Pointer(a)), v)
}
func (hwBus) Load16(a uintptr) uint16 { return volatile.LoadUint16((*uint16)(unsafe.Pointer(a))) }
func (hwBus) Store16(a uintptr, v uint16) {
	volatile.StoreUint16((*uint16)(unsafe.Pointer(a)), v)
}
func (hwBus) Load32(a uintptr) uint32 { return volatile.LoadUint32((*uint32)(unsafe.Pointer(a))) }
func (hwBus) Store32(a uintptr, v uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(a)), v)
}
