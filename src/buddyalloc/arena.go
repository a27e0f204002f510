package buddyalloc

import (
	"fmt"
	"math/rand"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// MinBlockSize is the footprint, header included, of the smallest
	// buddy block (order 0).
	MinBlockSize uintptr = 128

	// MaxOrder is the number of buddy orders. Order k has footprint
	// MinBlockSize*2^k.
	MaxOrder = 11

	// InitialBlocks is the number of top-order blocks reserved at
	// construction time.
	InitialBlocks = 32

	// topOrder is the highest valid order index.
	topOrder = MaxOrder - 1
)

// ArenaSize is the total size of the pre-allocated arena.
const ArenaSize = uintptr(InitialBlocks) * MinBlockSize * (uintptr(1) << topOrder)

// ArenaAlignment is the required base alignment of the arena, so that
// the XOR buddy calculation in splitmerge.go holds for every order.
const ArenaAlignment = ArenaSize

// MmapThreshold is the payload size at or above which a request is
// served directly by mmap instead of the buddy engine. It is equal to
// the footprint of a top-order block; see SPEC_FULL.md's Open
// Questions for why that coincidence is intentional and is tested
// against the raw requested size, not a footprint.
const MmapThreshold = MinBlockSize << topOrder

// MaxRequest is the hard ceiling on a single request, independent of
// MmapThreshold.
const MaxRequest = 100_000_000

// CorruptionExitCode is the process exit status used when a header's
// cookie fails to match on release. It mirrors the original malloc's
// exit(0xdeadbeef); the OS truncates it to the low byte the same way
// the C original's libc runtime does.
const CorruptionExitCode = 0xdeadbeef

func topFootprint() uintptr {
	return MinBlockSize << topOrder
}

// newCookie draws the per-instance random value stamped into every
// header this allocator constructs. The specific PRNG algorithm is not
// load-bearing - only that the value is non-trivial and fixed for the
// allocator's lifetime.
func newCookie() uint64 {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	cookie := src.Uint64()
	// A zero cookie would make an unwritten (zeroed) page of memory
	// look like a valid header; keep redrawing until non-zero.
	for cookie == 0 {
		cookie = src.Uint64()
	}
	return cookie
}

// newArena reserves ArenaSize bytes aligned to ArenaAlignment. Go has
// no portable userland equivalent of sbrk, so alignment is achieved by
// over-mapping (ArenaSize+ArenaAlignment bytes) and trimming the
// returned base up to the next alignment boundary, the idiomatic Go
// substitute for "advance the program break to the next alignment
// multiple" called out in spec.md's design notes. raw is kept so the
// exact original mapping can be handed back to munmap later.
func newArena() (base uintptr, raw []byte, err error) {
	total := int(ArenaSize + ArenaAlignment)
	raw, err = unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, nil, fmt.Errorf("reserve arena: %w", err)
	}
	rawBase := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (rawBase + ArenaAlignment - 1) &^ (ArenaAlignment - 1)
	return aligned, raw, nil
}

// unmapArena returns the arena's backing mapping to the operating
// system. See Allocator.destroyForTest for why this is not exposed on
// the public surface.
func unmapArena(raw []byte) error {
	return unix.Munmap(raw)
}

// initBlocks partitions the arena into InitialBlocks top-order blocks,
// threads them into the address-ordered list, and seeds
// orderTable[topOrder] with all of them.
func (a *Allocator) initBlocks() {
	footprint := topFootprint()
	payload := footprint - headerSize

	var prev *blockHeader
	for i := 0; i < InitialBlocks; i++ {
		addr := a.base + uintptr(i)*footprint
		h := (*blockHeader)(unsafe.Pointer(addr))
		*h = blockHeader{cookie: a.cookie, size: payload, isFree: true}

		if prev == nil {
			a.blocksHead = h
		} else {
			prev.addrNext = h
			h.addrPrev = prev
		}
		prev = h
	}

	a.orderTable[topOrder] = a.blocksHead
	var freePrev *blockHeader
	for cur := a.blocksHead; cur != nil; cur = cur.addrNext {
		cur.freePrev = freePrev
		if freePrev != nil {
			freePrev.freeNext = cur
		}
		freePrev = cur
	}

	a.blocksNum = InitialBlocks
	a.freeBlocksNum = InitialBlocks
	a.totalAllocatedBytes = uintptr(InitialBlocks) * payload
	a.freeBytesNum = a.totalAllocatedBytes
}
