// Package buddyalloc implements a single-threaded dynamic memory
// allocator with a buddy-system engine for small and medium requests
// and a direct mmap side channel for large ones.
package buddyalloc

import (
	"fmt"
	"os"
	"unsafe"
)

// Allocator is one buddy-allocator instance. It owns a single
// pre-allocated arena plus whatever mmap-backed blocks are currently
// live. It is not safe for concurrent use from multiple goroutines;
// this package provides no locking.
type Allocator struct {
	cookie uint64

	base     uintptr // aligned arena base
	arenaRaw []byte  // the exact mapping returned by mmap, for teardown

	blocksHead *blockHeader // head of the arena's address-ordered list
	mmapHead   *blockHeader // head of the mmap side channel's list, in allocation order
	mmapRaw    map[uintptr][]byte

	orderTable [MaxOrder]*blockHeader

	blocksNum           int
	freeBlocksNum       int
	freeBytesNum        uintptr
	totalAllocatedBytes uintptr
}

// NewAllocator constructs an allocator, reserving and partitioning its
// arena. Construction failure (the arena could not be reserved) is the
// only error this returns; everything else uses the recoverable
// null-return contract described on Alloc and Free.
func NewAllocator() (*Allocator, error) {
	cookie := newCookie()
	base, raw, err := newArena()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArenaConstructionFailed, err)
	}

	a := &Allocator{
		cookie:   cookie,
		base:     base,
		arenaRaw: raw,
		mmapRaw:  make(map[uintptr][]byte),
	}
	a.initBlocks()
	return a, nil
}

// Alloc returns a pointer to at least size usable bytes, or nil on any
// recoverable failure: a zero or over-limit request, exhaustion of the
// buddy engine for a request below MmapThreshold, or an mmap failure
// for a request at or above it. There is no fallback from one path to
// the other. A request larger than topFootprint()-headerSize but below
// MmapThreshold does not fit a top-order block and is not sent to mmap,
// so it also gets nil.
func (a *Allocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 || size > MaxRequest {
		return nil
	}
	if size >= MmapThreshold {
		ptr, err := a.allocMmapBlock(size)
		if err != nil {
			return nil
		}
		return ptr
	}
	return a.allocBuddyBlock(size)
}

// allocBuddyBlock runs the order-selection and greedy-split algorithm
// described in spec.md §4.4: find the smallest order at or above the
// one the request needs, split down one order at a time as long as the
// resulting half still satisfies the request, then pop the head of
// whatever order that leaves us at.
func (a *Allocator) allocBuddyBlock(size uintptr) unsafe.Pointer {
	k0 := orderForRequest(size)
	if k0 > topOrder {
		// Reached by requests above topFootprint()-headerSize and below
		// MmapThreshold: their footprint exceeds a top-order block.
		return nil
	}

	k := k0
	for k <= topOrder && a.orderTable[k] == nil {
		k++
	}
	if k > topOrder {
		fmt.Println("ERROR: no memory available to be allocated")
		return nil
	}

	for k > k0 {
		head := a.orderTable[k]
		half := sizeAfterSplit(head.size)
		if half < size {
			break
		}
		k = a.split(k)
	}

	block := a.orderTable[k]
	a.removeFree(block)
	block.isFree = false
	a.freeBlocksNum--
	a.freeBytesNum -= block.size

	return payloadOf(block)
}

// Free releases a block previously returned by Alloc. A nil pointer is
// a no-op. A cookie mismatch is treated as header corruption and
// terminates the process immediately with CorruptionExitCode; a block
// that is already free is a silent no-op (double-free tolerance).
//
// The only error Free can return is ErrMunmapFailed, for an mmap-backed
// block whose release failed to unmap: per spec.md §7 the block is
// already unlinked from the mmap list by that point, so the failure is
// reported rather than silently swallowed, even though it is
// effectively a leak the caller cannot undo.
func (a *Allocator) Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}

	h := headerOf(ptr)
	if h.cookie != a.cookie {
		os.Exit(CorruptionExitCode)
	}
	if h.isFree {
		return nil
	}

	if h.size >= MmapThreshold {
		if err := a.freeMmapBlock(h); err != nil {
			fmt.Println("ERROR: munmap failed during release")
			return err
		}
		return nil
	}
	a.freeBuddyBlock(h)
	return nil
}

// freeBuddyBlock marks h free, coalesces it with its buddy as far as
// legal, and reinserts whatever remains into the matching order-table
// bucket.
func (a *Allocator) freeBuddyBlock(h *blockHeader) {
	h.isFree = true
	a.freeBlocksNum++
	a.freeBytesNum += h.size

	merged := a.merge(h)
	order := orderOf(merged.size + headerSize)
	a.insertFree(order, merged)
}

// NumFreeBlocks returns the number of currently free buddy blocks.
func (a *Allocator) NumFreeBlocks() int { return a.freeBlocksNum }

// NumFreeBytes returns the total payload bytes held by free buddy
// blocks. Mmap blocks never contribute to this counter while live.
func (a *Allocator) NumFreeBytes() uintptr { return a.freeBytesNum }

// NumAllocatedBlocks returns the number of live blocks, free or not,
// buddy and mmap combined.
func (a *Allocator) NumAllocatedBlocks() int { return a.blocksNum }

// NumAllocatedBytes returns the total payload bytes tracked across all
// live blocks, buddy and mmap combined.
func (a *Allocator) NumAllocatedBytes() uintptr { return a.totalAllocatedBytes }

// NumMetaDataBytes returns the total bytes currently spent on headers.
func (a *Allocator) NumMetaDataBytes() uintptr {
	return headerSize * uintptr(a.blocksNum)
}

// SizeMetaData returns the fixed size of a single block header.
func (a *Allocator) SizeMetaData() uintptr { return headerSize }

// destroyForTest releases the arena's backing mapping. It is not part
// of the public surface: spec.md is explicit that the arena is owned
// for the process lifetime and never returned to the operating system
// during normal operation. Tests use it so repeated allocator
// construction doesn't accumulate live multi-gigabyte mappings across
// a single test binary run.
func (a *Allocator) destroyForTest() error {
	if a.arenaRaw == nil {
		return nil
	}
	err := unmapArena(a.arenaRaw)
	a.arenaRaw = nil
	return err
}
