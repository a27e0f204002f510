package buddyalloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocMmapBlock requests a private anonymous mapping of size+headerSize
// bytes, stamps its header, and appends it to the tail of the mmap list by
// walking to the end. The tail walk is O(n) in the number of live mmap
// blocks; spec.md's design notes permit caching the tail instead, but
// the observable contract is unchanged either way.
func (a *Allocator) allocMmapBlock(size uintptr) (unsafe.Pointer, error) {
	total := int(size + headerSize)
	data, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		fmt.Println("ERROR: mmap allocation failed")
		return nil, fmt.Errorf("%w: %v", ErrMmapFailed, err)
	}

	h := (*blockHeader)(unsafe.Pointer(&data[0]))
	*h = blockHeader{cookie: a.cookie, size: size, isFree: false}

	if a.mmapHead == nil {
		a.mmapHead = h
	} else {
		tail := a.mmapHead
		for tail.addrNext != nil {
			tail = tail.addrNext
		}
		tail.addrNext = h
		h.addrPrev = tail
	}
	a.mmapRaw[addrOf(h)] = data

	a.blocksNum++
	a.totalAllocatedBytes += size

	return payloadOf(h), nil
}

// freeMmapBlock unlinks h from the mmap list (head/tail/middle cases) and
// unmaps its full size+headerSize range.
func (a *Allocator) freeMmapBlock(h *blockHeader) error {
	switch {
	case h == a.mmapHead:
		a.mmapHead = h.addrNext
		if a.mmapHead != nil {
			a.mmapHead.addrPrev = nil
		}
	case h.addrNext == nil:
		h.addrPrev.addrNext = nil
	default:
		h.addrNext.addrPrev = h.addrPrev
		h.addrPrev.addrNext = h.addrNext
	}

	size := h.size
	raw, ok := a.mmapRaw[addrOf(h)]
	delete(a.mmapRaw, addrOf(h))

	a.blocksNum--
	a.totalAllocatedBytes -= size

	if !ok {
		return nil
	}
	if err := unix.Munmap(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMunmapFailed, err)
	}
	return nil
}
