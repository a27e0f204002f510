package buddyalloc

import "unsafe"

// blockHeader precedes every block the allocator hands out, whether it
// lives inside the arena or inside its own mmap mapping. cookie is kept
// as the first field so a stray write just before a returned pointer -
// the most common out-of-bounds pattern - lands on it first.
//
// addrNext/addrPrev thread the block into its list: the arena's
// address-ordered list (Allocator.blocksHead) for buddy blocks, or the
// mmap list (Allocator.mmapHead), kept in allocation order, for mmap
// blocks.
// freeNext/freePrev thread it into the order table bucket matching its
// current footprint; both are nil while the block is allocated.
type blockHeader struct {
	cookie uint64
	size   uintptr // payload bytes, excluding this header
	isFree bool

	addrNext *blockHeader
	addrPrev *blockHeader

	freeNext *blockHeader
	freePrev *blockHeader
}

// headerSize is the footprint every header contributes on top of a
// block's payload. Computed once rather than hardcoded, since struct
// layout/padding can shift across Go versions and architectures.
var headerSize = unsafe.Sizeof(blockHeader{})

func headerOf(payload unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(uintptr(payload) - headerSize))
}

func payloadOf(h *blockHeader) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + headerSize)
}

func addrOf(h *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(h))
}
