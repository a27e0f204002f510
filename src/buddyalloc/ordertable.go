package buddyalloc

import "math/bits"

// orderOf returns the order k such that footprint == MinBlockSize<<k,
// for a footprint already known to be a power-of-two multiple of
// MinBlockSize (true of every buddy block by construction).
func orderOf(footprint uintptr) int {
	ratio := footprint / MinBlockSize
	return bits.Len(uint(ratio)) - 1
}

// sizeAfterSplit returns the payload size of each of the two children
// produced by splitting a block whose current payload is currentSize.
func sizeAfterSplit(currentSize uintptr) uintptr {
	return (currentSize+headerSize)/2 - headerSize
}

// orderForRequest returns the smallest order k such that
// MinBlockSize<<k >= size+headerSize.
func orderForRequest(size uintptr) int {
	need := size + headerSize
	k := 0
	for MinBlockSize<<uint(k) < need {
		k++
	}
	return k
}

// insertFree splices h into orderTable[order], kept sorted by
// ascending address. It does not alter h.isFree.
func (a *Allocator) insertFree(order int, h *blockHeader) {
	head := a.orderTable[order]
	if head == nil || addrOf(head) > addrOf(h) {
		h.freeNext = head
		h.freePrev = nil
		if head != nil {
			head.freePrev = h
		}
		a.orderTable[order] = h
		return
	}

	cur := head
	for cur.freeNext != nil && addrOf(cur.freeNext) < addrOf(h) {
		cur = cur.freeNext
	}
	h.freeNext = cur.freeNext
	h.freePrev = cur
	if cur.freeNext != nil {
		cur.freeNext.freePrev = h
	}
	cur.freeNext = h
}

// removeFree unlinks h from its order-table bucket, locating the
// bucket from h's own footprint, and clears its free-list links.
func (a *Allocator) removeFree(h *blockHeader) {
	order := orderOf(h.size + headerSize)
	if h.freePrev == nil {
		a.orderTable[order] = h.freeNext
		if h.freeNext != nil {
			h.freeNext.freePrev = nil
		}
	} else {
		h.freePrev.freeNext = h.freeNext
		if h.freeNext != nil {
			h.freeNext.freePrev = h.freePrev
		}
	}
	h.freeNext = nil
	h.freePrev = nil
}
