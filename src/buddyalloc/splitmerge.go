package buddyalloc

import "unsafe"

// buddyOf locates the sibling of h by XOR-ing h's offset from the
// arena base with h's own footprint. This only yields the true buddy
// because the arena is aligned to ArenaAlignment and every buddy
// block's footprint is a power of two.
func (a *Allocator) buddyOf(h *blockHeader) *blockHeader {
	footprint := h.size + headerSize
	offset := addrOf(h) - a.base
	buddyOffset := offset ^ footprint
	return (*blockHeader)(unsafe.Pointer(a.base + buddyOffset))
}

// split removes the head of orderTable[order], halves it, and inserts
// both halves into orderTable[order-1]. Splitting conjures a new
// header out of what used to be payload bytes, so blocksNum and
// freeBlocksNum grow while freeBytesNum and totalAllocatedBytes shrink
// by headerSize. Returns order-1.
func (a *Allocator) split(order int) int {
	block := a.orderTable[order]
	a.removeFree(block)

	newPayload := sizeAfterSplit(block.size)
	block.size = newPayload

	siblingAddr := addrOf(block) + headerSize + newPayload
	sibling := (*blockHeader)(unsafe.Pointer(siblingAddr))
	*sibling = blockHeader{cookie: a.cookie, size: newPayload, isFree: true}

	sibling.addrNext = block.addrNext
	sibling.addrPrev = block
	if block.addrNext != nil {
		block.addrNext.addrPrev = sibling
	}
	block.addrNext = sibling

	a.insertFree(order-1, sibling)
	a.insertFree(order-1, block)

	a.blocksNum++
	a.freeBlocksNum++
	a.freeBytesNum -= headerSize
	a.totalAllocatedBytes -= headerSize

	return order - 1
}

// merge repeatedly coalesces block with its buddy while legal: the
// buddy must be free, equal in size, and block's current footprint
// must be strictly below the top order (top-order "buddies" are not
// true siblings - they belong to independent initial blocks, and
// merging across them would collapse the InitialBlocks partition).
// The lower-addressed of each merged pair survives. Returns the final,
// un-inserted block; the caller is responsible for placing it back
// into the order table.
func (a *Allocator) merge(block *blockHeader) *blockHeader {
	for block.size+headerSize < topFootprint() {
		buddy := a.buddyOf(block)
		if !buddy.isFree || buddy.size != block.size {
			break
		}

		a.removeFree(buddy)

		var survivor, loser *blockHeader
		if addrOf(block) < addrOf(buddy) {
			survivor, loser = block, buddy
		} else {
			survivor, loser = buddy, block
		}

		survivor.size = block.size + buddy.size + headerSize
		survivor.addrNext = loser.addrNext
		if loser.addrNext != nil {
			loser.addrNext.addrPrev = survivor
		}
		block = survivor

		a.blocksNum--
		a.freeBlocksNum--
		a.freeBytesNum += headerSize
		a.totalAllocatedBytes += headerSize
	}
	return block
}
