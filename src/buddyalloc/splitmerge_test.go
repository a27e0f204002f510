package buddyalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBestFit covers property 4: the block handed back by Alloc must
// not be splittable any further without becoming too small for the
// request that was made.
func TestBestFit(t *testing.T) {
	a := newTestAllocator(t)

	for _, size := range []uintptr{1, 100, 4096, 70_000, MmapThreshold - headerSize - 1} {
		ptr := a.Alloc(size)
		assert.NotNilf(t, ptr, "alloc(%d) should have succeeded", size)

		h := headerOf(ptr)
		footprint := h.size + headerSize
		half := sizeAfterSplit(h.size)
		assert.Lessf(t, half, size+headerSize, "size %d: returned block could have been split smaller", size)
		assert.GreaterOrEqualf(t, footprint-headerSize, size, "size %d: returned block is smaller than requested", size)

		a.Free(ptr)
	}
	checkFreshArena(t, a)
}

// TestBuddyXORRelation covers property 5: for a freshly split pair,
// each half's XOR buddy calculation must locate its actual sibling.
func TestBuddyXORRelation(t *testing.T) {
	a := newTestAllocator(t)

	p1 := a.Alloc(100)
	p2 := a.Alloc(100)
	assert.NotNil(t, p1)
	assert.NotNil(t, p2)

	h1 := headerOf(p1)
	h2 := headerOf(p2)

	// The two equal-size blocks carved side by side from the same
	// top-order block must be each other's buddy once siblings.
	if addrOf(h1) < addrOf(h2) && h1.addrNext == h2 {
		assert.Equal(t, h2, a.buddyOf(h1))
		assert.Equal(t, h1, a.buddyOf(h2))
		assert.Equal(t, h1.size, h2.size)
	}

	a.Free(p1)
	a.Free(p2)
	checkFreshArena(t, a)
}

// TestNoCrossTopOrderMerge covers the top-order boundary design note:
// allocating and then freeing two whole top-order blocks must not merge
// them into a single block spanning both.
func TestNoCrossTopOrderMerge(t *testing.T) {
	a := newTestAllocator(t)

	size := topFootprint() - headerSize
	p1 := a.Alloc(size)
	p2 := a.Alloc(size)
	assert.NotNil(t, p1)
	assert.NotNil(t, p2)
	assert.Equal(t, InitialBlocks, a.NumAllocatedBlocks())

	a.Free(p1)
	a.Free(p2)

	n, _ := countOrderList(t, a, topOrder)
	assert.Equal(t, InitialBlocks, n, "top-order bucket must still hold InitialBlocks separate blocks")
}

// TestOrderForRequestMatchesSpec spot-checks the order arithmetic
// against hand-computed values.
func TestOrderForRequestMatchesSpec(t *testing.T) {
	assert.Equal(t, 0, orderForRequest(1))
	assert.Equal(t, 0, orderForRequest(MinBlockSize-headerSize-1))
	assert.Equal(t, 1, orderForRequest(MinBlockSize-headerSize+1))
	assert.Equal(t, topOrder, orderForRequest(topFootprint()-headerSize))
}

func TestSizeAfterSplitRoundTrips(t *testing.T) {
	parent := topFootprint() - headerSize
	half := sizeAfterSplit(parent)
	assert.Equal(t, parent, half*2+headerSize)
}
