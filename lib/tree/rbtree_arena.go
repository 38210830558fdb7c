package tree

import (
	"math"

	"github.com/benz9527/xrbt/lib/infra"
)

// nodeRef is a stable handle into the arena. The zero handle is reserved
// and stands for an absent node (the conceptual black NIL leaf).
type nodeRef uint32

const nilRef nodeRef = 0

type rbNode[K infra.OrderedKey, V any] struct {
	parent nodeRef
	left   nodeRef
	right  nodeRef
	key    K
	val    V
	color  RBColor
}

// rbArena owns every node of a tree. Pointers returned by node() are only
// valid until the next alloc, which may grow the slots.
type rbArena[K infra.OrderedKey, V any] struct {
	slots []rbNode[K, V]
	free  []nodeRef
}

func newRBArena[K infra.OrderedKey, V any](capacity int) *rbArena[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &rbArena[K, V]{
		slots: make([]rbNode[K, V], 1, capacity+1), // slot 0 is reserved
		free:  make([]nodeRef, 0, capacity>>2),
	}
}

// alloc returns a new red node without links.
func (arena *rbArena[K, V]) alloc(key K, val V) nodeRef {
	var ref nodeRef
	if n := len(arena.free); n > 0 {
		ref = arena.free[n-1]
		arena.free = arena.free[:n-1]
	} else {
		if uint64(len(arena.slots)) >= math.MaxUint32 {
			panic( /* debug assertion */ "[rbtree] arena reached the maximum number of nodes")
		}
		arena.slots = append(arena.slots, rbNode[K, V]{})
		ref = nodeRef(len(arena.slots) - 1)
	}
	arena.slots[ref] = rbNode[K, V]{
		key:   key,
		val:   val,
		color: Red,
	}
	return ref
}

// release zeroes the slot so the key and value can be garbage collected,
// then recycles the handle.
func (arena *rbArena[K, V]) release(ref nodeRef) {
	if ref == nilRef {
		panic( /* debug assertion */ "[rbtree] release the reserved nil node")
	}
	arena.slots[ref] = rbNode[K, V]{}
	arena.free = append(arena.free, ref)
}

func (arena *rbArena[K, V]) node(ref nodeRef) *rbNode[K, V] {
	if ref == nilRef {
		panic( /* debug assertion */ "[rbtree] dereference the nil leaf node")
	}
	return &arena.slots[ref]
}

// inUse is the number of live nodes.
func (arena *rbArena[K, V]) inUse() int {
	return len(arena.slots) - 1 - len(arena.free)
}

func (arena *rbArena[K, V]) reset() {
	clear(arena.slots)
	arena.slots = arena.slots[:1]
	arena.free = arena.free[:0]
}
