package tree

import (
	"errors"
	"strings"

	"github.com/benz9527/xrbt/lib/infra"
)

type RBColor uint8

const (
	Black RBColor = iota
	Red
)

func (c RBColor) String() string {
	switch c {
	case Black:
		return "Black"
	case Red:
		return "Red"
	default:
	}
	return "Unknown"
}

type RBDirection int8

const (
	Left RBDirection = -1 + iota
	Root
	Right
)

func (d RBDirection) String() string {
	switch d {
	case Left:
		return "Left"
	case Root:
		return "Root"
	case Right:
		return "Right"
	default:
	}
	return "Unknown"
}

func (d RBDirection) opposite() RBDirection {
	return -d
}

// DuplicatePolicy decides what Insert does with a key that is already
// stored in the tree.
type DuplicatePolicy uint8

const (
	// DuplicateKeep always creates a new node. Ties route right, so Search
	// and Delete only reach the first equal node met while descending.
	DuplicateKeep DuplicatePolicy = iota
	// DuplicateOverwrite replaces the value of the first equal node.
	DuplicateOverwrite
	// DuplicateReject returns ErrDuplicateKey and leaves the tree untouched.
	DuplicateReject
)

var ErrDuplicateKey = errors.New("[rbtree] duplicate key rejected")

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateKeep:
		return "keep"
	case DuplicateOverwrite:
		return "overwrite"
	case DuplicateReject:
		return "reject"
	default:
	}
	return "unknown"
}

func ParseDuplicatePolicy(policy string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", "keep":
		return DuplicateKeep, nil
	case "overwrite":
		return DuplicateOverwrite, nil
	case "reject":
		return DuplicateReject, nil
	default:
	}
	return DuplicateKeep, infra.NewErrorStack("[rbtree] unknown duplicate policy: " + policy)
}

type Pair[K infra.OrderedKey, V any] struct {
	Key K
	Val V
}

// RBNode is a read-only view of a tree node. Absent children and the
// root's parent are reported as nil.
type RBNode[K infra.OrderedKey, V any] interface {
	Key() K
	Val() V
	Color() RBColor
	Left() RBNode[K, V]
	Right() RBNode[K, V]
	Parent() RBNode[K, V]
}

// RBTree is not safe for concurrent use. Callers sharing a tree between
// goroutines must serialize access themselves.
type RBTree[K infra.OrderedKey, V any] interface {
	Len() int64
	Height() int
	Root() RBNode[K, V]
	Insert(key K, val V) error
	Delete(key K)
	Search(key K) (V, bool)
	SortedPairs() []Pair[K, V]
	Min() (Pair[K, V], bool)
	Max() (Pair[K, V], bool)
	RemoveMin() (Pair[K, V], bool)
	Foreach(action func(idx int64, color RBColor, key K, val V))
	Release()
}
