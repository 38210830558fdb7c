package tree

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/benz9527/xrbt/lib/infra"
)

var (
	ErrOrderViolation      = errors.New("rbtree order violation")
	ErrRootColorViolation  = errors.New("rbtree root color violation")
	ErrRedViolation        = errors.New("rbtree red violation")
	ErrBlackViolation      = errors.New("rbtree black violation")
	ErrParentLinkViolation = errors.New("rbtree parent link violation")
	ErrHeightViolation     = errors.New("rbtree height violation")
)

func isBlack[K infra.OrderedKey, V any](node RBNode[K, V]) bool {
	return node == nil || node.Color() == Black
}

func isRed[K infra.OrderedKey, V any](node RBNode[K, V]) bool {
	return node != nil && node.Color() == Red
}

func blackDepthTo[K infra.OrderedKey, V any](target, to RBNode[K, V]) int {
	depth := 0
	for aux := target; aux != nil && aux != to; aux = aux.Parent() {
		if isBlack[K, V](aux) {
			depth++
		}
	}
	return depth
}

// rbtree rule validation utilities.

// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

// inorder walks the tree with an explicit stack, stopping at the first
// visit returning an error.
func inorder[K infra.OrderedKey, V any](tree RBTree[K, V], visit func(node RBNode[K, V]) error) error {
	aux := tree.Root()
	if aux == nil {
		return nil
	}

	stack := make([]RBNode[K, V], 0, tree.Height())
	for ; aux != nil; aux = aux.Left() {
		stack = append(stack, aux)
	}

	for size := len(stack); size > 0; size = len(stack) {
		aux = stack[size-1]
		stack = stack[:size-1]
		if err := visit(aux); err != nil {
			return err
		}
		for aux = aux.Right(); aux != nil; aux = aux.Left() {
			stack = append(stack, aux)
		}
	}
	return nil
}

// OrderViolationValidate checks the inorder keys never decrease. With
// unique keys this is the strict BST order.
func OrderViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	var (
		prev    K
		hasPrev bool
	)
	return inorder[K, V](tree, func(node RBNode[K, V]) error {
		if hasPrev && infra.CompareKeys(node.Key(), prev) < 0 {
			return fmt.Errorf("%w: key %v after %v", ErrOrderViolation, node.Key(), prev)
		}
		prev, hasPrev = node.Key(), true
		return nil
	})
}

func RootColorValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	if root := tree.Root(); isRed[K, V](root) {
		return fmt.Errorf("%w: root %v is red", ErrRootColorViolation, root.Key())
	}
	return nil
}

// Inorder traversal to validate no red node owns a red child.
func RedViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	return inorder[K, V](tree, func(node RBNode[K, V]) error {
		if isRed[K, V](node) && (isRed[K, V](node.Left()) || isRed[K, V](node.Right())) {
			return fmt.Errorf("%w: red node %v has a red child", ErrRedViolation, node.Key())
		}
		return nil
	})
}

// ParentLinkValidate checks every child points back at its owner.
func ParentLinkValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	if root := tree.Root(); root != nil && root.Parent() != nil {
		return fmt.Errorf("%w: root %v has a parent", ErrParentLinkViolation, root.Key())
	}
	return inorder[K, V](tree, func(node RBNode[K, V]) error {
		for _, c := range []RBNode[K, V]{node.Left(), node.Right()} {
			if c != nil && c.Parent() != node {
				return fmt.Errorf("%w: child %v of %v", ErrParentLinkViolation, c.Key(), node.Key())
			}
		}
		return nil
	})
}

// BFS traversal to load all nodes owning at least one NIL leaf.
func bfsLeaves[K infra.OrderedKey, V any](tree RBTree[K, V]) []RBNode[K, V] {
	aux := tree.Root()
	if aux == nil {
		return nil
	}

	leaves := make([]RBNode[K, V], 0, tree.Len()>>1+1)
	queue := make([]RBNode[K, V], 0, tree.Len()>>1+1)
	queue = append(queue, aux)

	for len(queue) > 0 {
		aux = queue[0]
		queue = queue[1:]
		l, r := aux.Left(), aux.Right()
		if /* nil leaves, keep one */ l == nil || r == nil {
			leaves = append(leaves, aux)
		}
		if l != nil {
			queue = append(queue, l)
		}
		if r != nil {
			queue = append(queue, r)
		}
	}
	return leaves
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
			/  \
		 <8>    [15]
		 / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            [16]

2-3-4 tree like:

	       <8> --- [13] --- <15>
		  /  \             /    \
		 /    \           /      \
	  <1>-[6][11]      [14] <16>-[17]

Each NIL leaf to root node black depth are equal.
*/
func BlackViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	leaves := bfsLeaves[K, V](tree)
	if leaves == nil {
		return nil
	}

	root := tree.Root()
	blackDepth := blackDepthTo[K, V](leaves[0], root)
	for i := 1; i < len(leaves); i++ {
		if depth := blackDepthTo[K, V](leaves[i], root); depth != blackDepth {
			return fmt.Errorf("%w: leaf %v black depth %d, expected %d",
				ErrBlackViolation, leaves[i].Key(), depth, blackDepth)
		}
	}
	return nil
}

// HeightBoundValidate checks height <= 2*log2(n+1).
func HeightBoundValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	n, h := tree.Len(), tree.Height()
	if bound := 2 * math.Log2(float64(n)+1); float64(h) > bound {
		return fmt.Errorf("%w: height %d exceeds %.2f for %d nodes", ErrHeightViolation, h, bound, n)
	}
	return nil
}

// Validate runs every rule and reports all of the failures together.
func Validate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	return multierr.Combine(
		OrderViolationValidate[K, V](tree),
		RootColorValidate[K, V](tree),
		RedViolationValidate[K, V](tree),
		BlackViolationValidate[K, V](tree),
		ParentLinkValidate[K, V](tree),
		HeightBoundValidate[K, V](tree),
	)
}
