package tree

import (
	"math/bits"

	"github.com/benz9527/xrbt/lib/infra"
)

type rbTree[K infra.OrderedKey, V any] struct {
	arena  *rbArena[K, V]
	root   nodeRef
	count  int64
	policy DuplicatePolicy
}

func (tree *rbTree[K, V]) node(ref nodeRef) *rbNode[K, V] {
	return tree.arena.node(ref)
}

func (tree *rbTree[K, V]) isRed(ref nodeRef) bool {
	return ref != nilRef && tree.arena.slots[ref].color == Red
}

// All NIL leaves are black.
func (tree *rbTree[K, V]) isBlack(ref nodeRef) bool {
	return !tree.isRed(ref)
}

func (tree *rbTree[K, V]) direction(ref nodeRef) RBDirection {
	x := tree.node(ref)
	if x.parent == nilRef {
		return Root
	}
	if tree.node(x.parent).left == ref {
		return Left
	}
	return Right
}

func (tree *rbTree[K, V]) child(parent nodeRef, dir RBDirection) nodeRef {
	p := tree.node(parent)
	switch dir {
	case Left:
		return p.left
	case Right:
		return p.right
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] root direction has no child link")
	}
}

// replaceChild hangs c at the dir link of parent, or makes c the root.
// The back-link of c is rewritten together with the owning link.
func (tree *rbTree[K, V]) replaceChild(parent nodeRef, dir RBDirection, c nodeRef) {
	switch dir {
	case Root:
		tree.root = c
	case Left:
		tree.node(parent).left = c
	case Right:
		tree.node(parent).right = c
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to replace")
	}
	if c != nilRef {
		tree.node(c).parent = parent
	}
}

func (tree *rbTree[K, V]) minimum(ref nodeRef) nodeRef {
	aux := ref
	for ; aux != nilRef && tree.node(aux).left != nilRef; aux = tree.node(aux).left {
	}
	return aux
}

func (tree *rbTree[K, V]) maximum(ref nodeRef) nodeRef {
	aux := ref
	for ; aux != nilRef && tree.node(aux).right != nilRef; aux = tree.node(aux).right {
	}
	return aux
}

func (tree *rbTree[K, V]) Len() int64 {
	return tree.count
}

func (tree *rbTree[K, V]) Root() RBNode[K, V] {
	return tree.view(tree.root)
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// The longest path nodes' number is 2 * shortest path nodes' number.

/*
		 |                         |
		 X                         S
		/ \     leftRotate(X)     / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc
*/
func (tree *rbTree[K, V]) leftRotate(x nodeRef) {
	if x == nilRef || tree.node(x).right == nilRef {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, dir := tree.node(x).parent, tree.direction(x)
	xn := tree.node(x)
	y := xn.right
	yn := tree.node(y)

	xn.right = yn.left
	if yn.left != nilRef {
		tree.node(yn.left).parent = x
	}
	yn.left = x
	xn.parent = y
	tree.replaceChild(p, dir, y)
}

/*
			 |                         |
			 X                         L
			/ \     rightRotate(X)    / \
	       L   R    ============>    Lc  X
		  / \                           / \
		Lc   Ld                        Ld  R
*/
func (tree *rbTree[K, V]) rightRotate(x nodeRef) {
	if x == nilRef || tree.node(x).left == nilRef {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, dir := tree.node(x).parent, tree.direction(x)
	xn := tree.node(x)
	y := xn.left
	yn := tree.node(y)

	xn.left = yn.right
	if yn.right != nilRef {
		tree.node(yn.right).parent = x
	}
	yn.right = x
	xn.parent = y
	tree.replaceChild(p, dir, y)
}

// rotate moves x one level down towards dir.
func (tree *rbTree[K, V]) rotate(x nodeRef, dir RBDirection) {
	switch dir {
	case Left:
		tree.leftRotate(x)
	case Right:
		tree.rightRotate(x)
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown direction to rotate")
	}
}

// i1: Empty rbtree, the new node becomes the root and is painted black.
// Equal keys route right unless the duplicate policy intercepts them at
// the first equal node met on the way down.
func (tree *rbTree[K, V]) Insert(key K, val V) error {
	var x, y nodeRef = tree.root, nilRef
	dir := Root
	for x != nilRef {
		y = x
		node := tree.node(x)
		res := infra.CompareKeys(key, node.key)
		if /* equal */ res == 0 {
			switch tree.policy {
			case DuplicateOverwrite:
				node.val = val
				return nil
			case DuplicateReject:
				return ErrDuplicateKey
			default:
			}
		}
		if /* less */ res < 0 {
			x, dir = node.left, Left
		} else /* greater or equal */ {
			x, dir = node.right, Right
		}
	}

	z := tree.arena.alloc(key, val)
	tree.replaceChild(y, dir, z)
	tree.count++
	tree.insertRebalance(z)
	return nil
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

im1: Current node X's parent P is black, nothing to fix.

im2: X is the root, or climbed up to the root. Repaint it into black.

im3: If both the parent P and the uncle U are red, grandpa G is black.
(red-violation)
After repainted G into red may be still red-violation.
Recursive to fix grandpa.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

im4: The parent P is red but the uncle U is black. (red-violation)
X is opposite direction to P (triangle). Rotate P to P's direction.
Then it is a line, enter im5 to fix.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

im5: Current node is the same direction as parent (line).

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]
*/
func (tree *rbTree[K, V]) insertRebalance(x nodeRef) {
	for /* im1 */ x != tree.root && tree.isRed(tree.node(x).parent) {
		// The parent is red so it is not the root, and the grandpa exists.
		p := tree.node(x).parent
		g := tree.node(p).parent
		pDir := tree.direction(p)
		u := tree.child(g, pDir.opposite())

		if /* im3 */ tree.isRed(u) {
			tree.node(p).color = Black
			tree.node(u).color = Black
			tree.node(g).color = Red
			x = g
			continue
		}

		if /* im4 */ tree.direction(x) != pDir {
			tree.rotate(p, pDir)
			x = p
			p = tree.node(x).parent
		}

		/* im5 */
		tree.node(p).color = Black
		tree.node(g).color = Red
		tree.rotate(g, pDir.opposite())
		break
	}
	/* im2 */
	tree.node(tree.root).color = Black
}

func (tree *rbTree[K, V]) searchRef(key K) nodeRef {
	for aux := tree.root; aux != nilRef; {
		node := tree.node(aux)
		res := infra.CompareKeys(key, node.key)
		if res == 0 {
			return aux
		} else if res < 0 {
			aux = node.left
		} else {
			aux = node.right
		}
	}
	return nilRef
}

func (tree *rbTree[K, V]) Search(key K) (V, bool) {
	if ref := tree.searchRef(key); ref != nilRef {
		return tree.node(ref).val, true
	}
	var zero V
	return zero, false
}

// Delete is a no-op if the key is absent.
func (tree *rbTree[K, V]) Delete(key K) {
	if z := tree.searchRef(key); z != nilRef {
		tree.removeNode(z)
	}
}

func (tree *rbTree[K, V]) RemoveMin() (Pair[K, V], bool) {
	if tree.root == nilRef {
		return Pair[K, V]{}, false
	}
	z := tree.minimum(tree.root)
	res := Pair[K, V]{Key: tree.node(z).key, Val: tree.node(z).val}
	tree.removeNode(z)
	return res, true
}

/*
r1: Current node Z has left and right node.
Find Z's succ (the leftmost node of the right subtree) Y, copy Y's key and
value into Z. Z keeps its position and color, Y is removed instead.
Y has no left child.

	  |                    |
	  Z                    Y
	 / \                  / \
	L  ..   copy(Y, Z)   L  ..
		|   =========>       |
		P                    P
	   / \                  / \
	  Y  ..                Y' ..

r2: Y has at most one child C (maybe NIL). C takes Y's place under Y's
parent, or becomes the root.

r3: Y is red, both of the black depth and the red rule still hold.

r4: Y is black, its side lost a black node. (black-violation)
Rebalance from C's position. C may be NIL, so the position is described by
the parent and the direction instead of C itself.
*/
func (tree *rbTree[K, V]) removeNode(z nodeRef) {
	y := z
	if zn := tree.node(z); /* r1 */ zn.left != nilRef && zn.right != nilRef {
		y = tree.minimum(zn.right)
		yn := tree.node(y)
		zn.key, zn.val = yn.key, yn.val
	}

	/* r2 */
	yn := tree.node(y)
	c := yn.left
	if c == nilRef {
		c = yn.right
	}
	parent, dir := yn.parent, tree.direction(y)
	removedBlack := yn.color == Black
	tree.replaceChild(parent, dir, c)
	tree.arena.release(y)
	tree.count--

	if /* r4 */ removedBlack {
		tree.removeRebalance(c, parent, dir)
	}
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

Sc is the same direction to X and it is X's sibling's child node (near).
Sd is the opposite direction to X and it is X's sibling's child node (far).

rm1: Current node X's sibling S is red, so the parent P, nephew node Sc and Sd
must be black. (Otherwise, red-violation)
Repaint S into black, P into red, rotate P to X's direction.
The new sibling is black, enter rm2 - rm4.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [Sd]  ======>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

rm2: Sibling S, nephew node Sc and Sd are black.
Paint S into red to fix p4 locally, the deficit moves up to P.
If P is red, the loop ends and P is painted black.
Otherwise P is the new X.

	  {P}             {P}
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm3: Sibling S is black, near nephew Sc is red and far nephew Sd is black.
Repaint Sc into black, S into red, rotate S away from X.
Enter into rm4 to fix.

	                        {P}                {P}
	  {P}                   / \                / \
	  / \    r-rotate(S)  [X] <Sc>   repaint  [X] [Sc]
	[X] [S]  ==========>        \    ======>       \
	    / \                     [S]                <S>
	  <Sc> [Sd]                   \                  \
	                              [Sd]               [Sd]

rm4: Sibling S is black and far nephew Sd is red.
S takes P's color, P and Sd are painted black, rotate P to X's direction.
The deficit is resolved.

	  {P}                   [S]                {S}
	  / \    l-rotate(P)    / \     repaint    / \
	[X] [S]  ==========>  {P} <Sd>  ======>  [P] [Sd]
	    / \               / \                / \
	 [Sc] <Sd>          [X] [Sc]           [X] [Sc]
*/
func (tree *rbTree[K, V]) removeRebalance(x, parent nodeRef, dir RBDirection) {
	for parent != nilRef && tree.isBlack(x) {
		s := tree.child(parent, dir.opposite())
		if /* rm1 */ tree.isRed(s) {
			tree.node(s).color = Black
			tree.node(parent).color = Red
			tree.rotate(parent, dir)
			s = tree.child(parent, dir.opposite())
		}

		// The sibling side keeps at least one black node, s exists.
		sc, sd := tree.child(s, dir), tree.child(s, dir.opposite())
		if /* rm2 */ tree.isBlack(sc) && tree.isBlack(sd) {
			tree.node(s).color = Red
			x = parent
			parent = tree.node(x).parent
			if parent != nilRef {
				dir = tree.direction(x)
			}
			continue
		}

		if /* rm3 */ tree.isBlack(sd) {
			tree.node(sc).color = Black
			tree.node(s).color = Red
			tree.rotate(s, dir.opposite())
			s = tree.child(parent, dir.opposite())
			sd = tree.child(s, dir.opposite())
		}

		/* rm4 */
		tree.node(s).color = tree.node(parent).color
		tree.node(parent).color = Black
		tree.node(sd).color = Black
		tree.rotate(parent, dir)
		x, parent = tree.root, nilRef
	}
	if x != nilRef {
		tree.node(x).color = Black
	}
}

func (tree *rbTree[K, V]) Min() (Pair[K, V], bool) {
	if tree.root == nilRef {
		return Pair[K, V]{}, false
	}
	x := tree.node(tree.minimum(tree.root))
	return Pair[K, V]{Key: x.key, Val: x.val}, true
}

func (tree *rbTree[K, V]) Max() (Pair[K, V], bool) {
	if tree.root == nilRef {
		return Pair[K, V]{}, false
	}
	x := tree.node(tree.maximum(tree.root))
	return Pair[K, V]{Key: x.key, Val: x.val}, true
}

// Inorder traversal to implement the DFS. The explicit stack is bounded
// by the tree height.
func (tree *rbTree[K, V]) Foreach(action func(idx int64, color RBColor, key K, val V)) {
	aux := tree.root
	if aux == nilRef || action == nil {
		return
	}

	stack := make([]nodeRef, 0, bits.Len64(uint64(tree.count))<<1)
	for ; aux != nilRef; aux = tree.node(aux).left {
		stack = append(stack, aux)
	}

	idx := int64(0)
	for size := len(stack); size > 0; size = len(stack) {
		aux = stack[size-1]
		stack = stack[:size-1]
		x := tree.node(aux)
		action(idx, x.color, x.key, x.val)
		idx++
		for aux = x.right; aux != nilRef; aux = tree.node(aux).left {
			stack = append(stack, aux)
		}
	}
}

func (tree *rbTree[K, V]) SortedPairs() []Pair[K, V] {
	pairs := make([]Pair[K, V], 0, tree.count)
	tree.Foreach(func(idx int64, color RBColor, key K, val V) {
		pairs = append(pairs, Pair[K, V]{Key: key, Val: val})
	})
	return pairs
}

// Height counts the nodes on the longest root-to-leaf path.
func (tree *rbTree[K, V]) Height() int {
	if tree.root == nilRef {
		return 0
	}
	type level struct {
		ref   nodeRef
		depth int
	}
	height := 0
	stack := []level{{ref: tree.root, depth: 1}}
	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if aux.depth > height {
			height = aux.depth
		}
		x := tree.node(aux.ref)
		if x.left != nilRef {
			stack = append(stack, level{ref: x.left, depth: aux.depth + 1})
		}
		if x.right != nilRef {
			stack = append(stack, level{ref: x.right, depth: aux.depth + 1})
		}
	}
	return height
}

func (tree *rbTree[K, V]) Release() {
	tree.arena.reset()
	tree.root = nilRef
	tree.count = 0
}

type RBTreeOpt[K infra.OrderedKey, V any] func(*rbTree[K, V])

func WithRBTreeDuplicatePolicy[K infra.OrderedKey, V any](policy DuplicatePolicy) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.policy = policy
	}
}

// WithRBTreeCapacity pre-sizes the node arena.
func WithRBTreeCapacity[K infra.OrderedKey, V any](capacity int) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.arena = newRBArena[K, V](capacity)
	}
}

func NewRBTree[K infra.OrderedKey, V any](opts ...RBTreeOpt[K, V]) RBTree[K, V] {
	return newRBTree[K, V](opts...)
}

func newRBTree[K infra.OrderedKey, V any](opts ...RBTreeOpt[K, V]) *rbTree[K, V] {
	tree := &rbTree[K, V]{
		policy: DuplicateKeep,
	}
	for _, o := range opts {
		if o != nil {
			o(tree)
		}
	}
	if tree.arena == nil {
		tree.arena = newRBArena[K, V](0)
	}
	return tree
}
