package tree

import (
	"math"
	randv2 "math/rand/v2"
	"sort"
	"strconv"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type checkData struct {
	color RBColor
	key   uint64
}

func requireColors(t *testing.T, tree RBTree[uint64, uint64], expected []checkData) {
	t.Helper()
	require.Equal(t, int64(len(expected)), tree.Len())
	tree.Foreach(func(idx int64, color RBColor, key uint64, val uint64) {
		require.Equal(t, expected[idx].color, color, "key %d", key)
		require.Equal(t, expected[idx].key, key)
	})
	require.NoError(t, Validate[uint64, uint64](tree))
}

func TestNilNode(t *testing.T) {
	tree := newRBTree[uint64, uint64]()
	require.Nil(t, tree.Root())
	require.Equal(t, 0, tree.Height())
	require.NoError(t, Validate[uint64, uint64](tree))

	_, ok := tree.Min()
	require.False(t, ok)
	_, ok = tree.Max()
	require.False(t, ok)
	_, ok = tree.RemoveMin()
	require.False(t, ok)
	require.Empty(t, tree.SortedPairs())
}

func TestRbtreeLeftAndRightRotate_Succ(t *testing.T) {
	tree := newRBTree[uint64, uint64]()

	require.NoError(t, tree.Insert(52, 1))
	requireColors(t, tree, []checkData{
		{Black, 52},
	})

	require.NoError(t, tree.Insert(47, 1))
	requireColors(t, tree, []checkData{
		{Red, 47}, {Black, 52},
	})

	require.NoError(t, tree.Insert(3, 1))
	requireColors(t, tree, []checkData{
		{Red, 3}, {Black, 47}, {Red, 52},
	})

	require.NoError(t, tree.Insert(35, 1))
	requireColors(t, tree, []checkData{
		{Black, 3},
		{Red, 35},
		{Black, 47},
		{Black, 52},
	})

	require.NoError(t, tree.Insert(24, 1))
	requireColors(t, tree, []checkData{
		{Red, 3},
		{Black, 24},
		{Red, 35},
		{Black, 47},
		{Black, 52},
	})

	// remove

	tree.Delete(24)
	requireColors(t, tree, []checkData{
		{Red, 3},
		{Black, 35},
		{Black, 47},
		{Black, 52},
	})

	tree.Delete(47)
	requireColors(t, tree, []checkData{
		{Black, 3},
		{Black, 35},
		{Black, 52},
	})
	require.Equal(t, uint64(35), tree.Root().Key())

	tree.Delete(52)
	requireColors(t, tree, []checkData{
		{Red, 3}, {Black, 35},
	})

	tree.Delete(3)
	requireColors(t, tree, []checkData{
		{Black, 35},
	})

	tree.Delete(35)
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())
}

func TestRbtreeInsertRotateScenarios(t *testing.T) {
	testcases := []struct {
		name     string
		keys     []uint64
		root     uint64
		expected []checkData
	}{
		{
			name:     "line to the right triggers left rotate",
			keys:     []uint64{10, 20, 30},
			root:     20,
			expected: []checkData{{Red, 10}, {Black, 20}, {Red, 30}},
		},
		{
			name:     "line to the left triggers right rotate",
			keys:     []uint64{10, 5, 1},
			root:     5,
			expected: []checkData{{Red, 1}, {Black, 5}, {Red, 10}},
		},
		{
			name:     "left triangle triggers double rotate",
			keys:     []uint64{10, 5, 7},
			root:     7,
			expected: []checkData{{Red, 5}, {Black, 7}, {Red, 10}},
		},
		{
			name:     "right triangle triggers double rotate",
			keys:     []uint64{10, 20, 15},
			root:     15,
			expected: []checkData{{Red, 10}, {Black, 15}, {Red, 20}},
		},
		{
			name:     "red uncle recolors",
			keys:     []uint64{50, 30, 70, 20},
			root:     50,
			expected: []checkData{{Red, 20}, {Black, 30}, {Black, 50}, {Black, 70}},
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			tree := newRBTree[uint64, uint64]()
			for i, key := range tc.keys {
				require.NoError(tt, tree.Insert(key, uint64(i+1)))
			}
			require.Equal(tt, tc.root, tree.Root().Key())
			require.Equal(tt, Black, tree.Root().Color())
			requireColors(tt, tree, tc.expected)
			for i, key := range tc.keys {
				val, ok := tree.Search(key)
				require.True(tt, ok)
				require.Equal(tt, uint64(i+1), val)
			}
		})
	}
}

func TestRbtreeDeleteTwoChildrenBorrowsSucc(t *testing.T) {
	tree := newRBTree[uint64, uint64]()
	for _, key := range []uint64{50, 30, 70, 20, 40, 60, 80} {
		require.NoError(t, tree.Insert(key, key*10))
	}
	requireColors(t, tree, []checkData{
		{Red, 20}, {Black, 30}, {Red, 40}, {Black, 50}, {Red, 60}, {Black, 70}, {Red, 80},
	})

	tree.Delete(30)
	_, ok := tree.Search(30)
	require.False(t, ok)
	val, ok := tree.Search(40)
	require.True(t, ok)
	require.Equal(t, uint64(400), val)

	// 40 took 30's place, its former slot is recycled.
	root := tree.Root()
	require.Equal(t, uint64(50), root.Key())
	require.Equal(t, uint64(40), root.Left().Key())
	require.Equal(t, uint64(20), root.Left().Left().Key())
	require.Nil(t, root.Left().Right())
	requireColors(t, tree, []checkData{
		{Red, 20}, {Black, 40}, {Black, 50}, {Red, 60}, {Black, 70}, {Red, 80},
	})
	require.Equal(t, 6, tree.arena.inUse())
	require.Len(t, tree.arena.free, 1)
}

func TestRbtreeDeleteAbsentKey(t *testing.T) {
	tree := newRBTree[uint64, uint64]()
	for _, key := range []uint64{8, 3, 11, 1, 5} {
		require.NoError(t, tree.Insert(key, key))
	}
	before := tree.SortedPairs()
	tree.Delete(42)
	tree.Delete(0)
	require.Equal(t, before, tree.SortedPairs())
	require.Equal(t, int64(5), tree.Len())

	empty := newRBTree[uint64, uint64]()
	empty.Delete(1)
	require.Equal(t, int64(0), empty.Len())
}

func TestRbtreeSortedPairsIdempotent(t *testing.T) {
	tree := NewRBTree[string, string]()
	names := []string{"mallory", "alice", "trent", "bob", "eve", "carol"}
	for _, name := range names {
		require.NoError(t, tree.Insert(name, name+"-phone"))
	}
	first := tree.SortedPairs()
	second := tree.SortedPairs()
	require.Equal(t, first, second)

	sort.Strings(names)
	require.Equal(t, names, lo.Map(first, func(p Pair[string, string], _ int) string {
		return p.Key
	}))
	for _, p := range first {
		require.Equal(t, p.Key+"-phone", p.Val)
	}
}

func TestRbtreeDuplicatePolicy(t *testing.T) {
	t.Run("keep", func(tt *testing.T) {
		tree := NewRBTree[string, int]()
		require.NoError(tt, tree.Insert("a", 1))
		require.NoError(tt, tree.Insert("a", 2))
		require.Equal(tt, int64(2), tree.Len())
		require.Equal(tt, []Pair[string, int]{{"a", 1}, {"a", 2}}, tree.SortedPairs())

		// The first equal node met while descending wins.
		val, ok := tree.Search("a")
		require.True(tt, ok)
		require.Equal(tt, 1, val)

		tree.Delete("a")
		require.Equal(tt, int64(1), tree.Len())
		val, ok = tree.Search("a")
		require.True(tt, ok)
		require.Equal(tt, 2, val)
		require.NoError(tt, Validate[string, int](tree))
	})
	t.Run("overwrite", func(tt *testing.T) {
		tree := NewRBTree[string, int](WithRBTreeDuplicatePolicy[string, int](DuplicateOverwrite))
		require.NoError(tt, tree.Insert("a", 1))
		require.NoError(tt, tree.Insert("b", 1))
		require.NoError(tt, tree.Insert("a", 2))
		require.Equal(tt, int64(2), tree.Len())
		val, ok := tree.Search("a")
		require.True(tt, ok)
		require.Equal(tt, 2, val)
	})
	t.Run("reject", func(tt *testing.T) {
		tree := NewRBTree[string, int](WithRBTreeDuplicatePolicy[string, int](DuplicateReject))
		require.NoError(tt, tree.Insert("a", 1))
		require.ErrorIs(tt, tree.Insert("a", 2), ErrDuplicateKey)
		require.Equal(tt, int64(1), tree.Len())
		val, _ := tree.Search("a")
		require.Equal(tt, 1, val)
	})
}

func TestRbtreeNaNKey(t *testing.T) {
	tree := NewRBTree[float64, string](WithRBTreeDuplicatePolicy[float64, string](DuplicateOverwrite))
	for _, k := range []float64{1, 2, 3} {
		require.NoError(t, tree.Insert(k, "orig"))
	}
	_, ok := tree.Search(math.NaN())
	require.False(t, ok)

	require.NoError(t, tree.Insert(math.NaN(), "nan"))
	require.Equal(t, int64(4), tree.Len())
	require.NoError(t, Validate[float64, string](tree))

	pairs := tree.SortedPairs()
	require.True(t, math.IsNaN(pairs[0].Key))
	require.Equal(t, "nan", pairs[0].Val)
	for i, k := range []float64{1, 2, 3} {
		require.Equal(t, k, pairs[i+1].Key)
		require.Equal(t, "orig", pairs[i+1].Val)
	}

	val, ok := tree.Search(math.NaN())
	require.True(t, ok)
	require.Equal(t, "nan", val)

	// A second NaN overwrites the first one.
	require.NoError(t, tree.Insert(math.NaN(), "nan2"))
	require.Equal(t, int64(4), tree.Len())
	tree.Delete(math.NaN())
	require.Equal(t, int64(3), tree.Len())
	_, ok = tree.Search(math.NaN())
	require.False(t, ok)
	require.NoError(t, Validate[float64, string](tree))
}

func TestParseDuplicatePolicy(t *testing.T) {
	testcases := []struct {
		in      string
		want    DuplicatePolicy
		wantErr bool
	}{
		{"", DuplicateKeep, false},
		{"keep", DuplicateKeep, false},
		{" Overwrite ", DuplicateOverwrite, false},
		{"REJECT", DuplicateReject, false},
		{"merge", DuplicateKeep, true},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(tt *testing.T) {
			p, err := ParseDuplicatePolicy(tc.in)
			if tc.wantErr {
				require.Error(tt, err)
				return
			}
			require.NoError(tt, err)
			require.Equal(tt, tc.want, p)
			if len(tc.in) > 0 {
				again, err := ParseDuplicatePolicy(p.String())
				require.NoError(tt, err)
				require.Equal(tt, p, again)
			}
		})
	}
}

func TestRbtree_RemoveMin(t *testing.T) {
	tree := newRBTree[uint64, uint64]()
	for _, key := range []uint64{52, 47, 3, 35, 24} {
		require.NoError(t, tree.Insert(key, key+1))
	}

	minPair, ok := tree.Min()
	require.True(t, ok)
	require.Equal(t, uint64(3), minPair.Key)
	maxPair, ok := tree.Max()
	require.True(t, ok)
	require.Equal(t, uint64(52), maxPair.Key)

	for _, expected := range []uint64{3, 24, 35, 47, 52} {
		x, ok := tree.RemoveMin()
		require.True(t, ok)
		require.Equal(t, expected, x.Key)
		require.Equal(t, expected+1, x.Val)
		require.NoError(t, Validate[uint64, uint64](tree))
	}
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())
}

func TestRbtreeRelease(t *testing.T) {
	tree := newRBTree[int, string](WithRBTreeCapacity[int, string](64))
	for i := 0; i < 64; i++ {
		require.NoError(t, tree.Insert(i, strconv.Itoa(i)))
	}
	require.Equal(t, 64, tree.arena.inUse())
	tree.Release()
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())
	require.Equal(t, 0, tree.arena.inUse())
	require.Empty(t, tree.SortedPairs())

	require.NoError(t, tree.Insert(7, "7"))
	val, ok := tree.Search(7)
	require.True(t, ok)
	require.Equal(t, "7", val)
}

func TestRbtreeArenaReusesReleasedSlots(t *testing.T) {
	tree := newRBTree[int, int]()
	for i := 0; i < 16; i++ {
		require.NoError(t, tree.Insert(i, i))
	}
	slots := len(tree.arena.slots)
	for i := 0; i < 8; i++ {
		tree.Delete(i)
	}
	for i := 100; i < 108; i++ {
		require.NoError(t, tree.Insert(i, i))
	}
	require.Equal(t, slots, len(tree.arena.slots))
	require.Empty(t, tree.arena.free)
	require.Equal(t, 16, tree.arena.inUse())
	require.NoError(t, Validate[int, int](tree))
}

func TestRbtreeSerialInsertHeightBound(t *testing.T) {
	tree := newRBTree[int, int]()
	for i := 0; i < 4096; i++ {
		require.NoError(t, tree.Insert(i, i))
	}
	require.NoError(t, HeightBoundValidate[int, int](tree))
	require.LessOrEqual(t, tree.Height(), 24)
	require.NoError(t, Validate[int, int](tree))

	for i := 4095; i >= 0; i -= 2 {
		tree.Delete(i)
	}
	require.Equal(t, int64(2048), tree.Len())
	require.NoError(t, Validate[int, int](tree))
}

func TestRbtreeRandomInsertThenDeleteAll(t *testing.T) {
	tree := newRBTree[int, string]()
	keys := lo.Shuffle(lo.Range(100))
	for _, key := range keys {
		require.NoError(t, tree.Insert(key, strconv.Itoa(key)))
		require.NoError(t, Validate[int, string](tree))
	}
	require.Equal(t, int64(100), tree.Len())

	for _, key := range lo.Shuffle(lo.Range(100)) {
		before := tree.Len()
		tree.Delete(key)
		_, ok := tree.Search(key)
		require.False(t, ok)
		require.Equal(t, before-1, tree.Len())
		require.NoError(t, Validate[int, string](tree))
	}
	require.Nil(t, tree.Root())
	require.Empty(t, tree.SortedPairs())
}

func rbtreeRandomInsertAndRemoveRunCore(t *testing.T, total int, violationCheck bool) {
	insertTotal := int(float64(total) * 0.8)
	removeTotal := total - insertTotal

	keys := lo.Shuffle(lo.Range(total))
	insertElements, removeElements := keys[:insertTotal], keys[insertTotal:]

	tree := newRBTree[int, int]()
	for _, key := range keys {
		require.NoError(t, tree.Insert(key, key))
		if violationCheck {
			require.NoError(t, Validate[int, int](tree))
		}
	}

	for i := 0; i < removeTotal; i++ {
		tree.Delete(removeElements[i])
		if violationCheck {
			require.NoError(t, Validate[int, int](tree))
		}
	}
	require.NoError(t, Validate[int, int](tree))

	sort.Ints(insertElements)
	require.Equal(t, int64(insertTotal), tree.Len())
	tree.Foreach(func(idx int64, color RBColor, key int, val int) {
		require.Equal(t, insertElements[idx], key)
		require.Equal(t, key, val)
	})
}

func TestRbtreeRandomInsertAndRemove(t *testing.T) {
	testcases := []struct {
		name           string
		total          int
		violationCheck bool
	}{
		{
			name:  "random 100000",
			total: 100000,
		},
		{
			name:           "violation check 2000",
			total:          2000,
			violationCheck: true,
		},
		{
			name:           "violation check 5000",
			total:          5000,
			violationCheck: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			rbtreeRandomInsertAndRemoveRunCore(tt, tc.total, tc.violationCheck)
		})
	}
}

func TestRbtreeRandomDuplicateKeys(t *testing.T) {
	tree := newRBTree[int, int]()
	live := map[int]int{}
	for i := 0; i < 3000; i++ {
		key := randv2.IntN(64)
		if randv2.IntN(3) == 0 {
			tree.Delete(key)
			if live[key] > 0 {
				live[key]--
			}
		} else {
			require.NoError(t, tree.Insert(key, i))
			live[key]++
		}
	}
	require.NoError(t, Validate[int, int](tree))

	counted := map[int]int{}
	tree.Foreach(func(idx int64, color RBColor, key int, val int) {
		counted[key]++
	})
	for key, n := range live {
		require.Equal(t, n, counted[key], "key %d", key)
	}
}

func BenchmarkRBTree_Random(b *testing.B) {
	testByBytes := []byte(`abc`)

	b.StopTimer()
	tree := NewRBTree[int, []byte]()

	rngArr := make([]int, 0, b.N)
	for i := 0; i < b.N; i++ {
		rngArr = append(rngArr, randv2.Int())
	}

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		if err := tree.Insert(rngArr[i], testByBytes); err != nil {
			panic(err)
		}
	}
}

func BenchmarkRBTree_Serial(b *testing.B) {
	testByBytes := []byte(`abc`)

	b.StopTimer()
	tree := NewRBTree[int, []byte]()

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		_ = tree.Insert(i, testByBytes)
	}
}
