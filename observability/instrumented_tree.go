package observability

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/benz9527/xrbt/lib/infra"
	"github.com/benz9527/xrbt/lib/tree"
)

const treeMeterName = "xrbt/tree"

var (
	opInsert    = metric.WithAttributes(attribute.String("op", "insert"))
	opDelete    = metric.WithAttributes(attribute.String("op", "delete"))
	opSearch    = metric.WithAttributes(attribute.String("op", "search"))
	opList      = metric.WithAttributes(attribute.String("op", "list"))
	opRemoveMin = metric.WithAttributes(attribute.String("op", "remove_min"))
	opRelease   = metric.WithAttributes(attribute.String("op", "release"))

	searchHit      = metric.WithAttributes(attribute.String("result", "hit"))
	searchMiss     = metric.WithAttributes(attribute.String("result", "miss"))
	insertRejected = metric.WithAttributes(attribute.String("result", "rejected"))
)

var _ tree.RBTree[string, string] = (*InstrumentedTree[string, string])(nil)

// InstrumentedTree counts the operations of the wrapped tree. The size gauge
// is observed from the reader goroutine, so every call is serialized by mu.
type InstrumentedTree[K infra.OrderedKey, V any] struct {
	mu       sync.Mutex
	tree     tree.RBTree[K, V]
	ops      metric.Int64Counter
	searches metric.Int64Counter
	inserts  metric.Int64Counter
	reg      metric.Registration
}

func NewInstrumentedTree[K infra.OrderedKey, V any](t tree.RBTree[K, V], mp metric.MeterProvider) *InstrumentedTree[K, V] {
	meter := mp.Meter(treeMeterName)
	it := &InstrumentedTree[K, V]{
		tree: t,
		ops: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.ops",
			metric.WithDescription("The tree operations by kind."),
		)),
		searches: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.search.results",
			metric.WithDescription("The search hits and misses."),
		)),
		inserts: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.insert.failures",
			metric.WithDescription("The inserts refused by the duplicate policy."),
		)),
	}
	size := lo.Must[metric.Int64ObservableGauge](meter.Int64ObservableGauge(
		"rbtree.size",
		metric.WithDescription("The number of live nodes."),
	))
	it.reg = lo.Must[metric.Registration](meter.RegisterCallback(
		func(ctx context.Context, ob metric.Observer) error {
			ob.ObserveInt64(size, it.Len())
			return nil
		},
		size,
	))
	return it
}

// Close stops observing the size.
func (it *InstrumentedTree[K, V]) Close() error {
	return it.reg.Unregister()
}

func (it *InstrumentedTree[K, V]) Len() int64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.tree.Len()
}

func (it *InstrumentedTree[K, V]) Height() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.tree.Height()
}

// Root hands out a view which is only valid until the next mutation.
func (it *InstrumentedTree[K, V]) Root() tree.RBNode[K, V] {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.tree.Root()
}

func (it *InstrumentedTree[K, V]) Insert(key K, val V) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	ctx := context.Background()
	it.ops.Add(ctx, 1, opInsert)
	err := it.tree.Insert(key, val)
	if errors.Is(err, tree.ErrDuplicateKey) {
		it.inserts.Add(ctx, 1, insertRejected)
	}
	return err
}

func (it *InstrumentedTree[K, V]) Delete(key K) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.ops.Add(context.Background(), 1, opDelete)
	it.tree.Delete(key)
}

func (it *InstrumentedTree[K, V]) Search(key K) (V, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	ctx := context.Background()
	it.ops.Add(ctx, 1, opSearch)
	val, ok := it.tree.Search(key)
	if ok {
		it.searches.Add(ctx, 1, searchHit)
	} else {
		it.searches.Add(ctx, 1, searchMiss)
	}
	return val, ok
}

func (it *InstrumentedTree[K, V]) SortedPairs() []tree.Pair[K, V] {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.ops.Add(context.Background(), 1, opList)
	return it.tree.SortedPairs()
}

func (it *InstrumentedTree[K, V]) Min() (tree.Pair[K, V], bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.tree.Min()
}

func (it *InstrumentedTree[K, V]) Max() (tree.Pair[K, V], bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.tree.Max()
}

func (it *InstrumentedTree[K, V]) RemoveMin() (tree.Pair[K, V], bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.ops.Add(context.Background(), 1, opRemoveMin)
	return it.tree.RemoveMin()
}

// Foreach holds the lock for the whole walk, action must not call back
// into the tree.
func (it *InstrumentedTree[K, V]) Foreach(action func(idx int64, color tree.RBColor, key K, val V)) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.ops.Add(context.Background(), 1, opList)
	it.tree.Foreach(action)
}

func (it *InstrumentedTree[K, V]) Release() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.ops.Add(context.Background(), 1, opRelease)
	it.tree.Release()
}
