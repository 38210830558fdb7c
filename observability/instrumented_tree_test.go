package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/benz9527/xrbt/lib/tree"
)

func newManualProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(context.Background(), &rm))
	res := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			res[m.Name] = m.Data
		}
	}
	return res
}

// sumBy indexes the int64 sum data points by one attribute value.
func sumBy(t *testing.T, data metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok)
	res := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, ok := dp.Attributes.Value(attribute.Key(key))
		require.True(t, ok)
		res[v.AsString()] = dp.Value
	}
	return res
}

func TestInstrumentedTree(t *testing.T) {
	mp, reader := newManualProvider(t)
	it := NewInstrumentedTree[string, string](
		tree.NewRBTree[string, string](tree.WithRBTreeDuplicatePolicy[string, string](tree.DuplicateReject)),
		mp,
	)

	require.NoError(t, it.Insert("bob", "555-0101"))
	require.NoError(t, it.Insert("alice", "555-0100"))
	require.NoError(t, it.Insert("carol", "555-0102"))
	require.ErrorIs(t, it.Insert("bob", "555-9999"), tree.ErrDuplicateKey)

	phone, ok := it.Search("bob")
	require.True(t, ok)
	require.Equal(t, "555-0101", phone)
	_, ok = it.Search("dave")
	require.False(t, ok)

	it.Delete("carol")
	require.Equal(t, []string{"alice", "bob"}, pairKeys(it.SortedPairs()))

	minPair, ok := it.Min()
	require.True(t, ok)
	require.Equal(t, "alice", minPair.Key)
	maxPair, ok := it.Max()
	require.True(t, ok)
	require.Equal(t, "bob", maxPair.Key)
	require.Equal(t, int64(2), it.Len())
	require.Equal(t, 2, it.Height())
	require.Equal(t, "bob", it.Root().Key())

	visited := 0
	it.Foreach(func(idx int64, color tree.RBColor, key string, val string) {
		visited++
	})
	require.Equal(t, 2, visited)

	metrics := collect(t, reader)
	ops := sumBy(t, metrics["rbtree.ops"], "op")
	require.Equal(t, int64(4), ops["insert"])
	require.Equal(t, int64(2), ops["search"])
	require.Equal(t, int64(1), ops["delete"])
	require.Equal(t, int64(2), ops["list"])

	searches := sumBy(t, metrics["rbtree.search.results"], "result")
	require.Equal(t, int64(1), searches["hit"])
	require.Equal(t, int64(1), searches["miss"])

	failures := sumBy(t, metrics["rbtree.insert.failures"], "result")
	require.Equal(t, int64(1), failures["rejected"])

	gauge, ok := metrics["rbtree.size"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	require.Equal(t, int64(2), gauge.DataPoints[0].Value)

	pair, ok := it.RemoveMin()
	require.True(t, ok)
	require.Equal(t, "alice", pair.Key)
	it.Release()
	require.Equal(t, int64(0), it.Len())

	metrics = collect(t, reader)
	ops = sumBy(t, metrics["rbtree.ops"], "op")
	require.Equal(t, int64(1), ops["remove_min"])
	require.Equal(t, int64(1), ops["release"])
	gauge = metrics["rbtree.size"].(metricdata.Gauge[int64])
	require.Equal(t, int64(0), gauge.DataPoints[0].Value)

	require.NoError(t, it.Close())
	metrics = collect(t, reader)
	if data, ok := metrics["rbtree.size"]; ok {
		require.Empty(t, data.(metricdata.Gauge[int64]).DataPoints)
	}
}

func pairKeys(pairs []tree.Pair[string, string]) []string {
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, p.Key)
	}
	return keys
}
