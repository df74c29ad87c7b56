package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chessnet/internal/arch"
)

var testInput = arch.Input{Batch: 1, Planes: 34, Height: 8, Width: 8}

func testConfig() arch.Config {
	cfg := arch.DefaultConfig()
	cfg.Channels = 16
	cfg.ValueFCSize = 32
	cfg.PolicyChannels = 4
	return cfg
}

func openTest(t *testing.T, opts ...Option) *Catalog {
	t.Helper()
	c, err := OpenInMemory(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_PutGet(t *testing.T) {
	c := openTest(t)
	net, err := arch.Build(testInput, testConfig())
	require.NoError(t, err)

	put, err := c.Put(net)
	require.NoError(t, err)
	assert.Len(t, put.Key, 16)
	assert.Equal(t, net.Graph.Len(), put.Nodes)
	assert.Positive(t, put.Params)

	got, err := c.Get(put.Key)
	require.NoError(t, err)
	assert.Equal(t, put.Key, got.Key)
	assert.Equal(t, testInput, got.Input)
	assert.Equal(t, net.Config, got.Config)

	g, err := got.Decode()
	require.NoError(t, err)
	assert.Equal(t, net.Graph.Len(), g.Len())
	out, ok := g.Lookup("policy_out")
	require.True(t, ok)
	s, _ := g.Shape(out)
	assert.Equal(t, net.PolicySize(), s[1])
}

func TestCatalog_NotFound(t *testing.T) {
	c := openTest(t)
	_, err := c.Get("0000000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_ResolveCountsHitsAndMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := openTest(t, WithRegisterer(reg))

	first, cached, err := c.Resolve(testInput, testConfig())
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := c.Resolve(testInput, testConfig())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first.Key, second.Key)
	assert.JSONEq(t, string(first.Graph), string(second.Graph))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.writes))

	n, err := testutil.GatherAndCount(reg,
		"chessnet_catalog_hits_total", "chessnet_catalog_misses_total", "chessnet_catalog_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// a second catalog on the same registry reuses the counters
	other := openTest(t, WithRegisterer(reg))
	_, err = other.Get(first.Key)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.misses))
}

func TestCatalog_ResolveInvalidConfig(t *testing.T) {
	c := openTest(t)
	cfg := testConfig()
	cfg.ActType = "swish"
	_, _, err := c.Resolve(testInput, cfg)
	var uae *arch.UnsupportedActivationError
	require.ErrorAs(t, err, &uae)

	entries, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCatalog_ListAndReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)

	var keys []string
	for _, enc := range []arch.MoveEncoding{arch.FromPlane, arch.FromLabelSet} {
		cfg := testConfig()
		cfg.MoveEncoding = enc
		e, _, err := c.Resolve(testInput, cfg)
		require.NoError(t, err)
		keys = append(keys, e.Key)
	}
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()
	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Less(t, entries[0].Key, entries[1].Key)
	assert.ElementsMatch(t, keys, []string{entries[0].Key, entries[1].Key})
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(testInput, testConfig())
	require.NoError(t, err)
	b, err := Fingerprint(testInput, testConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg := testConfig()
	cfg.UseSEPolicy = true
	c, err := Fingerprint(testInput, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	in := testInput
	in.Batch = 2
	d, err := Fingerprint(in, testConfig())
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestDataPaths(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	dir, err := GetCatalogDir()
	require.NoError(t, err)
	assert.Equal(t, "catalog", filepath.Base(dir))
	assert.Equal(t, appName, filepath.Base(filepath.Dir(dir)))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
