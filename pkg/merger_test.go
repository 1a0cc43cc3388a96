package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestShard writes one shard with a truth row per event number, two
// pulses for even event numbers and an aux row when withAux is set.
func writeTestShard(t *testing.T, path string, withAux bool, eventNos ...int64) {
	t.Helper()
	truth := NewTableBuffer(TruthTable)
	pulses := NewTableBuffer("pulses")
	aux := NewTableBuffer(AuxTable)
	for _, eventNo := range eventNos {
		require.NoError(t, truth.Append(Fragment{"energy": {float64(eventNo)}}, eventNo))
		if eventNo%2 == 0 {
			require.NoError(t, pulses.Append(Fragment{"dom_x": {1, 2}, "charge": {0.5, 0.7}}, eventNo))
		}
		if withAux {
			require.NoError(t, aux.Append(Fragment{"energy_reco": {float64(eventNo) / 2}}, eventNo))
		}
	}
	require.NoError(t, WriteShard(path, truth, pulses, aux))
}

func TestWriteShard(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ShardName(3, 1))
	assert.Equal(t, "worker-3-1.db", filepath.Base(path))
	writeTestShard(t, path, false, 1, 2, 3)

	assert.Equal(t, 3, countRows(t, path, TruthTable))
	assert.Equal(t, 2, countRows(t, path, "pulses"))

	// Empty buffers do not create a table
	ctx := context.Background()
	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	has, err := tableHasRows(ctx, db, "main", AuxTable)
	require.NoError(t, err)
	assert.False(t, has)

	// Shards are never overwritten
	assert.Error(t, WriteShard(path, NewTableBuffer(TruthTable)))
}

func TestInferSchemaTakesAuxFromLaterShard(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	first := filepath.Join(dir, ShardName(0, 0))
	second := filepath.Join(dir, ShardName(1, 0))
	writeTestShard(t, first, false, 1)
	writeTestShard(t, second, true, 10, 11)

	schema, err := InferSchema(context.Background(), []string{first, second}, "pulses")
	require.NoError(t, err)
	assert.Equal(t, []string{EventNoColumn, "energy"}, schema.Truth)
	assert.Equal(t, []string{EventNoColumn, "charge", "dom_x"}, schema.Pulses)
	assert.Equal(t, []string{EventNoColumn, "energy_reco"}, schema.Aux)
}

func TestInferSchemaWithoutPulsesOrAux(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ShardName(0, 0))
	writeTestShard(t, path, false, 1, 3)

	schema, err := InferSchema(context.Background(), []string{path}, "pulses")
	require.NoError(t, err)
	assert.Equal(t, []string{EventNoColumn}, schema.Pulses)
	assert.Nil(t, schema.Aux)

	_, err = InferSchema(context.Background(), nil, "pulses")
	assert.ErrorIs(t, err, ErrNoShards)
}

func mergeTestShards(t *testing.T, dir string) ([]string, Schema) {
	t.Helper()
	shards := []string{
		filepath.Join(dir, "tmp", ShardName(0, 0)),
		filepath.Join(dir, "tmp", ShardName(0, 1)),
		filepath.Join(dir, "tmp", ShardName(1, 0)),
	}
	writeTestShard(t, shards[0], false, 0, 1)
	writeTestShard(t, shards[1], false, 2)
	writeTestShard(t, shards[2], true, 50, 51)
	schema, err := InferSchema(context.Background(), shards, "pulses")
	require.NoError(t, err)
	return shards, schema
}

func TestMerge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	shards, schema := mergeTestShards(t, dir)

	path := filepath.Join(dir, "data", "final.db")
	merger := &Merger{Path: path, Schema: schema}
	stats, err := merger.Merge(context.Background(), shards)
	require.NoError(t, err)
	assert.Equal(t, MergeStats{Shards: 3, TruthRows: 5, PulseRows: 6, AuxRows: 2}, stats)

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	var eventNos []int64
	require.NoError(t, db.Select(&eventNos, "SELECT event_no FROM truth ORDER BY rowid"))
	assert.Equal(t, []int64{0, 1, 2, 50, 51}, eventNos)

	var pulseEventNos []int64
	require.NoError(t, db.Select(&pulseEventNos, "SELECT DISTINCT event_no FROM pulses ORDER BY event_no"))
	assert.Equal(t, []int64{0, 2, 50}, pulseEventNos)

	var auxEventNos []int64
	require.NoError(t, db.Select(&auxEventNos, "SELECT event_no FROM RetroReco ORDER BY rowid"))
	assert.Equal(t, []int64{50, 51}, auxEventNos)

	var plan []struct {
		ID     int    `db:"id"`
		Parent int    `db:"parent"`
		NotUse int    `db:"notused"`
		Detail string `db:"detail"`
	}
	require.NoError(t, db.Select(&plan, "EXPLAIN QUERY PLAN SELECT * FROM pulses WHERE event_no = 2"))
	require.NotEmpty(t, plan)
	assert.True(t, strings.Contains(plan[0].Detail, "event_no_pulses"), plan[0].Detail)

	var pk int
	require.NoError(t, db.Get(&pk, "SELECT pk FROM pragma_table_info('truth') WHERE name = 'event_no'"))
	assert.Equal(t, 1, pk)
}

func TestMergeOrderDoesNotChangeRows(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	shards, schema := mergeTestShards(t, dir)
	reversed := []string{shards[2], shards[1], shards[0]}

	rows := func(name string, order []string) []float64 {
		path := filepath.Join(dir, "data", name)
		_, err := (&Merger{Path: path, Schema: schema}).Merge(context.Background(), order)
		require.NoError(t, err)
		db, err := OpenSQLite(path)
		require.NoError(t, err)
		defer db.Close()
		var values []float64
		require.NoError(t, db.Select(&values, "SELECT event_no + charge FROM pulses ORDER BY event_no, charge"))
		return values
	}
	assert.Equal(t, rows("forward.db", shards), rows("reversed.db", reversed))
}

func TestMergeExistingDatabase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	shards, schema := mergeTestShards(t, dir)
	path := filepath.Join(dir, "data", "final.db")
	touch(t, path)

	_, err := (&Merger{Path: path, Schema: schema}).Merge(context.Background(), shards)
	assert.ErrorIs(t, err, ErrDatabaseExists)

	stats, err := (&Merger{Path: path, Schema: schema, Overwrite: true, IndexAux: true}).Merge(context.Background(), shards)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TruthRows)

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	var indexes int
	require.NoError(t, db.Get(&indexes, "SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = 'event_no_RetroReco'"))
	assert.Equal(t, 1, indexes)
}

func TestMergeSchemaMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	shards, schema := mergeTestShards(t, dir)

	odd := filepath.Join(dir, "tmp", ShardName(2, 0))
	truth := NewTableBuffer(TruthTable)
	require.NoError(t, truth.Append(Fragment{"energy": {1}, "unexpected": {2}}, 99))
	require.NoError(t, WriteShard(odd, truth))

	_, err := (&Merger{Path: filepath.Join(dir, "data", "final.db"), Schema: schema}).Merge(context.Background(), append(shards, odd))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	var mergeErr *ErrMergeShard
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, odd, mergeErr.Shard)
}

func TestMergeCountsOnlyCommittedRows(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	shards, schema := mergeTestShards(t, dir)

	// The truth row copies fine, the pulsemap then rolls the shard back
	odd := filepath.Join(dir, "tmp", ShardName(2, 0))
	truth := NewTableBuffer(TruthTable)
	pulses := NewTableBuffer("pulses")
	require.NoError(t, truth.Append(Fragment{"energy": {1}}, 99))
	require.NoError(t, pulses.Append(Fragment{"dom_x": {1}, "unexpected": {2}}, 99))
	require.NoError(t, WriteShard(odd, truth, pulses))

	metrics := NewMetrics()
	merger := &Merger{Path: filepath.Join(dir, "data", "final.db"), Schema: schema, Metrics: metrics}
	stats, err := merger.Merge(context.Background(), append(shards, odd))
	require.ErrorIs(t, err, ErrSchemaMismatch)

	assert.Equal(t, MergeStats{Shards: 3, TruthRows: 5, PulseRows: 6, AuxRows: 2}, stats)
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.RowsMerged.WithLabelValues(TruthTable)))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.RowsMerged.WithLabelValues("pulses")))
	assert.Equal(t, 5, countRows(t, merger.Path, TruthTable))
}

func TestCleanup(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	shards, _ := mergeTestShards(t, dir)
	require.NoError(t, Cleanup(filepath.Join(dir, "tmp"), shards))
	_, err := os.Stat(filepath.Join(dir, "tmp"))
	assert.True(t, os.IsNotExist(err))
}
