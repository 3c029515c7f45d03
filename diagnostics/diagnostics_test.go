package diagnostics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/smogncv/pkg/log"
)

func observation(fold int) Observation {
	return Observation{
		RunID:         "0f8fad5b-d9cb-469f-a165-70867728950e",
		Fold:          fold,
		Before:        []float64{0, 0, 0, 0, 3, 12},
		After:         []float64{0, 0, 3, 12, 5.5, 9.1},
		NonZeroBefore: 2,
		NonZeroAfter:  4,
		Synthetic:     2,
	}
}

func TestTeeAndRecorder(t *testing.T) {
	var a, b Recorder
	calls := 0
	sink := Tee(&a, nil, &b, SinkFunc(func(Observation) { calls++ }))

	sink.Observe(observation(0))
	sink.Observe(observation(1))

	assert.Len(t, a.Observations(), 2)
	assert.Len(t, b.Observations(), 2)
	assert.Equal(t, 1, b.Observations()[1].Fold)
	assert.Equal(t, 2, calls)
}

func TestLogSink(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	NewLogSink(logger).Observe(observation(3))

	assert.True(t, logger.ContainsMessage("non zeros in new/old data"))
	assert.True(t, logger.ContainsField(log.NonZeroBeforeKey, 2.0))
	assert.True(t, logger.ContainsField(log.NonZeroAfterKey, 4.0))
	assert.True(t, logger.ContainsField(log.FoldKey, 3.0))
	assert.True(t, logger.ContainsField(log.ComponentKey, "diagnostics"))
}

func TestAsyncSink(t *testing.T) {
	t.Run("delivers everything before close returns", func(t *testing.T) {
		var rec Recorder
		s := NewAsyncSink(&rec, 8, nil)
		for i := 0; i < 5; i++ {
			s.Observe(observation(i))
		}
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		got := rec.Observations()
		require.Len(t, got, 5)
		for i, o := range got {
			assert.Equal(t, i, o.Fold)
		}
		assert.Equal(t, 0, s.Dropped())

		s.Observe(observation(9))
		assert.Equal(t, 1, s.Dropped())
	})

	t.Run("drops when full instead of blocking", func(t *testing.T) {
		gate := make(chan struct{})
		var rec Recorder
		s := NewAsyncSink(SinkFunc(func(o Observation) {
			<-gate
			rec.Observe(o)
		}), 1, nil)

		for i := 0; i < 3; i++ {
			s.Observe(observation(i))
		}
		close(gate)
		require.NoError(t, s.Close())

		assert.GreaterOrEqual(t, s.Dropped(), 1)
		assert.Equal(t, 3, len(rec.Observations())+s.Dropped())
	})

	t.Run("survives a panicking sink", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelDebug)
		var rec Recorder
		s := NewAsyncSink(SinkFunc(func(o Observation) {
			if o.Fold == 0 {
				panic("boom")
			}
			rec.Observe(o)
		}), 4, logger)
		s.Observe(observation(0))
		s.Observe(observation(1))
		require.NoError(t, s.Close())

		assert.Len(t, rec.Observations(), 1)
		assert.True(t, logger.ContainsMessage("diagnostics sink failed"))
	})
}

func TestPlotSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	s, err := NewPlotSink(dir, nil)
	require.NoError(t, err)

	o := observation(2)
	path := s.Path(o)
	assert.Equal(t, filepath.Join(dir, "0f8fad5b-fold02.png"), path)

	s.Observe(o)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	empty := Observation{Fold: 1, Before: []float64{1, 2, 3}}
	require.NoError(t, s.Render(empty, filepath.Join(dir, "partial.png")))
	assert.Equal(t, filepath.Join(dir, "run-fold01.png"), s.Path(empty))
}
