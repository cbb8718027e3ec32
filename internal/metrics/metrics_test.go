package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.VoxelDone(true)
	r.VoxelDone(true)
	r.VoxelDone(false)
	r.EventsDetected(7)
	r.EventsDetected(5)
	r.SelectedLag(9)
	r.StageDuration("estimate", 20*time.Millisecond)
	r.SetRunInfo("abc", "canon2dd")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.voxels.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.voxels.WithLabelValues(StatusFailed)))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.events))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runInfo.WithLabelValues("abc", "canon2dd")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stages))
	assert.Equal(t, 1, testutil.CollectAndCount(r.lags))
}

func TestRecordersAreIndependent(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()

	a.VoxelDone(true)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.voxels.WithLabelValues(StatusOK)))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.VoxelDone(false)

	path := filepath.Join(t.TempDir(), "rshrf.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `rshrf_voxels_total{status="failed"} 1`), string(data))
}
