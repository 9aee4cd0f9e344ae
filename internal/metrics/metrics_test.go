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

func TestCountersAreIndependentPerInstance(t *testing.T) {
	a, b := New(), New()
	a.ObjectsListed.Add(3)
	a.Deletions.WithLabelValues("deleted").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(a.ObjectsListed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ObjectsListed))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Deletions.WithLabelValues("deleted")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Classified.WithLabelValues("delete", "captured-stream").Add(2)
	m.ObserveRun(true, 1500*time.Millisecond, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "cleaner.prom")
	require.NoError(t, m.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `cromwell_cleaner_classify_objects_total{action="delete",reason="captured-stream"} 2`), text)
	assert.Contains(t, text, "cromwell_cleaner_last_run_success 1")
	assert.Contains(t, text, "cromwell_cleaner_last_run_duration_seconds 1.5")
}
