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

	"github.com/rewired-gh/flatvalue/internal/models"
)

func TestObserve(t *testing.T) {
	r := NewRecorder()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	r.Observe(
		models.Summary{TotalTransactions: 40},
		models.Diagnostics{
			Exclusions:     []models.Exclusion{{ID: 1}, {ID: 2}},
			StoreyDefaults: 3,
			LeaseDefaults:  1,
		},
		at,
	)
	r.Observe(models.Summary{TotalTransactions: 10}, models.Diagnostics{}, at)

	assert.Equal(t, 50.0, testutil.ToFloat64(r.scored))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.excluded))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.defaults.WithLabelValues("storey_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.defaults.WithLabelValues("lease_commence_date")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(r.lastRun))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(models.Summary{TotalTransactions: 7}, models.Diagnostics{}, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "flatvalue.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "flatvalue_records_scored_total 7"), out)
	assert.Contains(t, out, "# TYPE flatvalue_last_run_timestamp_seconds gauge")
}

func TestWriteTextfileDisabled(t *testing.T) {
	assert.NoError(t, NewRecorder().WriteTextfile(""))
}
