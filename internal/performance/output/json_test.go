package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testResult(true)))

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "PR review load", report["name"])
	assert.Equal(t, true, report["passed"])
	assert.Equal(t, "2m0s", report["duration"])

	scenarios, ok := report["scenarios"].([]interface{})
	require.True(t, ok)
	require.Len(t, scenarios, 1)

	sc := scenarios[0].(map[string]interface{})
	assert.Equal(t, "create_pr", sc["name"])

	summary := sc["summary"].(map[string]interface{})
	assert.EqualValues(t, 1200, summary["arrivals"])
	assert.EqualValues(t, 1196, summary["iterationsStarted"])
	assert.EqualValues(t, 4, summary["iterationsDropped"])
	assert.Equal(t, map[string]interface{}{"pool_exhausted": float64(4)}, summary["droppedByReason"])

	thresholds := report["thresholds"].([]interface{})
	assert.Len(t, thresholds, 2)
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, WriteJSONFile(path, testResult(false)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.False(t, report.Passed)
	require.Len(t, report.Scenarios, 1)
	assert.Equal(t, int64(1196), report.Scenarios[0].Summary.Completed)
}
