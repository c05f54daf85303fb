package journal

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEquityCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteEquityCSV(&buf, fixtureState(t)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "agent_id", rows[0][0])
	assert.Equal(t, "portfolio_value", rows[0][4])

	assert.Equal(t, []string{"alpha", "Alpha", "1"}, rows[1][:3])
	assert.Equal(t, "2024-01-01T12:01:00Z", rows[1][3])
	assert.Equal(t, "1000.000000", rows[1][4])
	assert.Equal(t, "1020.000000", rows[2][4])
	assert.Equal(t, "beta", rows[3][0])
}

func TestWriteTradesCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, fixtureState(t)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "trade_id", rows[0][0])
	assert.Equal(t, []string{"A1", "alpha", "BTC/USDT", "BUY"}, rows[1][:4])
	assert.Equal(t, "10.000000", rows[2][10])

	rejected := rows[4]
	assert.Equal(t, "B2", rejected[0])
	assert.Equal(t, "REJECTED", rejected[8])
	assert.Equal(t, "NO_QUOTE", rejected[9])
}

func TestWriteCSVEmptyState(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, &State{}))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
