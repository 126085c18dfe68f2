package tsdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/decommigrate/internal/testutil"
	"github.com/dwsmith1983/decommigrate/internal/tsdb"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

func newTestClient(sender *testutil.MockSender) *tsdb.Client {
	return tsdb.NewClient(types.QuestDBConfig{ILPAddr: "localhost:9000"}, nil, tsdb.WithSender(sender))
}

func TestWriteRowTypeMapping(t *testing.T) {
	sender := testutil.NewMockSender()
	client := newTestClient(sender)

	err := client.WriteRow(context.Background(), "TLM__INST__HEALTH_STATUS", map[string]any{
		"TEMP1": 23.5,
		"COUNT": int64(7),
		"MODE":  "SAFE",
		"FLAG":  true,
	}, 1700000000000000001)
	require.NoError(t, err)

	rows := sender.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "TLM__INST__HEALTH_STATUS", rows[0].Table)
	assert.Equal(t, 23.5, rows[0].Columns["TEMP1"])
	assert.Equal(t, int64(7), rows[0].Columns["COUNT"])
	assert.Equal(t, "SAFE", rows[0].Columns["MODE"])
	assert.Equal(t, true, rows[0].Columns["FLAG"])
	assert.Equal(t, time.Unix(0, 1700000000000000001).UTC(), rows[0].At)
}

func TestWriteRowEmptyIsNoop(t *testing.T) {
	sender := testutil.NewMockSender()
	client := newTestClient(sender)

	require.NoError(t, client.WriteRow(context.Background(), "T", map[string]any{}, 1))
	assert.Empty(t, sender.Rows())
}

func TestWriteRowClassifiesRecoverableErrors(t *testing.T) {
	sender := testutil.NewMockSender()
	sender.AtErr = errors.New("ilp: cast error from protocol type STRING to column type DOUBLE")
	client := newTestClient(sender)

	err := client.WriteRow(context.Background(), "T", map[string]any{"X": "y"}, 1)
	require.Error(t, err)
	assert.True(t, tsdb.IsRecoverable(err))

	sender.AtErr = errors.New("connection refused")
	err = client.WriteRow(context.Background(), "T", map[string]any{"X": "y"}, 1)
	require.Error(t, err)
	assert.False(t, tsdb.IsRecoverable(err))
}

func TestFlushBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	sender := testutil.NewMockSender()
	sender.FlushErr = errors.New("connection reset")
	client := newTestClient(sender)

	for i := 0; i < 5; i++ {
		err := client.Flush(context.Background())
		require.Error(t, err)
		assert.False(t, tsdb.IsBreakerOpen(err), "attempt %d", i)
	}

	err := client.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, tsdb.IsBreakerOpen(err))
}

func TestFlushSucceeds(t *testing.T) {
	sender := testutil.NewMockSender()
	client := newTestClient(sender)

	require.NoError(t, client.Flush(context.Background()))
	assert.Equal(t, 1, sender.Flushes())
}

func TestCloseReleasesSender(t *testing.T) {
	sender := testutil.NewMockSender()
	client := newTestClient(sender)

	client.Close(context.Background())
	assert.True(t, sender.Closed())

	// Safe to call again.
	client.Close(context.Background())
}
