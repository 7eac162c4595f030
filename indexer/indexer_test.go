package indexer

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func sampleReceipt(hash string, height int64, jobID string) *tx.Receipt {
	return &tx.Receipt{
		TxHash: hash,
		Height: height,
		Time:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:   types.TypeMsgCreateJob,
		Signer: "cosmos1requester",
		Result: json.RawMessage(`{"job_id":` + jobID + `}`),
		Events: []tx.Event{
			{Type: "transfer", Attributes: []tx.Attribute{{Key: "amount", Value: "1000000uobl"}}},
			{Type: types.EventTypeJobCreated, Attributes: []tx.Attribute{
				{Key: types.AttributeKeyJobID, Value: jobID},
				{Key: types.AttributeKeyRequester, Value: "cosmos1requester"},
			}},
		},
	}
}

func TestRows(t *testing.T) {
	row, events, err := Rows(sampleReceipt("ABCD", 7, "3"))
	require.NoError(t, err)

	require.Equal(t, "ABCD", row.Hash)
	require.Equal(t, int64(7), row.Height)
	require.JSONEq(t, `{"job_id":3}`, string(row.Result))

	require.Len(t, events, 2)
	require.Nil(t, events[0].JobID)
	require.Equal(t, 1, events[1].Index)
	require.NotNil(t, events[1].JobID)
	require.Equal(t, uint64(3), *events[1].JobID)
	require.JSONEq(t, `{"job_id":"3","requester":"cosmos1requester"}`, string(events[1].Attributes))
}

func TestRowsRejectsBadJobID(t *testing.T) {
	_, _, err := Rows(sampleReceipt("ABCD", 7, `"x"`))
	require.Error(t, err)
}

func TestRowsWithoutResult(t *testing.T) {
	receipt := &tx.Receipt{TxHash: "FF", Height: 1, Code: 21, Codespace: types.ModuleName}
	row, events, err := Rows(receipt)
	require.NoError(t, err)
	require.Nil(t, row.Result)
	require.Empty(t, events)
	require.Equal(t, uint32(21), row.Code)
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	require.NoError(t, s.Publish(context.Background(), sampleReceipt("A", 1, "0")))
	require.NoError(t, s.Close())
}

func TestNewPostgresSinkRequiresURL(t *testing.T) {
	_, err := NewPostgresSink(context.Background(), log.NewNopLogger(), DefaultConfig())
	require.Error(t, err)
}

// TestPostgresSink runs against a live database named by OBLIV_TEST_POSTGRES_URL.
func TestPostgresSink(t *testing.T) {
	url := os.Getenv("OBLIV_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("OBLIV_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.URL = url
	sink, err := NewPostgresSink(ctx, log.NewNopLogger(), cfg)
	require.NoError(t, err)
	defer sink.Close()

	for _, table := range []string{"events", "transactions", "accounts", "indexer_state"} {
		_, err := sink.db.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, sink.Write(ctx, sampleReceipt("H1", 5, "9")))
	require.NoError(t, sink.Write(ctx, sampleReceipt("H1", 5, "9")))
	require.NoError(t, sink.Publish(ctx, sampleReceipt("H2", 4, "9")))

	require.Eventually(t, func() bool {
		events, err := sink.JobEvents(ctx, 9)
		return err == nil && len(events) == 2
	}, 5*time.Second, 50*time.Millisecond)

	height, err := sink.LastIndexedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), height)
	require.NoError(t, sink.Ping(ctx))
}
