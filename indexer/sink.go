// Package indexer persists committed transaction receipts for off-chain
// queries.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// Sink receives the receipt of every committed transaction.
type Sink interface {
	Publish(ctx context.Context, receipt *tx.Receipt) error
	Close() error
}

// Nop discards receipts.
type Nop struct{}

var _ Sink = Nop{}

func (Nop) Publish(context.Context, *tx.Receipt) error { return nil }
func (Nop) Close() error                               { return nil }

// TxRow is the transactions table row of a receipt.
type TxRow struct {
	Hash      string
	Height    int64
	Time      time.Time
	Type      string
	Signer    string
	Code      uint32
	Codespace string
	Log       string
	Result    []byte
}

// EventRow is one events table row. JobID is set when the event carries a
// job_id attribute.
type EventRow struct {
	TxHash     string
	Height     int64
	Index      int
	Type       string
	JobID      *uint64
	Attributes []byte
}

// Rows flattens a receipt into table rows.
func Rows(r *tx.Receipt) (TxRow, []EventRow, error) {
	row := TxRow{
		Hash:      r.TxHash,
		Height:    r.Height,
		Time:      r.Time,
		Type:      r.Type,
		Signer:    r.Signer,
		Code:      r.Code,
		Codespace: r.Codespace,
		Log:       r.Log,
	}
	if len(r.Result) > 0 {
		row.Result = r.Result
	}

	events := make([]EventRow, 0, len(r.Events))
	for i, ev := range r.Events {
		attrs := make(map[string]string, len(ev.Attributes))
		var jobID *uint64
		for _, a := range ev.Attributes {
			attrs[a.Key] = a.Value
			if a.Key == types.AttributeKeyJobID {
				id, err := strconv.ParseUint(a.Value, 10, 64)
				if err != nil {
					return TxRow{}, nil, fmt.Errorf("event %s: bad job id %q", ev.Type, a.Value)
				}
				jobID = &id
			}
		}
		bz, err := json.Marshal(attrs)
		if err != nil {
			return TxRow{}, nil, err
		}
		events = append(events, EventRow{
			TxHash:     r.TxHash,
			Height:     r.Height,
			Index:      i,
			Type:       ev.Type,
			JobID:      jobID,
			Attributes: bz,
		})
	}
	return row, events, nil
}
