package tx

import (
	"encoding/json"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Attribute is a key/value pair on an Event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a module event emitted during delivery.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Receipt is the outcome of a delivered transaction. Code zero means success.
type Receipt struct {
	TxHash    string          `json:"txhash"`
	Height    int64           `json:"height"`
	Time      time.Time       `json:"time"`
	Type      string          `json:"type"`
	Signer    string          `json:"signer"`
	Code      uint32          `json:"code"`
	Codespace string          `json:"codespace,omitempty"`
	Log       string          `json:"log,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Events    []Event         `json:"events"`
}

// IsOK reports whether the transaction succeeded.
func (r *Receipt) IsOK() bool {
	return r.Code == 0
}

// SetError records err's ABCI code, codespace and log on the receipt.
func (r *Receipt) SetError(err error) {
	r.Codespace, r.Code, r.Log = errorsmod.ABCIInfo(err, false)
}

// FromSDKEvents converts emitted events.
func FromSDKEvents(events sdk.Events) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		attrs := make([]Attribute, 0, len(ev.Attributes))
		for _, a := range ev.Attributes {
			attrs = append(attrs, Attribute{Key: a.Key, Value: a.Value})
		}
		out = append(out, Event{Type: ev.Type, Attributes: attrs})
	}
	return out
}

// Find returns the value of key on the first event of eventType.
func (r *Receipt) Find(eventType, key string) (string, bool) {
	for _, ev := range r.Events {
		if ev.Type != eventType {
			continue
		}
		for _, a := range ev.Attributes {
			if a.Key == key {
				return a.Value, true
			}
		}
	}
	return "", false
}

// Account is the signing state of an address.
type Account struct {
	Address       string    `json:"address"`
	AccountNumber uint64    `json:"account_number"`
	Sequence      uint64    `json:"sequence"`
	Balance       sdk.Coins `json:"balance"`
}
