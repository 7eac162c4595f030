package types

import (
	"encoding/json"
	"fmt"
)

var msgConstructors = map[string]func() Msg{
	TypeMsgRegisterWorker:     func() Msg { return &MsgRegisterWorker{} },
	TypeMsgDepositStake:       func() Msg { return &MsgDepositStake{} },
	TypeMsgWithdrawStake:      func() Msg { return &MsgWithdrawStake{} },
	TypeMsgDeactivateWorker:   func() Msg { return &MsgDeactivateWorker{} },
	TypeMsgCreateJob:          func() Msg { return &MsgCreateJob{} },
	TypeMsgCancelJob:          func() Msg { return &MsgCancelJob{} },
	TypeMsgClaimJob:           func() Msg { return &MsgClaimJob{} },
	TypeMsgSubmitResult:       func() Msg { return &MsgSubmitResult{} },
	TypeMsgSubmitResultSimple: func() Msg { return &MsgSubmitResultSimple{} },
	TypeMsgExpireJob:          func() Msg { return &MsgExpireJob{} },
	TypeMsgSlashWorker:        func() Msg { return &MsgSlashWorker{} },
	TypeMsgUpdateVerifier:     func() Msg { return &MsgUpdateVerifier{} },
	TypeMsgTransferOwnership:  func() Msg { return &MsgTransferOwnership{} },
	TypeMsgUpdateParams:       func() Msg { return &MsgUpdateParams{} },
	TypeMsgWithdrawTreasury:   func() Msg { return &MsgWithdrawTreasury{} },
}

// MsgTypes returns every registered message type.
func MsgTypes() []string {
	out := make([]string, 0, len(msgConstructors))
	for typ := range msgConstructors {
		out = append(out, typ)
	}
	return out
}

// DecodeMsg builds the message registered under typ from its JSON body.
func DecodeMsg(typ string, raw json.RawMessage) (Msg, error) {
	ctor, ok := msgConstructors[typ]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q", typ)
	}
	msg := ctor()
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return msg, nil
}
