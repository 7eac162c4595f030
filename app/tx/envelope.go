// Package tx defines the signed transaction envelope accepted by the node and
// the receipts it returns.
package tx

import (
	"bytes"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/cometbft/cometbft/crypto/tmhash"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// Envelope carries one marketplace message signed by its sender.
type Envelope struct {
	Type      string          `json:"type"`
	Msg       json.RawMessage `json:"msg"`
	Signer    string          `json:"signer"`
	Sequence  uint64          `json:"sequence"`
	ChainID   string          `json:"chain_id"`
	PubKey    []byte          `json:"pub_key"`
	Signature []byte          `json:"signature"`
}

type signDoc struct {
	ChainID  string          `json:"chain_id"`
	Sequence uint64          `json:"sequence"`
	Type     string          `json:"type"`
	Msg      json.RawMessage `json:"msg"`
}

// SignBytes returns the canonical bytes covered by the signature: the sign
// document with sorted keys and no insignificant whitespace.
func SignBytes(chainID string, sequence uint64, msgType string, msg json.RawMessage) ([]byte, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, msg); err != nil {
		return nil, sdkerrors.ErrTxDecode.Wrapf("msg is not valid json: %s", err)
	}
	bz, err := json.Marshal(signDoc{
		ChainID:  chainID,
		Sequence: sequence,
		Type:     msgType,
		Msg:      compact.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	return sdk.SortJSON(bz)
}

// Sign builds an envelope for msg signed by priv.
func Sign(priv cryptotypes.PrivKey, chainID string, sequence uint64, msg types.Msg) (*Envelope, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.Type(), err)
	}
	signBytes, err := SignBytes(chainID, sequence, msg.Type(), raw)
	if err != nil {
		return nil, err
	}
	sig, err := priv.Sign(signBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return &Envelope{
		Type:      msg.Type(),
		Msg:       raw,
		Signer:    sdk.AccAddress(priv.PubKey().Address()).String(),
		Sequence:  sequence,
		ChainID:   chainID,
		PubKey:    priv.PubKey().Bytes(),
		Signature: sig,
	}, nil
}

// Verified is an envelope whose signature and signer checked out.
type Verified struct {
	Msg    types.Msg
	Signer sdk.AccAddress
	PubKey cryptotypes.PubKey
}

// Verify checks the envelope against chainID and decodes its message. The
// sequence is not checked here; it depends on account state.
func (e *Envelope) Verify(chainID string) (*Verified, error) {
	if e.ChainID != chainID {
		return nil, sdkerrors.ErrInvalidChainID.Wrapf("expected %s, got %s", chainID, e.ChainID)
	}
	if len(e.PubKey) != secp256k1.PubKeySize {
		return nil, sdkerrors.ErrInvalidPubKey.Wrapf("expected %d bytes, got %d", secp256k1.PubKeySize, len(e.PubKey))
	}
	pubKey := &secp256k1.PubKey{Key: e.PubKey}
	signer, err := sdk.AccAddressFromBech32(e.Signer)
	if err != nil {
		return nil, sdkerrors.ErrInvalidAddress.Wrapf("signer: %s", err)
	}
	if !signer.Equals(sdk.AccAddress(pubKey.Address())) {
		return nil, sdkerrors.ErrInvalidPubKey.Wrap("public key does not match signer")
	}

	signBytes, err := SignBytes(e.ChainID, e.Sequence, e.Type, e.Msg)
	if err != nil {
		return nil, err
	}
	if !pubKey.VerifySignature(signBytes, e.Signature) {
		return nil, sdkerrors.ErrUnauthorized.Wrap("signature verification failed")
	}

	msg, err := types.DecodeMsg(e.Type, e.Msg)
	if err != nil {
		return nil, errorsmod.Wrap(sdkerrors.ErrTxDecode, err.Error())
	}
	if !msg.GetSigner().Equals(signer) {
		return nil, sdkerrors.ErrUnauthorized.Wrapf("message signer %s differs from envelope signer %s", msg.GetSigner(), signer)
	}
	return &Verified{Msg: msg, Signer: signer, PubKey: pubKey}, nil
}

// Hash is the uppercase hex tmhash of the envelope's JSON encoding.
func (e *Envelope) Hash() string {
	bz, _ := json.Marshal(e)
	return fmt.Sprintf("%X", tmhash.Sum(bz))
}

// ShortHash is the first eight hex characters of Hash, for logs.
func (e *Envelope) ShortHash() string {
	return e.Hash()[:8]
}
