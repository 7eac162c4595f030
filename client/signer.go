package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// ReceiptError is returned by the typed helpers when the node executed or
// rejected a transaction with a non-zero code.
type ReceiptError struct {
	Receipt *tx.Receipt
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("tx %s failed (%s/%d): %s", e.Receipt.TxHash, e.Receipt.Codespace, e.Receipt.Code, e.Receipt.Log)
}

// Signer signs and broadcasts marketplace messages for one key. It tracks the
// account sequence locally and resynchronizes after a rejected transaction.
type Signer struct {
	client  *Client
	priv    cryptotypes.PrivKey
	chainID string

	mu       sync.Mutex
	sequence uint64
	synced   bool
}

// NewSigner returns a signer for priv on chainID.
func NewSigner(c *Client, priv cryptotypes.PrivKey, chainID string) *Signer {
	return &Signer{client: c, priv: priv, chainID: chainID}
}

// Address is the account address of the signing key.
func (s *Signer) Address() sdk.AccAddress {
	return sdk.AccAddress(s.priv.PubKey().Address())
}

// Client returns the client the signer broadcasts through.
func (s *Signer) Client() *Client {
	return s.client
}

// Send signs msg with the next sequence and broadcasts it. The returned
// receipt may carry a failure code; see Exec for an error-returning variant.
func (s *Signer) Send(ctx context.Context, msg types.Msg) (*tx.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.synced {
		account, err := s.client.Account(ctx, s.Address())
		if err != nil {
			return nil, fmt.Errorf("failed to load account: %w", err)
		}
		s.sequence = account.Sequence
		s.synced = true
	}

	env, err := tx.Sign(s.priv, s.chainID, s.sequence, msg)
	if err != nil {
		return nil, err
	}
	receipt, err := s.client.Broadcast(ctx, env)
	if err != nil {
		s.synced = false
		return nil, err
	}

	// Marketplace failures still consume the sequence; anything else was
	// rejected before execution.
	if receipt.IsOK() || receipt.Codespace == types.ModuleName {
		s.sequence++
	} else {
		s.synced = false
	}
	return receipt, nil
}

// Exec is Send that turns a failed receipt into a *ReceiptError.
func (s *Signer) Exec(ctx context.Context, msg types.Msg) (*tx.Receipt, error) {
	receipt, err := s.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	if !receipt.IsOK() {
		return receipt, &ReceiptError{Receipt: receipt}
	}
	return receipt, nil
}

func (s *Signer) execInto(ctx context.Context, msg types.Msg, out any) error {
	receipt, err := s.Exec(ctx, msg)
	if err != nil {
		return err
	}
	if out == nil || len(receipt.Result) == 0 {
		return nil
	}
	return json.Unmarshal(receipt.Result, out)
}

// RegisterWorker registers the signer as a worker with an initial stake.
func (s *Signer) RegisterWorker(ctx context.Context, nodeID string, stake math.Int) error {
	return s.execInto(ctx, &types.MsgRegisterWorker{
		Worker: s.Address().String(),
		NodeID: nodeID,
		Stake:  stake,
	}, nil)
}

// DepositStake adds amount to the signer's free stake.
func (s *Signer) DepositStake(ctx context.Context, amount math.Int) error {
	return s.execInto(ctx, &types.MsgDepositStake{Worker: s.Address().String(), Amount: amount}, nil)
}

// WithdrawStake returns amount of free stake to the signer.
func (s *Signer) WithdrawStake(ctx context.Context, amount math.Int) error {
	return s.execInto(ctx, &types.MsgWithdrawStake{Worker: s.Address().String(), Amount: amount}, nil)
}

// DeactivateWorker deactivates the signer and refunds its free stake.
func (s *Signer) DeactivateWorker(ctx context.Context) error {
	return s.execInto(ctx, &types.MsgDeactivateWorker{Worker: s.Address().String()}, nil)
}

// CreateJob escrows reward and returns the new job id.
func (s *Signer) CreateJob(ctx context.Context, scriptHash, dataHash string, jobType types.JobType, reward math.Int) (uint64, error) {
	var res types.MsgCreateJobResponse
	err := s.execInto(ctx, &types.MsgCreateJob{
		Requester:  s.Address().String(),
		ScriptHash: scriptHash,
		DataHash:   dataHash,
		JobType:    jobType,
		Reward:     reward,
	}, &res)
	return res.JobID, err
}

// CancelJob cancels one of the signer's pending jobs.
func (s *Signer) CancelJob(ctx context.Context, jobID uint64) error {
	return s.execInto(ctx, &types.MsgCancelJob{Requester: s.Address().String(), JobID: jobID}, nil)
}

// ClaimJob claims a pending job for the signer.
func (s *Signer) ClaimJob(ctx context.Context, jobID uint64) error {
	return s.execInto(ctx, &types.MsgClaimJob{Worker: s.Address().String(), JobID: jobID}, nil)
}

// SubmitResult submits a proven result and returns the payout.
func (s *Signer) SubmitResult(ctx context.Context, jobID uint64, modelHash, proofHash string, proof []byte, publicInputs []string) (math.Int, error) {
	var res types.MsgSubmitResultResponse
	err := s.execInto(ctx, &types.MsgSubmitResult{
		Worker:       s.Address().String(),
		JobID:        jobID,
		ModelHash:    modelHash,
		ProofHash:    proofHash,
		Proof:        proof,
		PublicInputs: publicInputs,
	}, &res)
	return res.Payout, err
}

// SubmitResultSimple submits a result without a proof and returns the payout.
func (s *Signer) SubmitResultSimple(ctx context.Context, jobID uint64, modelHash, proofHash string) (math.Int, error) {
	var res types.MsgSubmitResultResponse
	err := s.execInto(ctx, &types.MsgSubmitResultSimple{
		Worker:    s.Address().String(),
		JobID:     jobID,
		ModelHash: modelHash,
		ProofHash: proofHash,
	}, &res)
	return res.Payout, err
}

// ExpireJob expires a timed-out processing job.
func (s *Signer) ExpireJob(ctx context.Context, jobID uint64) error {
	return s.execInto(ctx, &types.MsgExpireJob{Caller: s.Address().String(), JobID: jobID}, nil)
}

// SlashWorker slashes the worker of a processing job. Owner only.
func (s *Signer) SlashWorker(ctx context.Context, jobID uint64) error {
	return s.execInto(ctx, &types.MsgSlashWorker{Owner: s.Address().String(), JobID: jobID}, nil)
}

// UpdateVerifier selects the named verifier. Owner only.
func (s *Signer) UpdateVerifier(ctx context.Context, name string) error {
	return s.execInto(ctx, &types.MsgUpdateVerifier{Owner: s.Address().String(), Verifier: name}, nil)
}

// TransferOwnership hands the marketplace to newOwner. Owner only.
func (s *Signer) TransferOwnership(ctx context.Context, newOwner sdk.AccAddress) error {
	return s.execInto(ctx, &types.MsgTransferOwnership{Owner: s.Address().String(), NewOwner: newOwner.String()}, nil)
}

// UpdateParams replaces the marketplace parameters. Owner only.
func (s *Signer) UpdateParams(ctx context.Context, params types.Params) error {
	return s.execInto(ctx, &types.MsgUpdateParams{Owner: s.Address().String(), Params: params}, nil)
}

// WithdrawTreasury pays amount of forfeited stake to recipient. Owner only.
func (s *Signer) WithdrawTreasury(ctx context.Context, recipient sdk.AccAddress, amount math.Int) error {
	return s.execInto(ctx, &types.MsgWithdrawTreasury{
		Owner:     s.Address().String(),
		Recipient: recipient.String(),
		Amount:    amount,
	}, nil)
}
