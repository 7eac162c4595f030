package keeper

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// MsgServer is the transaction surface of the marketplace module.
type MsgServer interface {
	RegisterWorker(context.Context, *types.MsgRegisterWorker) (*types.MsgEmptyResponse, error)
	DepositStake(context.Context, *types.MsgDepositStake) (*types.MsgEmptyResponse, error)
	WithdrawStake(context.Context, *types.MsgWithdrawStake) (*types.MsgEmptyResponse, error)
	DeactivateWorker(context.Context, *types.MsgDeactivateWorker) (*types.MsgEmptyResponse, error)
	CreateJob(context.Context, *types.MsgCreateJob) (*types.MsgCreateJobResponse, error)
	CancelJob(context.Context, *types.MsgCancelJob) (*types.MsgEmptyResponse, error)
	ClaimJob(context.Context, *types.MsgClaimJob) (*types.MsgEmptyResponse, error)
	SubmitResult(context.Context, *types.MsgSubmitResult) (*types.MsgSubmitResultResponse, error)
	SubmitResultSimple(context.Context, *types.MsgSubmitResultSimple) (*types.MsgSubmitResultResponse, error)
	ExpireJob(context.Context, *types.MsgExpireJob) (*types.MsgEmptyResponse, error)
	SlashWorker(context.Context, *types.MsgSlashWorker) (*types.MsgEmptyResponse, error)
	UpdateVerifier(context.Context, *types.MsgUpdateVerifier) (*types.MsgEmptyResponse, error)
	TransferOwnership(context.Context, *types.MsgTransferOwnership) (*types.MsgEmptyResponse, error)
	UpdateParams(context.Context, *types.MsgUpdateParams) (*types.MsgEmptyResponse, error)
	WithdrawTreasury(context.Context, *types.MsgWithdrawTreasury) (*types.MsgEmptyResponse, error)
}

var _ MsgServer = msgServer{}

type msgServer struct {
	Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper Keeper) MsgServer {
	return &msgServer{Keeper: keeper}
}

func parseAddr(field, bech string) (sdk.AccAddress, error) {
	addr, err := sdk.AccAddressFromBech32(bech)
	if err != nil {
		return nil, types.ErrInvalidAddress.Wrapf("invalid %s address: %v", field, err)
	}
	return addr, nil
}

var empty = &types.MsgEmptyResponse{}

// RegisterWorker handles MsgRegisterWorker
func (ms msgServer) RegisterWorker(ctx context.Context, msg *types.MsgRegisterWorker) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("worker", msg.Worker)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.RegisterWorker(ctx, addr, msg.NodeID, msg.Stake); err != nil {
		return nil, err
	}
	return empty, nil
}

// DepositStake handles MsgDepositStake
func (ms msgServer) DepositStake(ctx context.Context, msg *types.MsgDepositStake) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("worker", msg.Worker)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.DepositStake(ctx, addr, msg.Amount); err != nil {
		return nil, err
	}
	return empty, nil
}

// WithdrawStake handles MsgWithdrawStake
func (ms msgServer) WithdrawStake(ctx context.Context, msg *types.MsgWithdrawStake) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("worker", msg.Worker)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.WithdrawStake(ctx, addr, msg.Amount); err != nil {
		return nil, err
	}
	return empty, nil
}

// DeactivateWorker handles MsgDeactivateWorker
func (ms msgServer) DeactivateWorker(ctx context.Context, msg *types.MsgDeactivateWorker) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("worker", msg.Worker)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.DeactivateWorker(ctx, addr); err != nil {
		return nil, err
	}
	return empty, nil
}

// CreateJob handles MsgCreateJob
func (ms msgServer) CreateJob(ctx context.Context, msg *types.MsgCreateJob) (*types.MsgCreateJobResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("requester", msg.Requester)
	if err != nil {
		return nil, err
	}
	id, err := ms.Keeper.CreateJob(ctx, addr, msg.ScriptHash, msg.DataHash, msg.JobType, msg.Reward)
	if err != nil {
		return nil, err
	}
	return &types.MsgCreateJobResponse{JobID: id}, nil
}

// CancelJob handles MsgCancelJob
func (ms msgServer) CancelJob(ctx context.Context, msg *types.MsgCancelJob) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("requester", msg.Requester)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.CancelJob(ctx, addr, msg.JobID); err != nil {
		return nil, err
	}
	return empty, nil
}

// ClaimJob handles MsgClaimJob
func (ms msgServer) ClaimJob(ctx context.Context, msg *types.MsgClaimJob) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("worker", msg.Worker)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.ClaimJob(ctx, addr, msg.JobID); err != nil {
		return nil, err
	}
	return empty, nil
}

// SubmitResult handles MsgSubmitResult
func (ms msgServer) SubmitResult(ctx context.Context, msg *types.MsgSubmitResult) (*types.MsgSubmitResultResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("worker", msg.Worker)
	if err != nil {
		return nil, err
	}
	inputs, err := msg.PublicInputsBig()
	if err != nil {
		return nil, err
	}
	payout, err := ms.Keeper.SubmitResult(ctx, addr, msg.JobID, msg.ModelHash, msg.ProofHash, msg.Proof, inputs)
	if err != nil {
		return nil, err
	}
	return &types.MsgSubmitResultResponse{Payout: payout.Amount}, nil
}

// SubmitResultSimple handles MsgSubmitResultSimple
func (ms msgServer) SubmitResultSimple(ctx context.Context, msg *types.MsgSubmitResultSimple) (*types.MsgSubmitResultResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("worker", msg.Worker)
	if err != nil {
		return nil, err
	}
	payout, err := ms.Keeper.SubmitResultSimple(ctx, addr, msg.JobID, msg.ModelHash, msg.ProofHash)
	if err != nil {
		return nil, err
	}
	return &types.MsgSubmitResultResponse{Payout: payout.Amount}, nil
}

// ExpireJob handles MsgExpireJob
func (ms msgServer) ExpireJob(ctx context.Context, msg *types.MsgExpireJob) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("caller", msg.Caller)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.ExpireJob(ctx, addr, msg.JobID); err != nil {
		return nil, err
	}
	return empty, nil
}

// SlashWorker handles MsgSlashWorker
func (ms msgServer) SlashWorker(ctx context.Context, msg *types.MsgSlashWorker) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("owner", msg.Owner)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.SlashWorker(ctx, addr, msg.JobID); err != nil {
		return nil, err
	}
	return empty, nil
}

// UpdateVerifier handles MsgUpdateVerifier
func (ms msgServer) UpdateVerifier(ctx context.Context, msg *types.MsgUpdateVerifier) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	addr, err := parseAddr("owner", msg.Owner)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.UpdateVerifier(ctx, addr, msg.Verifier); err != nil {
		return nil, err
	}
	return empty, nil
}

// TransferOwnership handles MsgTransferOwnership
func (ms msgServer) TransferOwnership(ctx context.Context, msg *types.MsgTransferOwnership) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	owner, err := parseAddr("owner", msg.Owner)
	if err != nil {
		return nil, err
	}
	newOwner, err := parseAddr("new_owner", msg.NewOwner)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.TransferOwnership(ctx, owner, newOwner); err != nil {
		return nil, err
	}
	return empty, nil
}

// UpdateParams handles MsgUpdateParams
func (ms msgServer) UpdateParams(ctx context.Context, msg *types.MsgUpdateParams) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	owner, err := parseAddr("owner", msg.Owner)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.UpdateParams(ctx, owner, msg.Params); err != nil {
		return nil, err
	}
	return empty, nil
}

// WithdrawTreasury handles MsgWithdrawTreasury
func (ms msgServer) WithdrawTreasury(ctx context.Context, msg *types.MsgWithdrawTreasury) (*types.MsgEmptyResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	owner, err := parseAddr("owner", msg.Owner)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddr("recipient", msg.Recipient)
	if err != nil {
		return nil, err
	}
	if err := ms.Keeper.WithdrawTreasury(ctx, owner, recipient, msg.Amount); err != nil {
		return nil, err
	}
	return empty, nil
}

// Handler routes a decoded message to its MsgServer method.
type Handler func(ctx sdk.Context, msg types.Msg) (any, error)

// NewHandler returns a Handler backed by the keeper's MsgServer and records
// per-message metrics.
func NewHandler(k Keeper) Handler {
	ms := NewMsgServerImpl(k)
	return func(ctx sdk.Context, msg types.Msg) (res any, err error) {
		start := time.Now()
		defer func() {
			result := "ok"
			if err != nil {
				result = "error"
			}
			k.metrics.MsgProcessed.WithLabelValues(msg.Type(), result).Inc()
			k.metrics.MsgDuration.WithLabelValues(msg.Type()).Observe(time.Since(start).Seconds())
		}()

		switch m := msg.(type) {
		case *types.MsgRegisterWorker:
			return ms.RegisterWorker(ctx, m)
		case *types.MsgDepositStake:
			return ms.DepositStake(ctx, m)
		case *types.MsgWithdrawStake:
			return ms.WithdrawStake(ctx, m)
		case *types.MsgDeactivateWorker:
			return ms.DeactivateWorker(ctx, m)
		case *types.MsgCreateJob:
			return ms.CreateJob(ctx, m)
		case *types.MsgCancelJob:
			return ms.CancelJob(ctx, m)
		case *types.MsgClaimJob:
			return ms.ClaimJob(ctx, m)
		case *types.MsgSubmitResult:
			return ms.SubmitResult(ctx, m)
		case *types.MsgSubmitResultSimple:
			return ms.SubmitResultSimple(ctx, m)
		case *types.MsgExpireJob:
			return ms.ExpireJob(ctx, m)
		case *types.MsgSlashWorker:
			return ms.SlashWorker(ctx, m)
		case *types.MsgUpdateVerifier:
			return ms.UpdateVerifier(ctx, m)
		case *types.MsgTransferOwnership:
			return ms.TransferOwnership(ctx, m)
		case *types.MsgUpdateParams:
			return ms.UpdateParams(ctx, m)
		case *types.MsgWithdrawTreasury:
			return ms.WithdrawTreasury(ctx, m)
		default:
			return nil, fmt.Errorf("unrecognized %s message type: %T", types.ModuleName, msg)
		}
	}
}
