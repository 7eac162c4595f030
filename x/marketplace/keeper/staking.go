package keeper

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// RegisterWorker registers addr as an active worker with an initial stake.
// A previously deactivated worker is reactivated with its history intact.
func (k Keeper) RegisterWorker(goCtx context.Context, addr sdk.AccAddress, nodeID string, stake math.Int) error {
	return k.execute(goCtx, types.TypeMsgRegisterWorker, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if nodeID == "" {
			return types.ErrInvalidNodeID
		}
		if stake.IsNil() || stake.LT(params.MinStake) {
			return types.ErrBelowMinStake.Wrapf("stake %s below minimum %s", stake, params.MinStake)
		}

		var worker types.Worker
		if k.hasWorker(ctx, addr) {
			worker, err = k.GetWorker(ctx, addr)
			if err != nil {
				return err
			}
			if worker.IsActive {
				return types.ErrWorkerAlreadyActive.Wrapf("worker %s", addr)
			}
			worker.IsActive = true
			worker.Stake = stake
			worker.NodeID = nodeID
		} else {
			worker = types.NewWorker(addr.String(), nodeID, stake, ctx.BlockTime())
			k.appendWorkerAddress(ctx, addr)
		}
		if err := k.setWorker(ctx, worker); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeWorkerRegistered,
				sdk.NewAttribute(types.AttributeKeyWorker, addr.String()),
				sdk.NewAttribute(types.AttributeKeyNodeID, nodeID),
				sdk.NewAttribute(types.AttributeKeyStake, stake.String()),
			),
		)

		if err := k.collect(ctx, params, addr, stake); err != nil {
			return err
		}

		k.metrics.WorkersRegistered.Inc()
		k.Logger(ctx).Info("worker registered", "worker", addr.String(), "node_id", nodeID, "stake", stake.String())
		return nil
	})
}

// DepositStake adds amount to an active worker's free stake.
func (k Keeper) DepositStake(goCtx context.Context, addr sdk.AccAddress, amount math.Int) error {
	return k.execute(goCtx, types.TypeMsgDepositStake, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if amount.IsNil() || !amount.IsPositive() {
			return types.ErrInvalidAmount.Wrap("deposit must be positive")
		}
		worker, err := k.activeWorker(ctx, addr)
		if err != nil {
			return err
		}

		worker.Stake = worker.Stake.Add(amount)
		if err := k.setWorker(ctx, worker); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeStakeDeposited,
				sdk.NewAttribute(types.AttributeKeyWorker, addr.String()),
				sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
				sdk.NewAttribute(types.AttributeKeyStake, worker.Stake.String()),
			),
		)

		return k.collect(ctx, params, addr, amount)
	})
}

// WithdrawStake returns amount of free stake, keeping at least the minimum.
func (k Keeper) WithdrawStake(goCtx context.Context, addr sdk.AccAddress, amount math.Int) error {
	return k.execute(goCtx, types.TypeMsgWithdrawStake, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if amount.IsNil() || !amount.IsPositive() {
			return types.ErrInvalidAmount.Wrap("withdrawal must be positive")
		}
		worker, err := k.activeWorker(ctx, addr)
		if err != nil {
			return err
		}
		if amount.GT(worker.Stake) {
			return types.ErrInsufficientStake.Wrapf("withdraw %s exceeds free stake %s", amount, worker.Stake)
		}
		remaining := worker.Stake.Sub(amount)
		if remaining.LT(params.MinStake) {
			return types.ErrBelowMinStake.Wrapf("remaining stake %s below minimum %s", remaining, params.MinStake)
		}

		worker.Stake = remaining
		if err := k.setWorker(ctx, worker); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeStakeWithdrawn,
				sdk.NewAttribute(types.AttributeKeyWorker, addr.String()),
				sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
				sdk.NewAttribute(types.AttributeKeyStake, remaining.String()),
			),
		)

		return k.pay(ctx, params, addr, amount)
	})
}

// DeactivateWorker refunds the entire free stake and clears the active flag.
func (k Keeper) DeactivateWorker(goCtx context.Context, addr sdk.AccAddress) error {
	return k.execute(goCtx, types.TypeMsgDeactivateWorker, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		worker, err := k.activeWorker(ctx, addr)
		if err != nil {
			return err
		}
		if n := k.processingJobCount(ctx, addr); n > 0 {
			return types.ErrWorkerBusy.Wrapf("worker %s holds %d processing jobs", addr, n)
		}

		refund := worker.Stake
		worker.Stake = math.ZeroInt()
		worker.IsActive = false
		if err := k.setWorker(ctx, worker); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeWorkerDeactivated,
				sdk.NewAttribute(types.AttributeKeyWorker, addr.String()),
				sdk.NewAttribute(types.AttributeKeyAmount, refund.String()),
			),
		)

		if err := k.pay(ctx, params, addr, refund); err != nil {
			return err
		}

		k.Logger(ctx).Info("worker deactivated", "worker", addr.String(), "refund", refund.String())
		return nil
	})
}

func (k Keeper) activeWorker(ctx context.Context, addr sdk.AccAddress) (types.Worker, error) {
	worker, err := k.GetWorker(ctx, addr)
	if err != nil {
		return types.Worker{}, err
	}
	if !worker.IsActive {
		return types.Worker{}, types.ErrWorkerNotActive.Wrapf("worker %s", addr)
	}
	return worker, nil
}
