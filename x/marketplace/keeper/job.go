package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// CreateJob escrows reward from requester and appends a Pending job.
func (k Keeper) CreateJob(
	goCtx context.Context,
	requester sdk.AccAddress,
	scriptHash, dataHash string,
	jobType types.JobType,
	reward math.Int,
) (uint64, error) {
	var jobID uint64
	err := k.execute(goCtx, types.TypeMsgCreateJob, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if reward.IsNil() || !reward.IsPositive() {
			return types.ErrInvalidAmount.Wrap("reward must be positive")
		}
		if scriptHash == "" {
			return types.ErrEmptyHash.Wrap("script hash")
		}
		if dataHash == "" {
			return types.ErrEmptyHash.Wrap("data hash")
		}
		if !jobType.IsValid() {
			return types.ErrInvalidJobType.Wrapf("job type %d", jobType)
		}

		job, err := k.appendJob(ctx, types.Job{
			Requester:  requester.String(),
			Reward:     reward,
			Stake:      math.ZeroInt(),
			Status:     types.JobStatusPending,
			JobType:    jobType,
			CreatedAt:  ctx.BlockTime(),
			ScriptHash: scriptHash,
			DataHash:   dataHash,
		})
		if err != nil {
			return err
		}
		jobID = job.ID

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobCreated,
				sdk.NewAttribute(types.AttributeKeyJobID, strconv.FormatUint(job.ID, 10)),
				sdk.NewAttribute(types.AttributeKeyRequester, job.Requester),
				sdk.NewAttribute(types.AttributeKeyJobType, jobType.String()),
				sdk.NewAttribute(types.AttributeKeyReward, reward.String()),
				sdk.NewAttribute(types.AttributeKeyScriptHash, scriptHash),
				sdk.NewAttribute(types.AttributeKeyDataHash, dataHash),
			),
		)

		if err := k.collect(ctx, params, requester, reward); err != nil {
			return err
		}

		k.metrics.JobsCreated.WithLabelValues(jobType.String()).Inc()
		return nil
	})
	return jobID, err
}

// CancelJob cancels a Pending job and refunds the full reward to its requester.
func (k Keeper) CancelJob(goCtx context.Context, caller sdk.AccAddress, jobID uint64) error {
	return k.execute(goCtx, types.TypeMsgCancelJob, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		job, err := k.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Requester != caller.String() {
			return types.ErrNotRequester.Wrapf("job %d", jobID)
		}
		if job.Status != types.JobStatusPending {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s, expected %s", jobID, job.Status, types.JobStatusPending)
		}

		next := job
		next.Status = types.JobStatusCancelled
		if err := k.updateJob(ctx, job, next); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobCancelled,
				sdk.NewAttribute(types.AttributeKeyJobID, strconv.FormatUint(jobID, 10)),
				sdk.NewAttribute(types.AttributeKeyRequester, job.Requester),
				sdk.NewAttribute(types.AttributeKeyReward, job.Reward.String()),
			),
		)

		if err := k.pay(ctx, params, caller, job.Reward); err != nil {
			return err
		}

		k.metrics.JobTransitions.WithLabelValues(types.JobStatusCancelled.String()).Inc()
		return nil
	})
}

// ClaimJob assigns a Pending job to caller and locks reward/2 of its free stake.
// The status is checked first so the loser of a claim race gets ErrInvalidJobStatus.
func (k Keeper) ClaimJob(goCtx context.Context, caller sdk.AccAddress, jobID uint64) error {
	return k.execute(goCtx, types.TypeMsgClaimJob, func(ctx sdk.Context) error {
		job, err := k.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != types.JobStatusPending {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s, expected %s", jobID, job.Status, types.JobStatusPending)
		}
		worker, err := k.activeWorker(ctx, caller)
		if err != nil {
			return err
		}
		if job.Requester == caller.String() {
			return types.ErrSelfClaim.Wrapf("job %d", jobID)
		}
		required := job.RequiredStake()
		if worker.Stake.LT(required) {
			return types.ErrInsufficientStake.Wrapf("need %s, have %s", required, worker.Stake)
		}

		worker.Stake = worker.Stake.Sub(required)
		if err := k.setWorker(ctx, worker); err != nil {
			return err
		}

		next := job
		next.Worker = caller.String()
		next.Stake = required
		next.ClaimedAt = ctx.BlockTime()
		next.Status = types.JobStatusProcessing
		if err := k.updateJob(ctx, job, next); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeJobClaimed,
				sdk.NewAttribute(types.AttributeKeyJobID, strconv.FormatUint(jobID, 10)),
				sdk.NewAttribute(types.AttributeKeyWorker, next.Worker),
				sdk.NewAttribute(types.AttributeKeyStake, required.String()),
			),
		)

		k.metrics.JobTransitions.WithLabelValues(types.JobStatusProcessing.String()).Inc()
		k.metrics.StakeLocked.Add(toFloat(required))
		return nil
	})
}
