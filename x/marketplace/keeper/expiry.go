package keeper

import (
	"context"
	"strconv"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// IsExpired reports whether job has outlived its claim: it must be Processing
// and now must be strictly after claimedAt + timeout(jobType).
func IsExpired(params types.Params, job types.Job, now time.Time) bool {
	if job.Status != types.JobStatusProcessing {
		return false
	}
	timeout, err := params.Timeout(job.JobType)
	if err != nil {
		return false
	}
	return now.After(job.ClaimedAt.Add(timeout))
}

// IsJobExpired evaluates IsExpired for a stored job at the current block time.
func (k Keeper) IsJobExpired(ctx context.Context, jobID uint64) (bool, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return false, err
	}
	job, err := k.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return IsExpired(params, job, sdk.UnwrapSDKContext(ctx).BlockTime()), nil
}

// GetTimeout returns the claim timeout configured for a job type.
func (k Keeper) GetTimeout(ctx context.Context, jobType types.JobType) (time.Duration, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	return params.Timeout(jobType)
}

// ExpireJob moves a timed-out Processing job to Expired. Anyone may call it.
// The reward goes back to the requester and the locked stake is forfeited.
func (k Keeper) ExpireJob(goCtx context.Context, caller sdk.AccAddress, jobID uint64) error {
	return k.execute(goCtx, types.TypeMsgExpireJob, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		job, err := k.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != types.JobStatusProcessing {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s, expected %s", jobID, job.Status, types.JobStatusProcessing)
		}
		if !IsExpired(params, job, ctx.BlockTime()) {
			return types.ErrJobNotExpired.Wrapf("job %d claimed at %s", jobID, job.ClaimedAt.Format(time.RFC3339))
		}

		if err := k.forfeit(ctx, params, job, types.JobStatusExpired, types.ReputationPenaltyTimeout, caller); err != nil {
			return err
		}
		k.Logger(ctx).Info("job expired", "job_id", jobID, "worker", job.Worker, "caller", caller.String())
		return nil
	})
}

// SlashWorker moves a Processing job to Slashed. Owner only.
func (k Keeper) SlashWorker(goCtx context.Context, caller sdk.AccAddress, jobID uint64) error {
	return k.execute(goCtx, types.TypeMsgSlashWorker, func(ctx sdk.Context) error {
		if err := k.requireOwner(ctx, caller); err != nil {
			return err
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		job, err := k.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != types.JobStatusProcessing {
			return types.ErrInvalidJobStatus.Wrapf("job %d is %s, expected %s", jobID, job.Status, types.JobStatusProcessing)
		}

		if err := k.forfeit(ctx, params, job, types.JobStatusSlashed, types.ReputationPenaltySlash, caller); err != nil {
			return err
		}
		k.Logger(ctx).Info("worker slashed", "job_id", jobID, "worker", job.Worker)
		return nil
	})
}

// forfeit settles a failed Processing job: the job moves to status, the
// worker is penalized, the stake accrues to the treasury and the reward is
// refunded to the requester.
func (k Keeper) forfeit(
	ctx sdk.Context,
	params types.Params,
	job types.Job,
	status types.JobStatus,
	penalty uint64,
	caller sdk.AccAddress,
) error {
	workerAddr, err := sdk.AccAddressFromBech32(job.Worker)
	if err != nil {
		return err
	}
	requester, err := sdk.AccAddressFromBech32(job.Requester)
	if err != nil {
		return err
	}

	worker, err := k.GetWorker(ctx, workerAddr)
	if err != nil {
		return err
	}
	worker.FailedJobs++
	worker.Penalize(penalty)
	if err := k.setWorker(ctx, worker); err != nil {
		return err
	}

	next := job
	next.Status = status
	if err := k.updateJob(ctx, job, next); err != nil {
		return err
	}

	if err := k.setTreasury(ctx, k.GetTreasury(ctx).Add(job.Stake)); err != nil {
		return err
	}

	eventType := types.EventTypeJobExpired
	if status == types.JobStatusSlashed {
		eventType = types.EventTypeJobSlashed
	}
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			eventType,
			sdk.NewAttribute(types.AttributeKeyJobID, strconv.FormatUint(job.ID, 10)),
			sdk.NewAttribute(types.AttributeKeyWorker, job.Worker),
			sdk.NewAttribute(types.AttributeKeyRequester, job.Requester),
			sdk.NewAttribute(types.AttributeKeyReward, job.Reward.String()),
			sdk.NewAttribute(types.AttributeKeyForfeited, job.Stake.String()),
			sdk.NewAttribute(types.AttributeKeyReputation, strconv.FormatUint(worker.Reputation, 10)),
			sdk.NewAttribute(types.AttributeKeyCaller, caller.String()),
		),
	)

	if err := k.pay(ctx, params, requester, job.Reward); err != nil {
		return err
	}

	k.metrics.JobTransitions.WithLabelValues(status.String()).Inc()
	k.metrics.StakeLocked.Sub(toFloat(job.Stake))
	k.metrics.StakeForfeited.Add(toFloat(job.Stake))
	return nil
}
