package keeper

import (
	"context"
	"math/big"
	"strconv"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// SubmitResult completes a Processing job after verifying its zero-knowledge
// proof. The first public input must be the job id. It returns the payout.
func (k Keeper) SubmitResult(
	goCtx context.Context,
	caller sdk.AccAddress,
	jobID uint64,
	modelHash, proofHash string,
	proof []byte,
	publicInputs []*big.Int,
) (payout sdk.Coin, err error) {
	err = k.execute(goCtx, types.TypeMsgSubmitResult, func(ctx sdk.Context) error {
		params, job, err := k.loadSubmission(ctx, caller, jobID, modelHash)
		if err != nil {
			return err
		}
		if err := k.verifyProof(ctx, jobID, proof, publicInputs); err != nil {
			return err
		}
		payout, err = k.complete(ctx, params, job, caller, modelHash, proofHash)
		return err
	})
	return payout, err
}

// SubmitResultSimple completes a Processing job without proof verification.
// It is rejected when the RequireProof param is set.
func (k Keeper) SubmitResultSimple(
	goCtx context.Context,
	caller sdk.AccAddress,
	jobID uint64,
	modelHash, proofHash string,
) (payout sdk.Coin, err error) {
	err = k.execute(goCtx, types.TypeMsgSubmitResultSimple, func(ctx sdk.Context) error {
		params, job, err := k.loadSubmission(ctx, caller, jobID, modelHash)
		if err != nil {
			return err
		}
		if params.RequireProof {
			return types.ErrProofRequired
		}
		payout, err = k.complete(ctx, params, job, caller, modelHash, proofHash)
		return err
	})
	return payout, err
}

// loadSubmission re-validates every precondition shared by both submit paths.
func (k Keeper) loadSubmission(ctx sdk.Context, caller sdk.AccAddress, jobID uint64, modelHash string) (types.Params, types.Job, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return types.Params{}, types.Job{}, err
	}
	job, err := k.GetJob(ctx, jobID)
	if err != nil {
		return types.Params{}, types.Job{}, err
	}
	if job.Worker != caller.String() {
		return types.Params{}, types.Job{}, types.ErrNotAssignedWorker.Wrapf("job %d", jobID)
	}
	if job.Status != types.JobStatusProcessing {
		return types.Params{}, types.Job{}, types.ErrInvalidJobStatus.Wrapf("job %d is %s, expected %s", jobID, job.Status, types.JobStatusProcessing)
	}
	if IsExpired(params, job, ctx.BlockTime()) {
		return types.Params{}, types.Job{}, types.ErrJobExpired.Wrapf("job %d", jobID)
	}
	if modelHash == "" {
		return types.Params{}, types.Job{}, types.ErrEmptyHash.Wrap("model hash")
	}
	return params, job, nil
}

func (k Keeper) verifyProof(ctx sdk.Context, jobID uint64, proof []byte, publicInputs []*big.Int) error {
	name := k.GetVerifierName(ctx)
	verifier, ok := k.verifiers.Get(name)
	if !ok {
		return types.ErrUnknownVerifier.Wrapf("verifier %q is not registered", name)
	}
	if len(publicInputs) == 0 || publicInputs[0] == nil || publicInputs[0].Cmp(new(big.Int).SetUint64(jobID)) != 0 {
		return types.ErrInvalidProof.Wrapf("first public input must be job id %d", jobID)
	}

	start := time.Now()
	ok, err := verifier.Verify(publicInputs, proof)
	k.metrics.ProofVerificationTime.Observe(time.Since(start).Seconds())
	if err != nil {
		k.metrics.ProofVerifications.WithLabelValues("error").Inc()
		return types.ErrVerificationError.Wrapf("job %d: %s", jobID, err)
	}
	if !ok {
		k.metrics.ProofVerifications.WithLabelValues("rejected").Inc()
		return types.ErrInvalidProof.Wrapf("job %d: proof rejected by %s verifier", jobID, name)
	}
	k.metrics.ProofVerifications.WithLabelValues("accepted").Inc()
	return nil
}

// complete marks the job Completed, credits the worker and pays reward + stake
// in a single transfer.
func (k Keeper) complete(
	ctx sdk.Context,
	params types.Params,
	job types.Job,
	caller sdk.AccAddress,
	modelHash, proofHash string,
) (sdk.Coin, error) {
	worker, err := k.GetWorker(ctx, caller)
	if err != nil {
		return sdk.Coin{}, err
	}
	k.appendHistory(ctx, caller, worker.CompletedJobs, job.ID)
	worker.CompletedJobs++
	worker.Reward()
	worker.TotalEarnings = worker.TotalEarnings.Add(job.Reward)
	if err := k.setWorker(ctx, worker); err != nil {
		return sdk.Coin{}, err
	}

	next := job
	next.Status = types.JobStatusCompleted
	next.ModelHash = modelHash
	next.ProofHash = proofHash
	next.CompletedAt = ctx.BlockTime()
	if err := k.updateJob(ctx, job, next); err != nil {
		return sdk.Coin{}, err
	}

	amount := job.Reward.Add(job.Stake)
	ctx.EventManager().EmitEvents(sdk.Events{
		sdk.NewEvent(
			types.EventTypeJobCompleted,
			sdk.NewAttribute(types.AttributeKeyJobID, strconv.FormatUint(job.ID, 10)),
			sdk.NewAttribute(types.AttributeKeyWorker, job.Worker),
			sdk.NewAttribute(types.AttributeKeyModelHash, modelHash),
			sdk.NewAttribute(types.AttributeKeyProofHash, proofHash),
			sdk.NewAttribute(types.AttributeKeyReputation, strconv.FormatUint(worker.Reputation, 10)),
		),
		sdk.NewEvent(
			types.EventTypeRewardPaid,
			sdk.NewAttribute(types.AttributeKeyJobID, strconv.FormatUint(job.ID, 10)),
			sdk.NewAttribute(types.AttributeKeyRecipient, job.Worker),
			sdk.NewAttribute(types.AttributeKeyReward, job.Reward.String()),
			sdk.NewAttribute(types.AttributeKeyStake, job.Stake.String()),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
		),
	})

	if err := k.pay(ctx, params, caller, amount); err != nil {
		return sdk.Coin{}, err
	}

	k.metrics.JobTransitions.WithLabelValues(types.JobStatusCompleted.String()).Inc()
	k.metrics.StakeLocked.Sub(toFloat(job.Stake))
	k.metrics.RewardsPaid.Add(toFloat(amount))
	return sdk.NewCoin(params.Denom, amount), nil
}
