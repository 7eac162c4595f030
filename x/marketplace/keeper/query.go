package keeper

import (
	"context"
	"errors"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// Read-only views. None of them take the reentrancy guard.

// GetPendingJobs returns all Pending jobs in id order.
func (k Keeper) GetPendingJobs(ctx context.Context) ([]types.Job, error) {
	return k.GetJobsByStatus(ctx, types.JobStatusPending)
}

// GetJobsByStatus returns all jobs in status, in id order.
func (k Keeper) GetJobsByStatus(ctx context.Context, status types.JobStatus) ([]types.Job, error) {
	if !status.IsValid() {
		return nil, types.ErrInvalidJob.Wrapf("unknown status %d", status)
	}
	return k.jobsFromIndex(ctx, JobByStatusPrefix(uint32(status)))
}

// GetJobsByRequester returns every job created by requester, in id order.
func (k Keeper) GetJobsByRequester(ctx context.Context, requester sdk.AccAddress) ([]types.Job, error) {
	return k.jobsFromIndex(ctx, JobByRequesterPrefix(requester))
}

// GetCompletedJobsWithModels returns Completed jobs that carry a model hash.
func (k Keeper) GetCompletedJobsWithModels(ctx context.Context) ([]types.Job, error) {
	completed, err := k.GetJobsByStatus(ctx, types.JobStatusCompleted)
	if err != nil {
		return nil, err
	}
	out := make([]types.Job, 0, len(completed))
	for _, job := range completed {
		if job.ModelHash != "" {
			out = append(out, job)
		}
	}
	return out, nil
}

// GetAllWorkers returns every registered worker in registration order.
func (k Keeper) GetAllWorkers(ctx context.Context) ([]types.Worker, error) {
	workers := []types.Worker{}
	err := k.IterateWorkers(ctx, func(w types.Worker) (bool, error) {
		workers = append(workers, w)
		return false, nil
	})
	return workers, err
}

// GetActiveWorkers returns active workers in registration order.
func (k Keeper) GetActiveWorkers(ctx context.Context) ([]types.Worker, error) {
	workers := []types.Worker{}
	err := k.IterateWorkers(ctx, func(w types.Worker) (bool, error) {
		if w.IsActive {
			workers = append(workers, w)
		}
		return false, nil
	})
	return workers, err
}

// GetWorkerJobHistory returns the ids of jobs completed by worker, oldest first.
func (k Keeper) GetWorkerJobHistory(ctx context.Context, worker sdk.AccAddress) ([]uint64, error) {
	if !k.hasWorker(ctx, worker) {
		return nil, types.ErrWorkerNotFound.Wrapf("worker %s", worker)
	}
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), WorkerHistoryPrefixFor(worker))
	defer iterator.Close()

	ids := []uint64{}
	for ; iterator.Valid(); iterator.Next() {
		ids = append(ids, uint64FromBytes(iterator.Value()))
	}
	return ids, nil
}

// GetWorkerPriority returns the advisory scheduling signal for worker:
// its completed job count, or types.PriorityInactive if unknown or inactive.
func (k Keeper) GetWorkerPriority(ctx context.Context, worker sdk.AccAddress) (uint64, error) {
	w, err := k.GetWorker(ctx, worker)
	if err != nil {
		if errors.Is(err, types.ErrWorkerNotFound) {
			return types.PriorityInactive, nil
		}
		return 0, err
	}
	return w.Priority(), nil
}

// GetStats aggregates job and worker counters.
func (k Keeper) GetStats(ctx context.Context) (types.Stats, error) {
	stats := types.NewStats()
	stats.TotalJobs = k.GetJobCount(ctx)
	stats.TotalWorkers = k.GetWorkerCount(ctx)
	stats.Treasury = k.GetTreasury(ctx)

	err := k.IterateJobs(ctx, func(job types.Job) (bool, error) {
		stats.JobsByStatus[job.Status.String()]++
		if !job.Status.IsTerminal() {
			stats.EscrowedReward = stats.EscrowedReward.Add(job.Reward)
		}
		if job.Status == types.JobStatusProcessing {
			stats.LockedStake = stats.LockedStake.Add(job.Stake)
		}
		return false, nil
	})
	if err != nil {
		return types.Stats{}, err
	}

	err = k.IterateWorkers(ctx, func(w types.Worker) (bool, error) {
		if w.IsActive {
			stats.ActiveWorkers++
		}
		stats.FreeStake = stats.FreeStake.Add(w.Stake)
		return false, nil
	})
	if err != nil {
		return types.Stats{}, err
	}
	return stats, nil
}
