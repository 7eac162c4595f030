package keeper

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// RegisterInvariants registers all marketplace module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "module-balance", ModuleBalanceInvariant(k))
	ir.RegisterRoute(types.ModuleName, "job-state", JobStateInvariant(k))
	ir.RegisterRoute(types.ModuleName, "worker-state", WorkerStateInvariant(k))
}

// AllInvariants runs all invariants of the marketplace module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		res, stop := ModuleBalanceInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		res, stop = JobStateInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		return WorkerStateInvariant(k)(ctx)
	}
}

// ModuleBalanceInvariant checks that the module account holds exactly the
// escrowed rewards of live jobs, the stake locked in processing jobs, the
// free stake of every worker and the treasury.
func ModuleBalanceInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		params, err := k.GetParams(ctx)
		if err != nil {
			return k.brokenInvariant("module-balance", fmt.Sprintf("failed to read params: %v", err))
		}
		stats, err := k.GetStats(ctx)
		if err != nil {
			return k.brokenInvariant("module-balance", fmt.Sprintf("failed to aggregate state: %v", err))
		}

		expected := math.ZeroInt().
			Add(stats.EscrowedReward).
			Add(stats.LockedStake).
			Add(stats.FreeStake).
			Add(stats.Treasury)
		balance := k.bankKeeper.GetBalance(ctx, k.ModuleAddress(), params.Denom).Amount

		if !balance.Equal(expected) {
			return k.brokenInvariant("module-balance", fmt.Sprintf(
				"module balance %s != escrow %s + locked %s + free %s + treasury %s",
				balance, stats.EscrowedReward, stats.LockedStake, stats.FreeStake, stats.Treasury,
			))
		}
		return sdk.FormatInvariant(types.ModuleName, "module-balance",
			fmt.Sprintf("module balance %s matches accounted funds", balance)), false
	}
}

// JobStateInvariant checks every job's structure and that the status index
// and processing index agree with the arena.
func JobStateInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var (
			msg    string
			broken bool
			count  uint64
		)
		processing := make(map[string]uint64)

		err := k.IterateJobs(ctx, func(job types.Job) (bool, error) {
			if job.ID != count {
				msg, broken = fmt.Sprintf("arena gap: expected job %d, found %d", count, job.ID), true
				return true, nil
			}
			count++
			if err := job.Validate(); err != nil {
				msg, broken = err.Error(), true
				return true, nil
			}
			if !k.getStore(ctx).Has(JobByStatusKey(uint32(job.Status), job.ID)) {
				msg, broken = fmt.Sprintf("job %d missing from %s index", job.ID, job.Status), true
				return true, nil
			}
			if job.Status == types.JobStatusProcessing {
				processing[job.Worker]++
			}
			return false, nil
		})
		if err != nil {
			return k.brokenInvariant("job-state", err.Error())
		}
		if broken {
			return k.brokenInvariant("job-state", msg)
		}
		if count != k.GetJobCount(ctx) {
			return k.brokenInvariant("job-state", fmt.Sprintf("arena holds %d jobs, counter is %d", count, k.GetJobCount(ctx)))
		}

		for worker, n := range processing {
			addr, err := sdk.AccAddressFromBech32(worker)
			if err != nil {
				return k.brokenInvariant("job-state", err.Error())
			}
			if got := k.processingJobCount(ctx, addr); got != n {
				return k.brokenInvariant("job-state", fmt.Sprintf("worker %s processing index %d != %d", worker, got, n))
			}
		}
		return sdk.FormatInvariant(types.ModuleName, "job-state", fmt.Sprintf("%d jobs consistent", count)), false
	}
}

// WorkerStateInvariant checks every worker's structure, that history matches
// the completed counter and that reputation is within reachable bounds.
func WorkerStateInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var (
			msg    string
			broken bool
		)
		err := k.IterateWorkers(ctx, func(w types.Worker) (bool, error) {
			if err := w.Validate(); err != nil {
				msg, broken = err.Error(), true
				return true, nil
			}
			maxReputation := types.InitialReputation + types.ReputationReward*w.CompletedJobs
			if w.Reputation > maxReputation {
				msg, broken = fmt.Sprintf("worker %s reputation %d exceeds reachable %d", w.Address, w.Reputation, maxReputation), true
				return true, nil
			}
			addr, err := sdk.AccAddressFromBech32(w.Address)
			if err != nil {
				return false, err
			}
			history, err := k.GetWorkerJobHistory(ctx, addr)
			if err != nil {
				return false, err
			}
			if uint64(len(history)) != w.CompletedJobs {
				msg, broken = fmt.Sprintf("worker %s history %d != completed %d", w.Address, len(history), w.CompletedJobs), true
				return true, nil
			}
			return false, nil
		})
		if err != nil {
			return k.brokenInvariant("worker-state", err.Error())
		}
		if broken {
			return k.brokenInvariant("worker-state", msg)
		}
		return sdk.FormatInvariant(types.ModuleName, "worker-state", "workers consistent"), false
	}
}

func (k Keeper) brokenInvariant(route, msg string) (string, bool) {
	k.metrics.InvariantBreaks.WithLabelValues(route).Inc()
	return sdk.FormatInvariant(types.ModuleName, route, msg), true
}
