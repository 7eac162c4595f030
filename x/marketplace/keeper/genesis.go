package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// InitGenesis initializes the marketplace module's state from a provided genesis state.
func (k Keeper) InitGenesis(ctx context.Context, genState types.GenesisState) error {
	if err := genState.Validate(); err != nil {
		return fmt.Errorf("invalid genesis state: %w", err)
	}
	if _, ok := k.verifiers.Get(genState.Verifier); !ok {
		return types.ErrUnknownVerifier.Wrapf("genesis verifier %q is not registered", genState.Verifier)
	}

	if err := k.SetParams(ctx, genState.Params); err != nil {
		return fmt.Errorf("failed to set params: %w", err)
	}
	owner, err := sdk.AccAddressFromBech32(genState.Owner)
	if err != nil {
		return err
	}
	k.setOwner(ctx, owner)
	k.setVerifierName(ctx, genState.Verifier)

	treasury := genState.Treasury
	if treasury.IsNil() {
		treasury = math.ZeroInt()
	}
	if err := k.setTreasury(ctx, treasury); err != nil {
		return err
	}

	for _, w := range genState.Workers {
		addr, err := sdk.AccAddressFromBech32(w.Address)
		if err != nil {
			return err
		}
		if err := k.setWorker(ctx, w); err != nil {
			return fmt.Errorf("failed to set worker %s: %w", w.Address, err)
		}
		k.appendWorkerAddress(ctx, addr)
	}

	for _, job := range genState.Jobs {
		status := job.Status
		job.Status = types.JobStatusPending
		stored, err := k.appendJob(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to import job %d: %w", job.ID, err)
		}
		if status != types.JobStatusPending {
			next := stored
			next.Status = status
			if err := k.updateJob(ctx, stored, next); err != nil {
				return fmt.Errorf("failed to import job %d: %w", job.ID, err)
			}
		}
	}

	for _, h := range genState.History {
		addr, err := sdk.AccAddressFromBech32(h.Worker)
		if err != nil {
			return err
		}
		for seq, jobID := range h.JobIDs {
			k.appendHistory(ctx, addr, uint64(seq), jobID)
		}
	}
	return nil
}

// ExportGenesis returns the marketplace module's exported genesis.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := k.GetOwner(ctx)
	if err != nil {
		return nil, err
	}

	jobs := []types.Job{}
	if err := k.IterateJobs(ctx, func(job types.Job) (bool, error) {
		jobs = append(jobs, job)
		return false, nil
	}); err != nil {
		return nil, err
	}

	workers, err := k.GetAllWorkers(ctx)
	if err != nil {
		return nil, err
	}
	history := []types.WorkerHistory{}
	for _, w := range workers {
		addr, err := sdk.AccAddressFromBech32(w.Address)
		if err != nil {
			return nil, err
		}
		ids, err := k.GetWorkerJobHistory(ctx, addr)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			history = append(history, types.WorkerHistory{Worker: w.Address, JobIDs: ids})
		}
	}

	return &types.GenesisState{
		Params:   params,
		Owner:    owner.String(),
		Verifier: k.GetVerifierName(ctx),
		Jobs:     jobs,
		Workers:  workers,
		History:  history,
		Treasury: k.GetTreasury(ctx),
	}, nil
}
