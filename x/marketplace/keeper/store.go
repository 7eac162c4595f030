package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func setJSON(store storetypes.KVStore, key []byte, v any) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	store.Set(key, bz)
	return nil
}

func getJSON(store storetypes.KVStore, key []byte, v any) (bool, error) {
	bz := store.Get(key)
	if bz == nil {
		return false, nil
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return true, fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return true, nil
}

func (k Keeper) getCounter(ctx context.Context, key []byte) uint64 {
	bz := k.getStore(ctx).Get(key)
	if bz == nil {
		return 0
	}
	return uint64FromBytes(bz)
}

func (k Keeper) setCounter(ctx context.Context, key []byte, v uint64) {
	k.getStore(ctx).Set(key, uint64Bytes(v))
}

// ----- job arena -----

// GetJobCount returns the number of jobs ever created; ids are 0..count-1.
func (k Keeper) GetJobCount(ctx context.Context) uint64 {
	return k.getCounter(ctx, JobCountKey)
}

// GetJob returns a job by id
func (k Keeper) GetJob(ctx context.Context, jobID uint64) (types.Job, error) {
	var job types.Job
	found, err := getJSON(k.getStore(ctx), JobKey(jobID), &job)
	if err != nil {
		return types.Job{}, err
	}
	if !found {
		return types.Job{}, types.ErrJobNotFound.Wrapf("job %d", jobID)
	}
	return job, nil
}

// appendJob assigns the next id to job and stores it with its indexes.
func (k Keeper) appendJob(ctx context.Context, job types.Job) (types.Job, error) {
	job.ID = k.GetJobCount(ctx)
	requester, err := sdk.AccAddressFromBech32(job.Requester)
	if err != nil {
		return types.Job{}, types.ErrInvalidAddress.Wrapf("requester: %s", err)
	}

	store := k.getStore(ctx)
	if err := setJSON(store, JobKey(job.ID), job); err != nil {
		return types.Job{}, err
	}
	store.Set(JobByStatusKey(uint32(job.Status), job.ID), []byte{0x01})
	store.Set(JobByRequesterKey(requester, job.ID), []byte{0x01})
	k.setCounter(ctx, JobCountKey, job.ID+1)
	return job, nil
}

// updateJob rewrites an existing job, moving its status and processing indexes.
func (k Keeper) updateJob(ctx context.Context, prev, next types.Job) error {
	if prev.ID != next.ID {
		return fmt.Errorf("job id changed from %d to %d", prev.ID, next.ID)
	}
	store := k.getStore(ctx)
	if err := setJSON(store, JobKey(next.ID), next); err != nil {
		return err
	}
	if prev.Status != next.Status {
		store.Delete(JobByStatusKey(uint32(prev.Status), prev.ID))
		store.Set(JobByStatusKey(uint32(next.Status), next.ID), []byte{0x01})
	}

	if prev.Status == types.JobStatusProcessing && next.Status != types.JobStatusProcessing {
		worker, err := sdk.AccAddressFromBech32(prev.Worker)
		if err != nil {
			return err
		}
		store.Delete(WorkerProcessingKey(worker, prev.ID))
	}
	if next.Status == types.JobStatusProcessing && prev.Status != types.JobStatusProcessing {
		worker, err := sdk.AccAddressFromBech32(next.Worker)
		if err != nil {
			return err
		}
		store.Set(WorkerProcessingKey(worker, next.ID), []byte{0x01})
	}
	return nil
}

// IterateJobs walks the arena in id order until cb returns true.
func (k Keeper) IterateJobs(ctx context.Context, cb func(job types.Job) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), JobKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var job types.Job
		if err := json.Unmarshal(iterator.Value(), &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		stop, err := cb(job)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// jobsFromIndex resolves every job id suffixed to keys under prefix.
func (k Keeper) jobsFromIndex(ctx context.Context, prefix []byte) ([]types.Job, error) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), prefix)
	defer iterator.Close()

	jobs := []types.Job{}
	for ; iterator.Valid(); iterator.Next() {
		key := iterator.Key()
		jobID := uint64FromBytes(key[len(key)-8:])
		job, err := k.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// processingJobCount counts jobs a worker currently holds in Processing.
func (k Keeper) processingJobCount(ctx context.Context, worker sdk.AccAddress) uint64 {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), WorkerProcessingPrefixFor(worker))
	defer iterator.Close()

	var n uint64
	for ; iterator.Valid(); iterator.Next() {
		n++
	}
	return n
}

// ----- worker map and list -----

// GetWorker returns a worker record by address
func (k Keeper) GetWorker(ctx context.Context, addr sdk.AccAddress) (types.Worker, error) {
	var worker types.Worker
	found, err := getJSON(k.getStore(ctx), WorkerKey(addr), &worker)
	if err != nil {
		return types.Worker{}, err
	}
	if !found {
		return types.Worker{}, types.ErrWorkerNotFound.Wrapf("worker %s", addr)
	}
	return worker, nil
}

func (k Keeper) hasWorker(ctx context.Context, addr sdk.AccAddress) bool {
	return k.getStore(ctx).Has(WorkerKey(addr))
}

func (k Keeper) setWorker(ctx context.Context, worker types.Worker) error {
	addr, err := sdk.AccAddressFromBech32(worker.Address)
	if err != nil {
		return types.ErrInvalidAddress.Wrapf("worker: %s", err)
	}
	return setJSON(k.getStore(ctx), WorkerKey(addr), worker)
}

// GetWorkerCount returns the number of addresses ever registered.
func (k Keeper) GetWorkerCount(ctx context.Context) uint64 {
	return k.getCounter(ctx, WorkerCountKey)
}

func (k Keeper) appendWorkerAddress(ctx context.Context, addr sdk.AccAddress) {
	n := k.GetWorkerCount(ctx)
	k.getStore(ctx).Set(WorkerListKey(n), addr.Bytes())
	k.setCounter(ctx, WorkerCountKey, n+1)
}

// IterateWorkers walks workers in registration order until cb returns true.
func (k Keeper) IterateWorkers(ctx context.Context, cb func(worker types.Worker) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), WorkerListPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		worker, err := k.GetWorker(ctx, sdk.AccAddress(iterator.Value()))
		if err != nil {
			return err
		}
		stop, err := cb(worker)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

func (k Keeper) appendHistory(ctx context.Context, worker sdk.AccAddress, sequence, jobID uint64) {
	k.getStore(ctx).Set(WorkerHistoryKey(worker, sequence), uint64Bytes(jobID))
}

// ----- singletons -----

// GetOwner returns the owner address
func (k Keeper) GetOwner(ctx context.Context) (sdk.AccAddress, error) {
	bz := k.getStore(ctx).Get(OwnerKey)
	if bz == nil {
		return nil, types.ErrUnauthorized.Wrap("owner not set")
	}
	return sdk.AccAddress(bz), nil
}

func (k Keeper) setOwner(ctx context.Context, owner sdk.AccAddress) {
	k.getStore(ctx).Set(OwnerKey, owner.Bytes())
}

// GetVerifierName returns the name of the active proof verifier
func (k Keeper) GetVerifierName(ctx context.Context) string {
	return string(k.getStore(ctx).Get(VerifierKey))
}

func (k Keeper) setVerifierName(ctx context.Context, name string) {
	k.getStore(ctx).Set(VerifierKey, []byte(name))
}

// GetTreasury returns the forfeited stake accrued by the module
func (k Keeper) GetTreasury(ctx context.Context) math.Int {
	bz := k.getStore(ctx).Get(TreasuryKey)
	if bz == nil {
		return math.ZeroInt()
	}
	var amount math.Int
	if err := amount.Unmarshal(bz); err != nil {
		panic(fmt.Errorf("corrupt treasury value: %w", err))
	}
	return amount
}

func (k Keeper) setTreasury(ctx context.Context, amount math.Int) error {
	bz, err := amount.Marshal()
	if err != nil {
		return err
	}
	k.getStore(ctx).Set(TreasuryKey, bz)
	return nil
}
