package types

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// DefaultVerifierName is the verifier selected when genesis does not name one
const DefaultVerifierName = "groth16"

// WorkerHistory is the ordered list of jobs a worker completed.
type WorkerHistory struct {
	Worker string   `json:"worker"`
	JobIDs []uint64 `json:"job_ids"`
}

// GenesisState defines the marketplace module's genesis state.
type GenesisState struct {
	Params   Params          `json:"params"`
	Owner    string          `json:"owner"`
	Verifier string          `json:"verifier"`
	Jobs     []Job           `json:"jobs"`
	Workers  []Worker        `json:"workers"`
	History  []WorkerHistory `json:"history"`
	Treasury math.Int        `json:"treasury"`
}

// DefaultGenesis returns the default genesis state with the given owner
func DefaultGenesis(owner string) *GenesisState {
	return &GenesisState{
		Params:   DefaultParams(),
		Owner:    owner,
		Verifier: DefaultVerifierName,
		Jobs:     []Job{},
		Workers:  []Worker{},
		History:  []WorkerHistory{},
		Treasury: math.ZeroInt(),
	}
}

// Validate performs basic genesis state validation returning an error upon any
// failure.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if _, err := sdk.AccAddressFromBech32(gs.Owner); err != nil {
		return ErrInvalidGenesis.Wrapf("owner: %s", err)
	}
	if gs.Verifier == "" {
		return ErrInvalidGenesis.Wrap("verifier name cannot be empty")
	}
	if !gs.Treasury.IsNil() && gs.Treasury.IsNegative() {
		return ErrInvalidGenesis.Wrap("treasury cannot be negative")
	}

	workers := make(map[string]Worker, len(gs.Workers))
	for i, w := range gs.Workers {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}
		if _, dup := workers[w.Address]; dup {
			return ErrInvalidGenesis.Wrapf("duplicate worker %s", w.Address)
		}
		workers[w.Address] = w
	}

	// Jobs form a dense arena: position i holds id i.
	for i, job := range gs.Jobs {
		if job.ID != uint64(i) {
			return ErrInvalidGenesis.Wrapf("job at position %d has id %d", i, job.ID)
		}
		if err := job.Validate(); err != nil {
			return err
		}
		if job.IsClaimed() {
			if _, ok := workers[job.Worker]; !ok {
				return ErrInvalidGenesis.Wrapf("job %d: worker %s not registered", job.ID, job.Worker)
			}
		}
	}

	covered := make(map[string]bool, len(gs.History))
	for _, h := range gs.History {
		w, ok := workers[h.Worker]
		if !ok {
			return ErrInvalidGenesis.Wrapf("history for unknown worker %s", h.Worker)
		}
		if covered[h.Worker] {
			return ErrInvalidGenesis.Wrapf("duplicate history for worker %s", h.Worker)
		}
		covered[h.Worker] = true
		if uint64(len(h.JobIDs)) != w.CompletedJobs {
			return ErrInvalidGenesis.Wrapf("worker %s: history length %d != completed jobs %d",
				h.Worker, len(h.JobIDs), w.CompletedJobs)
		}
		for _, id := range h.JobIDs {
			if id >= uint64(len(gs.Jobs)) {
				return ErrInvalidGenesis.Wrapf("worker %s: history references unknown job %d", h.Worker, id)
			}
			job := gs.Jobs[id]
			if job.Worker != h.Worker || job.Status != JobStatusCompleted {
				return ErrInvalidGenesis.Wrapf("worker %s: job %d is not a completed job of this worker", h.Worker, id)
			}
		}
	}

	// Completions append at seq CompletedJobs, so the history must already hold
	// every earlier completion.
	for _, w := range gs.Workers {
		if w.CompletedJobs > 0 && !covered[w.Address] {
			return ErrInvalidGenesis.Wrapf("worker %s: %d completed jobs but no history",
				w.Address, w.CompletedJobs)
		}
	}
	return nil
}
