package types

import (
	"math"
	"time"

	sdkmath "cosmossdk.io/math"
)

const (
	// InitialReputation is assigned on first registration
	InitialReputation uint64 = 100
	// ReputationReward is added for every completed job
	ReputationReward uint64 = 10
	// ReputationPenaltyTimeout is subtracted when a claimed job expires
	ReputationPenaltyTimeout uint64 = 20
	// ReputationPenaltySlash is subtracted when the owner slashes a job
	ReputationPenaltySlash uint64 = 30

	// PriorityInactive is reported for unknown or inactive workers so they sort last
	PriorityInactive uint64 = math.MaxUint64
)

// Worker is a staked participant eligible to claim jobs.
type Worker struct {
	Address       string      `json:"address"`
	Stake         sdkmath.Int `json:"stake"`
	Reputation    uint64      `json:"reputation"`
	CompletedJobs uint64      `json:"completed_jobs"`
	FailedJobs    uint64      `json:"failed_jobs"`
	TotalEarnings sdkmath.Int `json:"total_earnings"`
	IsActive      bool        `json:"is_active"`
	NodeID        string      `json:"node_id"`
	RegisteredAt  time.Time   `json:"registered_at"`
}

// NewWorker returns a freshly registered, active worker.
func NewWorker(address, nodeID string, stake sdkmath.Int, now time.Time) Worker {
	return Worker{
		Address:       address,
		Stake:         stake,
		Reputation:    InitialReputation,
		TotalEarnings: sdkmath.ZeroInt(),
		IsActive:      true,
		NodeID:        nodeID,
		RegisteredAt:  now,
	}
}

// Priority is the advisory scheduling signal: fewer completed jobs means higher priority.
func (w Worker) Priority() uint64 {
	if !w.IsActive {
		return PriorityInactive
	}
	return w.CompletedJobs
}

// Reward applies the reputation bonus for a completed job.
func (w *Worker) Reward() {
	w.Reputation += ReputationReward
}

// Penalize subtracts penalty from reputation, saturating at zero.
func (w *Worker) Penalize(penalty uint64) {
	if penalty >= w.Reputation {
		w.Reputation = 0
		return
	}
	w.Reputation -= penalty
}

// Validate checks the structural invariants of a stored worker.
func (w Worker) Validate() error {
	if w.Address == "" {
		return ErrInvalidWorker.Wrap("address cannot be empty")
	}
	if w.NodeID == "" {
		return ErrInvalidWorker.Wrapf("worker %s: node id cannot be empty", w.Address)
	}
	if w.Stake.IsNil() || w.Stake.IsNegative() {
		return ErrInvalidWorker.Wrapf("worker %s: stake cannot be negative", w.Address)
	}
	if w.TotalEarnings.IsNil() || w.TotalEarnings.IsNegative() {
		return ErrInvalidWorker.Wrapf("worker %s: earnings cannot be negative", w.Address)
	}
	if !w.IsActive && !w.Stake.IsZero() {
		return ErrInvalidWorker.Wrapf("worker %s: inactive worker cannot hold free stake", w.Address)
	}
	return nil
}
