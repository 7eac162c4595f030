package types

import "cosmossdk.io/math"

// Stats aggregates marketplace counters for dashboards.
type Stats struct {
	TotalJobs      uint64            `json:"total_jobs"`
	JobsByStatus   map[string]uint64 `json:"jobs_by_status"`
	TotalWorkers   uint64            `json:"total_workers"`
	ActiveWorkers  uint64            `json:"active_workers"`
	EscrowedReward math.Int          `json:"escrowed_reward"`
	LockedStake    math.Int          `json:"locked_stake"`
	FreeStake      math.Int          `json:"free_stake"`
	Treasury       math.Int          `json:"treasury"`
}

// NewStats returns zeroed stats with every status bucket present.
func NewStats() Stats {
	byStatus := make(map[string]uint64, len(jobStatusNames))
	for _, status := range AllJobStatuses() {
		byStatus[status.String()] = 0
	}
	return Stats{
		JobsByStatus:   byStatus,
		EscrowedReward: math.ZeroInt(),
		LockedStake:    math.ZeroInt(),
		FreeStake:      math.ZeroInt(),
		Treasury:       math.ZeroInt(),
	}
}
