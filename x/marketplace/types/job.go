package types

import (
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/math"
)

// JobStatus is the lifecycle state of a job.
type JobStatus uint32

const (
	JobStatusPending JobStatus = iota
	JobStatusProcessing
	JobStatusCompleted
	JobStatusCancelled
	JobStatusSlashed
	JobStatusExpired
)

var jobStatusNames = map[JobStatus]string{
	JobStatusPending:    "pending",
	JobStatusProcessing: "processing",
	JobStatusCompleted:  "completed",
	JobStatusCancelled:  "cancelled",
	JobStatusSlashed:    "slashed",
	JobStatusExpired:    "expired",
}

// AllJobStatuses lists every status in declaration order.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending,
		JobStatusProcessing,
		JobStatusCompleted,
		JobStatusCancelled,
		JobStatusSlashed,
		JobStatusExpired,
	}
}

func (s JobStatus) String() string {
	if name, ok := jobStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(s))
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	_, ok := jobStatusNames[s]
	return ok
}

// IsTerminal reports whether no further transition may leave s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCancelled, JobStatusSlashed, JobStatusExpired:
		return true
	default:
		return false
	}
}

// IsClaimed reports whether a job in status s has an assigned worker.
func (s JobStatus) IsClaimed() bool {
	switch s {
	case JobStatusProcessing, JobStatusCompleted, JobStatusSlashed, JobStatusExpired:
		return true
	default:
		return false
	}
}

// ParseJobStatus accepts the lowercase name or the numeric value.
func ParseJobStatus(s string) (JobStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for status, name := range jobStatusNames {
		if name == s || fmt.Sprintf("%d", uint32(status)) == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown job status %q", s)
}

// JobType selects the timeout applied to a claimed job.
type JobType uint32

const (
	JobTypeInference JobType = iota
	JobTypeTraining
)

func (t JobType) String() string {
	switch t {
	case JobTypeInference:
		return "inference"
	case JobTypeTraining:
		return "training"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// IsValid reports whether t is a known job type.
func (t JobType) IsValid() bool {
	return t == JobTypeInference || t == JobTypeTraining
}

// ParseJobType accepts the lowercase name or the numeric value.
func ParseJobType(s string) (JobType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inference", "0":
		return JobTypeInference, nil
	case "training", "1":
		return JobTypeTraining, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidJobType, s)
	}
}

// Job is one unit of requested ML work with an escrowed reward.
type Job struct {
	ID          uint64    `json:"id"`
	Requester   string    `json:"requester"`
	Worker      string    `json:"worker,omitempty"`
	Reward      math.Int  `json:"reward"`
	Stake       math.Int  `json:"stake"`
	Status      JobStatus `json:"status"`
	JobType     JobType   `json:"job_type"`
	CreatedAt   time.Time `json:"created_at"`
	ClaimedAt   time.Time `json:"claimed_at"`
	CompletedAt time.Time `json:"completed_at"`
	ScriptHash  string    `json:"script_hash"`
	DataHash    string    `json:"data_hash"`
	ModelHash   string    `json:"model_hash,omitempty"`
	ProofHash   string    `json:"proof_hash,omitempty"`
}

// IsClaimed reports whether a worker has been assigned.
func (j Job) IsClaimed() bool {
	return j.Worker != ""
}

// RequiredStake is the collateral a worker must lock to claim the job.
func (j Job) RequiredStake() math.Int {
	return RequiredStake(j.Reward)
}

// RequiredStake returns reward / 2 rounded down.
func RequiredStake(reward math.Int) math.Int {
	return reward.QuoRaw(2)
}

// Validate checks the structural invariants of a stored job.
func (j Job) Validate() error {
	if j.Requester == "" {
		return ErrInvalidJob.Wrapf("job %d: requester cannot be empty", j.ID)
	}
	if j.Reward.IsNil() || !j.Reward.IsPositive() {
		return ErrInvalidJob.Wrapf("job %d: reward must be positive", j.ID)
	}
	if !j.Status.IsValid() {
		return ErrInvalidJob.Wrapf("job %d: unknown status %d", j.ID, j.Status)
	}
	if !j.JobType.IsValid() {
		return ErrInvalidJob.Wrapf("job %d: unknown job type %d", j.ID, j.JobType)
	}
	if j.ScriptHash == "" || j.DataHash == "" {
		return ErrInvalidJob.Wrapf("job %d: script and data hashes are required", j.ID)
	}
	if j.Status.IsClaimed() != j.IsClaimed() {
		return ErrInvalidJob.Wrapf("job %d: worker assignment inconsistent with status %s", j.ID, j.Status)
	}
	if j.IsClaimed() {
		if j.Stake.IsNil() || !j.Stake.Equal(j.RequiredStake()) {
			return ErrInvalidJob.Wrapf("job %d: locked stake must equal reward/2", j.ID)
		}
		if j.ClaimedAt.IsZero() {
			return ErrInvalidJob.Wrapf("job %d: claimed job missing claim time", j.ID)
		}
	} else if !j.Stake.IsNil() && !j.Stake.IsZero() {
		return ErrInvalidJob.Wrapf("job %d: unclaimed job cannot hold stake", j.ID)
	}
	if j.Status == JobStatusCompleted && (j.ModelHash == "" || j.CompletedAt.IsZero()) {
		return ErrInvalidJob.Wrapf("job %d: completed job missing model hash or completion time", j.ID)
	}
	return nil
}
