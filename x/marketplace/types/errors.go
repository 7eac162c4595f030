package types

import (
	"errors"

	sdkerrors "cosmossdk.io/errors"
)

// Marketplace module sentinel errors

var (
	// Validation errors
	ErrInvalidJob      = sdkerrors.Register(ModuleName, 2, "invalid job")
	ErrInvalidWorker   = sdkerrors.Register(ModuleName, 3, "invalid worker")
	ErrInvalidAmount   = sdkerrors.Register(ModuleName, 4, "invalid amount")
	ErrEmptyHash       = sdkerrors.Register(ModuleName, 5, "content hash cannot be empty")
	ErrInvalidJobType  = sdkerrors.Register(ModuleName, 6, "invalid job type")
	ErrInvalidAddress  = sdkerrors.Register(ModuleName, 7, "invalid address")
	ErrInvalidParams   = sdkerrors.Register(ModuleName, 8, "invalid params")
	ErrInvalidGenesis  = sdkerrors.Register(ModuleName, 9, "invalid genesis state")
	ErrInvalidNodeID   = sdkerrors.Register(ModuleName, 10, "node id cannot be empty")
	ErrUnknownVerifier = sdkerrors.Register(ModuleName, 11, "unknown verifier")

	// Job lifecycle errors
	ErrJobNotFound       = sdkerrors.Register(ModuleName, 20, "job not found")
	ErrInvalidJobStatus  = sdkerrors.Register(ModuleName, 21, "invalid job status for transition")
	ErrNotRequester      = sdkerrors.Register(ModuleName, 22, "caller is not the job requester")
	ErrNotAssignedWorker = sdkerrors.Register(ModuleName, 23, "caller is not the assigned worker")
	ErrSelfClaim         = sdkerrors.Register(ModuleName, 24, "requester cannot claim own job")
	ErrJobExpired        = sdkerrors.Register(ModuleName, 25, "job has expired")
	ErrJobNotExpired     = sdkerrors.Register(ModuleName, 26, "job has not exceeded its timeout")

	// Worker and staking errors
	ErrWorkerNotFound      = sdkerrors.Register(ModuleName, 30, "worker not found")
	ErrWorkerNotActive     = sdkerrors.Register(ModuleName, 31, "worker not active")
	ErrWorkerAlreadyActive = sdkerrors.Register(ModuleName, 32, "worker already registered and active")
	ErrInsufficientStake   = sdkerrors.Register(ModuleName, 33, "insufficient free stake")
	ErrBelowMinStake       = sdkerrors.Register(ModuleName, 34, "stake below minimum")
	ErrWorkerBusy          = sdkerrors.Register(ModuleName, 35, "worker has jobs in processing")

	// Verification errors
	ErrProofRequired     = sdkerrors.Register(ModuleName, 40, "proof verification required")
	ErrInvalidProof      = sdkerrors.Register(ModuleName, 41, "invalid proof")
	ErrVerificationError = sdkerrors.Register(ModuleName, 42, "proof verification error")

	// Access control errors
	ErrUnauthorized = sdkerrors.Register(ModuleName, 50, "unauthorized: caller is not the owner")
	ErrReentrancy   = sdkerrors.Register(ModuleName, 51, "reentrant call rejected")

	// Fund transfer errors
	ErrTransferFailed       = sdkerrors.Register(ModuleName, 60, "fund transfer failed")
	ErrInsufficientTreasury = sdkerrors.Register(ModuleName, 61, "insufficient treasury balance")
)

// RecoverySuggestions maps errors to the action a caller should take before resubmitting
var RecoverySuggestions = map[error]string{
	ErrJobNotFound:         "Query the job count; job ids start at 0 and are sequential.",
	ErrInvalidJobStatus:    "Re-read the job; another transaction may have changed its status.",
	ErrNotRequester:        "Only the account that created the job can cancel it.",
	ErrNotAssignedWorker:   "Only the worker that claimed the job can submit its result.",
	ErrSelfClaim:           "Claim the job from a worker account distinct from the requester.",
	ErrJobExpired:          "The claim exceeded its timeout; anyone may now expire the job.",
	ErrJobNotExpired:       "Query the job timeout and retry after it has elapsed.",
	ErrWorkerNotFound:      "Register the worker with at least the minimum stake.",
	ErrWorkerNotActive:     "Register again to reactivate the worker.",
	ErrWorkerAlreadyActive: "The worker is already registered; deposit stake instead.",
	ErrInsufficientStake:   "Deposit stake to cover half of the job reward.",
	ErrBelowMinStake:       "Keep at least the minimum stake; deactivate to withdraw everything.",
	ErrWorkerBusy:          "Finish or expire processing jobs before deactivating.",
	ErrProofRequired:       "Submit the result with a proof; proofless submission is disabled.",
	ErrInvalidProof:        "Regenerate the proof against the job id and model digest.",
	ErrUnauthorized:        "Sign the transaction with the owner account.",
	ErrReentrancy:          "Nested calls are rejected; submit a separate transaction.",
	ErrTransferFailed:      "The payout could not be delivered; check the recipient can receive funds.",
}

// GetRecoverySuggestion returns the recovery suggestion for an error
func GetRecoverySuggestion(err error) string {
	for root := err; root != nil; root = errors.Unwrap(root) {
		if suggestion, ok := RecoverySuggestions[root]; ok {
			return suggestion
		}
	}
	return "No recovery suggestion available. Check error message for details."
}
