package types

// Event types for the marketplace module
// All event types use lowercase with underscore separator
const (
	// Job lifecycle events
	EventTypeJobCreated   = "job_created"
	EventTypeJobClaimed   = "job_claimed"
	EventTypeJobCompleted = "job_completed"
	EventTypeJobCancelled = "job_cancelled"
	EventTypeJobExpired   = "job_expired"
	EventTypeJobSlashed   = "job_slashed"

	// Worker and staking events
	EventTypeWorkerRegistered  = "worker_registered"
	EventTypeWorkerDeactivated = "worker_deactivated"
	EventTypeStakeDeposited    = "stake_deposited"
	EventTypeStakeWithdrawn    = "stake_withdrawn"
	EventTypeRewardPaid        = "reward_paid"

	// Administrative events
	EventTypeVerifierUpdated      = "verifier_updated"
	EventTypeOwnershipTransferred = "ownership_transferred"
	EventTypeTreasuryWithdrawn    = "treasury_withdrawn"
	EventTypeParamsUpdated        = "params_updated"
)

// Event attribute keys for the marketplace module
const (
	AttributeKeyJobID      = "job_id"
	AttributeKeyRequester  = "requester"
	AttributeKeyWorker     = "worker"
	AttributeKeyReward     = "reward"
	AttributeKeyStake      = "stake"
	AttributeKeyJobType    = "job_type"
	AttributeKeyScriptHash = "script_hash"
	AttributeKeyDataHash   = "data_hash"
	AttributeKeyModelHash  = "model_hash"
	AttributeKeyProofHash  = "proof_hash"
	AttributeKeyForfeited  = "forfeited_stake"
	AttributeKeyReputation = "reputation"
	AttributeKeyNodeID     = "node_id"
	AttributeKeyAmount     = "amount"
	AttributeKeyRecipient  = "recipient"
	AttributeKeyCaller     = "caller"
	AttributeKeyVerifier   = "verifier"
	AttributeKeyOldOwner   = "previous_owner"
	AttributeKeyNewOwner   = "new_owner"
)
