package api

import (
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// ==================== Request Types ====================

// FaucetRequest asks the devnet faucet to fund an address
type FaucetRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Offset int `form:"offset" json:"offset"`
	Limit  int `form:"limit" json:"limit"`
}

// ==================== Response Types ====================

// JobsResponse lists jobs
type JobsResponse struct {
	Jobs  []types.Job `json:"jobs"`
	Total int         `json:"total"`
}

// WorkersResponse lists workers
type WorkersResponse struct {
	Workers []types.Worker `json:"workers"`
}

// CountResponse carries a counter
type CountResponse struct {
	Count uint64 `json:"count"`
}

// HistoryResponse lists the jobs a worker completed, oldest first
type HistoryResponse struct {
	Worker string   `json:"worker"`
	JobIDs []uint64 `json:"job_ids"`
}

// PriorityResponse carries a worker's scheduling priority
type PriorityResponse struct {
	Worker   string `json:"worker"`
	Priority uint64 `json:"priority"`
}

// ExpiredResponse reports whether a job's claim has timed out
type ExpiredResponse struct {
	JobID   uint64 `json:"job_id"`
	Expired bool   `json:"expired"`
}

// TimeoutResponse carries the claim timeout of a job type
type TimeoutResponse struct {
	JobType string `json:"job_type"`
	Timeout string `json:"timeout"`
	Seconds int64  `json:"seconds"`
}

// OwnerResponse carries the marketplace administrator and active verifier
type OwnerResponse struct {
	Owner    string `json:"owner"`
	Verifier string `json:"verifier"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Codespace string `json:"codespace,omitempty"`
	ABCICode  uint32 `json:"abci_code,omitempty"`
	Details   string `json:"details,omitempty"`
}
