package keeper

import (
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
)

var (
	// ParamsKey is the key for module parameters
	ParamsKey = []byte{0x01}
	// OwnerKey stores the single owner address
	OwnerKey = []byte{0x02}
	// VerifierKey stores the name of the active proof verifier
	VerifierKey = []byte{0x03}
	// JobCountKey stores the number of jobs ever created (next job id)
	JobCountKey = []byte{0x04}
	// TreasuryKey stores forfeited stake held by the module account
	TreasuryKey = []byte{0x05}
	// WorkerCountKey stores the length of the registered worker list
	WorkerCountKey = []byte{0x06}

	// JobKeyPrefix is the prefix for the job arena
	JobKeyPrefix = []byte{0x10}
	// JobsByStatusPrefix indexes jobs by status
	JobsByStatusPrefix = []byte{0x11}
	// JobsByRequesterPrefix indexes jobs by requester
	JobsByRequesterPrefix = []byte{0x12}

	// WorkerKeyPrefix is the prefix for worker records
	WorkerKeyPrefix = []byte{0x20}
	// WorkerListPrefix is the append-only list of registered addresses
	// Key: prefix + position -> address
	WorkerListPrefix = []byte{0x21}
	// WorkerProcessingPrefix indexes processing jobs by worker
	// Key: prefix + len-prefixed worker + jobID
	WorkerProcessingPrefix = []byte{0x22}
	// WorkerHistoryPrefix stores completed jobs per worker in completion order
	// Key: prefix + len-prefixed worker + sequence -> jobID
	WorkerHistoryPrefix = []byte{0x23}
)

func uint64Bytes(v uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return bz
}

func uint64FromBytes(bz []byte) uint64 {
	return binary.BigEndian.Uint64(bz)
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// JobKey returns the store key for a job
func JobKey(jobID uint64) []byte {
	return concat(JobKeyPrefix, uint64Bytes(jobID))
}

// JobByStatusPrefix returns the index prefix for jobs in a status
func JobByStatusPrefix(status uint32) []byte {
	bz := make([]byte, 4)
	binary.BigEndian.PutUint32(bz, status)
	return concat(JobsByStatusPrefix, bz)
}

// JobByStatusKey returns the index key for a job in a status
func JobByStatusKey(status uint32, jobID uint64) []byte {
	return concat(JobByStatusPrefix(status), uint64Bytes(jobID))
}

// JobByRequesterPrefix returns the index prefix for jobs of a requester
func JobByRequesterPrefix(requester sdk.AccAddress) []byte {
	return concat(JobsByRequesterPrefix, address.MustLengthPrefix(requester))
}

// JobByRequesterKey returns the index key for a job of a requester
func JobByRequesterKey(requester sdk.AccAddress, jobID uint64) []byte {
	return concat(JobByRequesterPrefix(requester), uint64Bytes(jobID))
}

// WorkerKey returns the store key for a worker
func WorkerKey(worker sdk.AccAddress) []byte {
	return concat(WorkerKeyPrefix, address.MustLengthPrefix(worker))
}

// WorkerListKey returns the key for a position in the worker list
func WorkerListKey(position uint64) []byte {
	return concat(WorkerListPrefix, uint64Bytes(position))
}

// WorkerProcessingPrefixFor returns the processing index prefix of a worker
func WorkerProcessingPrefixFor(worker sdk.AccAddress) []byte {
	return concat(WorkerProcessingPrefix, address.MustLengthPrefix(worker))
}

// WorkerProcessingKey returns the processing index key of a worker's job
func WorkerProcessingKey(worker sdk.AccAddress, jobID uint64) []byte {
	return concat(WorkerProcessingPrefixFor(worker), uint64Bytes(jobID))
}

// WorkerHistoryPrefixFor returns the completed history prefix of a worker
func WorkerHistoryPrefixFor(worker sdk.AccAddress) []byte {
	return concat(WorkerHistoryPrefix, address.MustLengthPrefix(worker))
}

// WorkerHistoryKey returns the key of the n-th completed job of a worker
func WorkerHistoryKey(worker sdk.AccAddress, sequence uint64) []byte {
	return concat(WorkerHistoryPrefixFor(worker), uint64Bytes(sequence))
}
