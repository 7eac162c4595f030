package api

import (
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]int64{
		"1":           1,
		"5000000":     5_000_000,
		" 7uobl ":     7,
		"1000000uobl": 1_000_000,
	} {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got.Int64(), in)
	}

	for _, in := range []string{"", "0", "-1", "1.5", "1e6", "10atom", "uobl"} {
		_, err := ParseAmount(in)
		require.Error(t, err, in)
	}
}

func TestParseJobID(t *testing.T) {
	id, err := ParseJobID("0")
	require.NoError(t, err)
	require.Zero(t, id)

	id, err = ParseJobID("18446744073709551615")
	require.NoError(t, err)
	require.Equal(t, ^uint64(0), id)

	for _, in := range []string{"", "-1", "abc", "18446744073709551616", "1 "} {
		_, err := ParseJobID(in)
		require.Error(t, err, in)
	}
}

func TestJobQueryMatches(t *testing.T) {
	requester := sdk.AccAddress([]byte("requester___________"))
	other := sdk.AccAddress([]byte("other_______________"))
	pending := types.JobStatusPending

	job := types.Job{Requester: requester.String(), Status: types.JobStatusPending}

	require.True(t, JobQuery{}.Matches(job))
	require.True(t, JobQuery{Status: &pending, Requester: requester}.Matches(job))
	require.False(t, JobQuery{Requester: other}.Matches(job))

	completed := types.JobStatusCompleted
	require.False(t, JobQuery{Status: &completed}.Matches(job))
}

func TestFieldErrors(t *testing.T) {
	var errs FieldErrors
	require.NoError(t, errs.Err())

	_, err := ParseAddress("")
	errs.Add("address", err)
	_, err = ParseAmount("0")
	errs.Add("amount", err)

	require.Error(t, errs.Err())
	require.Contains(t, errs.Error(), "address: address is required")
	require.Contains(t, errs.Error(), "amount: ")
}
