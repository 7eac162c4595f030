package keeper_test

import (
	"context"
	"errors"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

var errRecipientRejects = errors.New("recipient rejects transfer")

// TestReentrantCallFromPayoutIsRejected has the payout recipient re-enter the
// keeper while the guard is held.
func (s *KeeperTestSuite) TestReentrantCallFromPayoutIsRejected() {
	s.registerWorker(workerAddr, unit)
	id := s.claimedJob(unit)
	second := s.createJob(unit)

	var reentryErrs []error
	s.f.OnSend = func(ctx context.Context, from, to sdk.AccAddress, _ sdk.Coins) error {
		if !to.Equals(workerAddr) {
			return nil
		}
		reentryErrs = append(reentryErrs,
			s.keeper.ClaimJob(ctx, workerAddr, second),
			s.keeper.WithdrawStake(ctx, workerAddr, math.NewInt(1)),
			s.keeper.CancelJob(ctx, requesterAddr, second),
		)
		_, err := s.keeper.CreateJob(ctx, workerAddr, "QmS", "QmD", types.JobTypeInference, math.NewInt(1))
		reentryErrs = append(reentryErrs, err)
		return nil
	}

	_, err := s.keeper.SubmitResultSimple(s.f.Ctx, workerAddr, id, "QmModel", "QmProof")
	s.Require().NoError(err)
	s.f.OnSend = nil

	s.Require().Len(reentryErrs, 4)
	for _, err := range reentryErrs {
		s.Require().ErrorIs(err, types.ErrReentrancy)
	}
	s.Require().Equal(types.JobStatusPending, s.job(second).Status)
	s.Require().Equal(uint64(2), s.keeper.GetJobCount(s.f.Ctx))

	_, held := s.keeper.Guard().Held()
	s.Require().False(held)
	s.requireInvariants()
}

// TestRecipientThatReentersAbortsOperation propagates the reentrancy failure
// out of the transfer, which rolls the whole operation back.
func (s *KeeperTestSuite) TestRecipientThatReentersAbortsOperation() {
	s.registerWorker(workerAddr, unit)
	id := s.createJob(unit)

	s.f.OnSend = func(ctx context.Context, _, to sdk.AccAddress, _ sdk.Coins) error {
		if to.Equals(requesterAddr) {
			return s.keeper.CancelJob(ctx, requesterAddr, id)
		}
		return nil
	}
	err := s.keeper.CancelJob(s.f.Ctx, requesterAddr, id)
	s.f.OnSend = nil

	s.Require().ErrorIs(err, types.ErrTransferFailed)
	s.Require().Contains(err.Error(), types.ErrReentrancy.Error())
	s.Require().Equal(types.JobStatusPending, s.job(id).Status)
}

// TestRejectedPayoutRollsBackCompletion checks all-or-nothing semantics when
// the payout cannot be delivered.
func (s *KeeperTestSuite) TestRejectedPayoutRollsBackCompletion() {
	s.registerWorker(workerAddr, unit)
	id := s.claimedJob(unit)

	jobBefore := s.job(id)
	workerBefore := s.worker(workerAddr)
	balance := s.f.Balance(workerAddr)
	module := s.f.ModuleBalance()
	events := s.eventCount()

	s.f.OnSend = func(_ context.Context, _, to sdk.AccAddress, _ sdk.Coins) error {
		if to.Equals(workerAddr) {
			return errRecipientRejects
		}
		return nil
	}
	_, err := s.keeper.SubmitResultSimple(s.f.Ctx, workerAddr, id, "QmModel", "QmProof")
	s.f.OnSend = nil

	s.Require().ErrorIs(err, types.ErrTransferFailed)
	s.Require().Equal(jobBefore, s.job(id))
	s.Require().Equal(workerBefore, s.worker(workerAddr))
	s.Require().Equal(balance, s.f.Balance(workerAddr))
	s.Require().Equal(module, s.f.ModuleBalance())
	s.Require().Equal(events, s.eventCount())

	history, err := s.keeper.GetWorkerJobHistory(s.f.Ctx, workerAddr)
	s.Require().NoError(err)
	s.Require().Empty(history)

	// Once the recipient accepts again, the same submission goes through.
	_, err = s.keeper.SubmitResultSimple(s.f.Ctx, workerAddr, id, "QmModel", "QmProof")
	s.Require().NoError(err)
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestRejectedRefundRollsBackExpiry() {
	s.registerWorker(workerAddr, unit)
	id := s.claimedJob(unit)
	s.f.Advance(types.DefaultInferenceTimeout * 2)

	s.f.OnSend = func(_ context.Context, _, to sdk.AccAddress, _ sdk.Coins) error {
		if to.Equals(requesterAddr) {
			return errRecipientRejects
		}
		return nil
	}
	err := s.keeper.ExpireJob(s.f.Ctx, strangerAddr, id)
	s.f.OnSend = nil

	s.Require().ErrorIs(err, types.ErrTransferFailed)
	s.Require().Equal(types.JobStatusProcessing, s.job(id).Status)
	s.Require().Equal(types.InitialReputation, s.worker(workerAddr).Reputation)
	s.Require().True(s.keeper.GetTreasury(s.f.Ctx).IsZero())
	s.requireInvariants()
}
