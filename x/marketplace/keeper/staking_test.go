package keeper_test

import (
	"cosmossdk.io/math"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func (s *KeeperTestSuite) TestRegisterWorker() {
	before := s.f.Balance(workerAddr)
	s.Require().NoError(s.keeper.RegisterWorker(s.f.Ctx, workerAddr, "gpu-node-1", math.NewInt(unit)))

	w := s.worker(workerAddr)
	s.Require().True(w.IsActive)
	s.Require().Equal(types.InitialReputation, w.Reputation)
	s.Require().Equal("gpu-node-1", w.NodeID)
	s.Require().Equal(math.NewInt(unit), w.Stake)
	s.Require().True(w.TotalEarnings.IsZero())
	s.Require().Equal(before.SubRaw(unit), s.f.Balance(workerAddr))
	s.Require().Equal(uint64(1), s.keeper.GetWorkerCount(s.f.Ctx))
	s.Require().True(s.hasEvent(types.EventTypeWorkerRegistered))
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestRegisterWorkerValidation() {
	tests := []struct {
		name   string
		nodeID string
		stake  math.Int
		err    error
	}{
		{name: "empty node id", nodeID: "", stake: math.NewInt(unit), err: types.ErrInvalidNodeID},
		{name: "below minimum", nodeID: "n", stake: types.DefaultMinStake.SubRaw(1), err: types.ErrBelowMinStake},
		{name: "zero stake", nodeID: "n", stake: math.ZeroInt(), err: types.ErrBelowMinStake},
		{name: "unfunded", nodeID: "n", stake: math.NewInt(1000 * unit), err: types.ErrTransferFailed},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			err := s.keeper.RegisterWorker(s.f.Ctx, workerAddr, tc.nodeID, tc.stake)
			s.Require().ErrorIs(err, tc.err)
			_, err = s.keeper.GetWorker(s.f.Ctx, workerAddr)
			s.Require().ErrorIs(err, types.ErrWorkerNotFound)
			s.Require().Zero(s.keeper.GetWorkerCount(s.f.Ctx))
		})
	}
}

// TestRegisterTwiceWhileActive registers the same address twice; the second
// attempt fails and leaves state untouched.
func (s *KeeperTestSuite) TestRegisterTwiceWhileActive() {
	s.registerWorker(workerAddr, unit)
	before := s.worker(workerAddr)
	balance := s.f.Balance(workerAddr)
	events := s.eventCount()

	err := s.keeper.RegisterWorker(s.f.Ctx, workerAddr, "other-node", math.NewInt(2*unit))
	s.Require().ErrorIs(err, types.ErrWorkerAlreadyActive)

	s.Require().Equal(before, s.worker(workerAddr))
	s.Require().Equal(balance, s.f.Balance(workerAddr))
	s.Require().Equal(uint64(1), s.keeper.GetWorkerCount(s.f.Ctx))
	s.Require().Equal(events, s.eventCount())
}

func (s *KeeperTestSuite) TestReregisterAfterDeactivation() {
	s.registerWorker(workerAddr, 2*unit)
	id := s.claimedJob(unit)
	_, err := s.keeper.SubmitResultSimple(s.f.Ctx, workerAddr, id, "QmModel", "QmProof")
	s.Require().NoError(err)
	s.Require().NoError(s.keeper.DeactivateWorker(s.f.Ctx, workerAddr))

	s.Require().NoError(s.keeper.RegisterWorker(s.f.Ctx, workerAddr, "node-2", math.NewInt(unit)))
	w := s.worker(workerAddr)
	s.Require().True(w.IsActive)
	s.Require().Equal("node-2", w.NodeID)
	s.Require().Equal(math.NewInt(unit), w.Stake)
	s.Require().Equal(uint64(1), w.CompletedJobs)
	s.Require().Equal(uint64(110), w.Reputation)
	s.Require().Equal(uint64(1), s.keeper.GetWorkerCount(s.f.Ctx))
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestDepositStake() {
	s.registerWorker(workerAddr, unit)
	s.Require().NoError(s.keeper.DepositStake(s.f.Ctx, workerAddr, math.NewInt(unit)))
	s.Require().Equal(math.NewInt(2*unit), s.worker(workerAddr).Stake)
	s.Require().True(s.hasEvent(types.EventTypeStakeDeposited))

	s.Require().ErrorIs(s.keeper.DepositStake(s.f.Ctx, workerAddr, math.ZeroInt()), types.ErrInvalidAmount)
	s.Require().ErrorIs(s.keeper.DepositStake(s.f.Ctx, rivalAddr, math.NewInt(unit)), types.ErrWorkerNotFound)
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestWithdrawStake() {
	s.registerWorker(workerAddr, 2*unit)
	before := s.f.Balance(workerAddr)

	s.Require().NoError(s.keeper.WithdrawStake(s.f.Ctx, workerAddr, math.NewInt(unit)))
	s.Require().Equal(math.NewInt(unit), s.worker(workerAddr).Stake)
	s.Require().Equal(before.AddRaw(unit), s.f.Balance(workerAddr))
	s.Require().True(s.hasEvent(types.EventTypeStakeWithdrawn))
	s.requireInvariants()
}

// TestWithdrawBelowFloor checks that a withdrawal leaving less than the
// minimum stake fails and changes nothing.
func (s *KeeperTestSuite) TestWithdrawBelowFloor() {
	s.registerWorker(workerAddr, unit)
	before := s.f.Balance(workerAddr)

	floor := types.DefaultMinStake
	err := s.keeper.WithdrawStake(s.f.Ctx, workerAddr, math.NewInt(unit).Sub(floor).AddRaw(1))
	s.Require().ErrorIs(err, types.ErrBelowMinStake)
	s.Require().Equal(math.NewInt(unit), s.worker(workerAddr).Stake)
	s.Require().Equal(before, s.f.Balance(workerAddr))

	err = s.keeper.WithdrawStake(s.f.Ctx, workerAddr, math.NewInt(2*unit))
	s.Require().ErrorIs(err, types.ErrInsufficientStake)

	// Withdrawing down to exactly the floor is allowed.
	s.Require().NoError(s.keeper.WithdrawStake(s.f.Ctx, workerAddr, math.NewInt(unit).Sub(floor)))
	s.Require().Equal(floor, s.worker(workerAddr).Stake)
}

func (s *KeeperTestSuite) TestDeactivateWorker() {
	s.registerWorker(workerAddr, 2*unit)
	id := s.claimedJob(unit)

	s.Require().ErrorIs(s.keeper.DeactivateWorker(s.f.Ctx, workerAddr), types.ErrWorkerBusy)
	s.Require().True(s.worker(workerAddr).IsActive)

	_, err := s.keeper.SubmitResultSimple(s.f.Ctx, workerAddr, id, "QmModel", "QmProof")
	s.Require().NoError(err)

	before := s.f.Balance(workerAddr)
	s.Require().NoError(s.keeper.DeactivateWorker(s.f.Ctx, workerAddr))
	w := s.worker(workerAddr)
	s.Require().False(w.IsActive)
	s.Require().True(w.Stake.IsZero())
	s.Require().Equal(before.Add(math.NewInt(unit+unit/2)), s.f.Balance(workerAddr))
	s.Require().True(s.hasEvent(types.EventTypeWorkerDeactivated))

	// The record is retained.
	s.Require().Equal(uint64(1), s.keeper.GetWorkerCount(s.f.Ctx))
	s.Require().ErrorIs(s.keeper.DeactivateWorker(s.f.Ctx, workerAddr), types.ErrWorkerNotActive)
	s.Require().ErrorIs(s.keeper.DepositStake(s.f.Ctx, workerAddr, math.NewInt(unit)), types.ErrWorkerNotActive)
	s.requireInvariants()
}
