package keeper_test

import (
	"cosmossdk.io/math"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func (s *KeeperTestSuite) TestCreateJob() {
	first := s.createJob(unit)
	second := s.createJob(3 * unit)
	s.Require().Equal(uint64(0), first)
	s.Require().Equal(uint64(1), second)
	s.Require().Equal(uint64(2), s.keeper.GetJobCount(s.f.Ctx))

	job := s.job(second)
	s.Require().Equal(requesterAddr.String(), job.Requester)
	s.Require().Equal(math.NewInt(3*unit), job.Reward)
	s.Require().True(job.Stake.IsZero())
	s.Require().Empty(job.Worker)
	s.Require().Equal(types.JobTypeInference, job.JobType)
	s.Require().Equal(math.NewInt(4*unit), s.f.ModuleBalance())

	var found bool
	for _, ev := range s.f.Ctx.EventManager().Events() {
		if ev.Type != types.EventTypeJobCreated {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == types.AttributeKeyJobID && attr.Value == "1" {
				found = true
			}
		}
	}
	s.Require().True(found, "job_created event must carry the new job id")
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestCreateJobValidation() {
	tests := []struct {
		name   string
		script string
		data   string
		typ    types.JobType
		reward math.Int
		err    error
	}{
		{"zero reward", "QmS", "QmD", types.JobTypeInference, math.ZeroInt(), types.ErrInvalidAmount},
		{"negative reward", "QmS", "QmD", types.JobTypeInference, math.NewInt(-1), types.ErrInvalidAmount},
		{"empty script", "", "QmD", types.JobTypeInference, math.NewInt(unit), types.ErrEmptyHash},
		{"empty data", "QmS", "", types.JobTypeTraining, math.NewInt(unit), types.ErrEmptyHash},
		{"bad type", "QmS", "QmD", types.JobType(9), math.NewInt(unit), types.ErrInvalidJobType},
		{"unfunded", "QmS", "QmD", types.JobTypeTraining, math.NewInt(1000 * unit), types.ErrTransferFailed},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			_, err := s.keeper.CreateJob(s.f.Ctx, requesterAddr, tc.script, tc.data, tc.typ, tc.reward)
			s.Require().ErrorIs(err, tc.err)
			s.Require().Zero(s.keeper.GetJobCount(s.f.Ctx))
			s.Require().True(s.f.ModuleBalance().IsZero())
		})
	}
}

func (s *KeeperTestSuite) TestCancelJob() {
	id := s.createJob(unit)
	before := s.f.Balance(requesterAddr)

	s.Require().ErrorIs(s.keeper.CancelJob(s.f.Ctx, strangerAddr, id), types.ErrNotRequester)

	s.Require().NoError(s.keeper.CancelJob(s.f.Ctx, requesterAddr, id))
	s.Require().Equal(types.JobStatusCancelled, s.job(id).Status)
	s.Require().Equal(before.AddRaw(unit), s.f.Balance(requesterAddr))
	s.Require().True(s.hasEvent(types.EventTypeJobCancelled))
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestCancelClaimedJobFails() {
	s.registerWorker(workerAddr, unit)
	id := s.claimedJob(unit)
	s.Require().ErrorIs(s.keeper.CancelJob(s.f.Ctx, requesterAddr, id), types.ErrInvalidJobStatus)
	s.Require().Equal(types.JobStatusProcessing, s.job(id).Status)
}

func (s *KeeperTestSuite) TestClaimJobPreconditions() {
	id := s.createJob(4 * unit)

	s.Require().ErrorIs(s.keeper.ClaimJob(s.f.Ctx, workerAddr, id), types.ErrWorkerNotFound)

	// Requester registered as a worker cannot claim its own job.
	s.registerWorker(requesterAddr, 10*unit)
	s.Require().ErrorIs(s.keeper.ClaimJob(s.f.Ctx, requesterAddr, id), types.ErrSelfClaim)

	// Free stake must cover reward/2.
	s.registerWorker(workerAddr, 2*unit-1)
	s.Require().ErrorIs(s.keeper.ClaimJob(s.f.Ctx, workerAddr, id), types.ErrInsufficientStake)
	s.Require().Equal(math.NewInt(2*unit-1), s.worker(workerAddr).Stake)
	s.Require().Equal(types.JobStatusPending, s.job(id).Status)

	s.Require().NoError(s.keeper.DepositStake(s.f.Ctx, workerAddr, math.NewInt(1)))
	s.Require().NoError(s.keeper.ClaimJob(s.f.Ctx, workerAddr, id))
	s.Require().True(s.worker(workerAddr).Stake.IsZero())
	s.Require().Equal(math.NewInt(2*unit), s.job(id).Stake)
	s.requireInvariants()
}

// TestClaimLocksFloorOfHalf checks that an odd reward locks its integer half.
func (s *KeeperTestSuite) TestClaimLocksFloorOfHalf() {
	s.registerWorker(workerAddr, unit)
	id := s.createJob(3)
	s.Require().NoError(s.keeper.ClaimJob(s.f.Ctx, workerAddr, id))
	s.Require().Equal(math.NewInt(1), s.job(id).Stake)
	s.Require().Equal(math.NewInt(unit-1), s.worker(workerAddr).Stake)
	s.requireInvariants()
}

// TestClaimRace processes two claims for the same job back to back: the first
// wins and the second fails on the stale status without touching its stake.
func (s *KeeperTestSuite) TestClaimRace() {
	s.registerWorker(workerAddr, unit)
	s.registerWorker(rivalAddr, unit)
	id := s.createJob(unit)

	s.Require().NoError(s.keeper.ClaimJob(s.f.Ctx, workerAddr, id))
	err := s.keeper.ClaimJob(s.f.Ctx, rivalAddr, id)
	s.Require().ErrorIs(err, types.ErrInvalidJobStatus)

	job := s.job(id)
	s.Require().Equal(workerAddr.String(), job.Worker)
	s.Require().Equal(math.NewInt(unit), s.worker(rivalAddr).Stake)
	s.Require().Equal(math.NewInt(unit/2), s.worker(workerAddr).Stake)
	s.requireInvariants()
}
