package keeper_test

import (
	"cosmossdk.io/math"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func jobIDs(jobs []types.Job) []uint64 {
	ids := make([]uint64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

func (s *KeeperTestSuite) TestJobQueries() {
	s.registerWorker(workerAddr, 10*unit)

	pending := s.createJob(unit)
	completed := s.claimedJob(unit)
	_, err := s.keeper.SubmitResultSimple(s.f.Ctx, workerAddr, completed, "QmModel", "QmProof")
	s.Require().NoError(err)
	processing := s.claimedJob(2 * unit)
	cancelled := s.createJob(unit)
	s.Require().NoError(s.keeper.CancelJob(s.f.Ctx, requesterAddr, cancelled))

	// A job from another requester.
	other, err := s.keeper.CreateJob(s.f.Ctx, strangerAddr, "QmS", "QmD", types.JobTypeTraining, math.NewInt(unit))
	s.Require().NoError(err)

	jobs, err := s.keeper.GetPendingJobs(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().Equal([]uint64{pending, other}, jobIDs(jobs))

	jobs, err = s.keeper.GetJobsByStatus(s.f.Ctx, types.JobStatusProcessing)
	s.Require().NoError(err)
	s.Require().Equal([]uint64{processing}, jobIDs(jobs))

	_, err = s.keeper.GetJobsByStatus(s.f.Ctx, types.JobStatus(42))
	s.Require().ErrorIs(err, types.ErrInvalidJob)

	jobs, err = s.keeper.GetJobsByRequester(s.f.Ctx, requesterAddr)
	s.Require().NoError(err)
	s.Require().Equal([]uint64{pending, completed, processing, cancelled}, jobIDs(jobs))

	jobs, err = s.keeper.GetJobsByRequester(s.f.Ctx, rivalAddr)
	s.Require().NoError(err)
	s.Require().Empty(jobs)

	jobs, err = s.keeper.GetCompletedJobsWithModels(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)
	s.Require().Equal("QmModel", jobs[0].ModelHash)

	stats, err := s.keeper.GetStats(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(uint64(5), stats.TotalJobs)
	s.Require().Equal(uint64(2), stats.JobsByStatus[types.JobStatusPending.String()])
	s.Require().Equal(uint64(1), stats.JobsByStatus[types.JobStatusCompleted.String()])
	s.Require().Equal(uint64(1), stats.JobsByStatus[types.JobStatusCancelled.String()])
	s.Require().Equal(uint64(1), stats.TotalWorkers)
	s.Require().Equal(uint64(1), stats.ActiveWorkers)
	s.Require().Equal(math.NewInt(4*unit), stats.EscrowedReward)
	s.Require().Equal(math.NewInt(unit), stats.LockedStake)
}

func (s *KeeperTestSuite) TestWorkerQueries() {
	s.registerWorker(workerAddr, 10*unit)
	s.registerWorker(rivalAddr, unit)
	s.registerWorker(strangerAddr, unit)
	s.Require().NoError(s.keeper.DeactivateWorker(s.f.Ctx, strangerAddr))

	for i := 0; i < 3; i++ {
		id := s.claimedJob(unit)
		_, err := s.keeper.SubmitResultSimple(s.f.Ctx, workerAddr, id, "QmModel", "QmProof")
		s.Require().NoError(err)
	}

	all, err := s.keeper.GetAllWorkers(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Require().Equal(workerAddr.String(), all[0].Address)
	s.Require().Equal(strangerAddr.String(), all[2].Address)

	active, err := s.keeper.GetActiveWorkers(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Require().Equal(uint64(3), s.keeper.GetWorkerCount(s.f.Ctx))

	history, err := s.keeper.GetWorkerJobHistory(s.f.Ctx, workerAddr)
	s.Require().NoError(err)
	s.Require().Equal([]uint64{0, 1, 2}, history)

	history, err = s.keeper.GetWorkerJobHistory(s.f.Ctx, rivalAddr)
	s.Require().NoError(err)
	s.Require().Empty(history)

	_, err = s.keeper.GetWorkerJobHistory(s.f.Ctx, requesterAddr)
	s.Require().ErrorIs(err, types.ErrWorkerNotFound)

	// Priority is the completed job count; inactive or unknown sorts last.
	priority, err := s.keeper.GetWorkerPriority(s.f.Ctx, workerAddr)
	s.Require().NoError(err)
	s.Require().Equal(uint64(3), priority)
	priority, err = s.keeper.GetWorkerPriority(s.f.Ctx, rivalAddr)
	s.Require().NoError(err)
	s.Require().Zero(priority)
	priority, err = s.keeper.GetWorkerPriority(s.f.Ctx, strangerAddr)
	s.Require().NoError(err)
	s.Require().Equal(types.PriorityInactive, priority)
	priority, err = s.keeper.GetWorkerPriority(s.f.Ctx, requesterAddr)
	s.Require().NoError(err)
	s.Require().Equal(types.PriorityInactive, priority)
}

// TestQueriesDoNotTakeGuard runs reads while the guard is held.
func (s *KeeperTestSuite) TestQueriesDoNotTakeGuard() {
	id := s.createJob(unit)
	s.Require().NoError(s.keeper.Guard().Enter("test"))
	defer s.keeper.Guard().Exit()

	_, err := s.keeper.GetJob(s.f.Ctx, id)
	s.Require().NoError(err)
	_, err = s.keeper.GetPendingJobs(s.f.Ctx)
	s.Require().NoError(err)
	_, err = s.keeper.GetStats(s.f.Ctx)
	s.Require().NoError(err)
	_, err = s.keeper.IsJobExpired(s.f.Ctx, id)
	s.Require().NoError(err)
}
