package keeper_test

import (
	"cosmossdk.io/math"

	"github.com/oblivion-chain/oblivion/x/marketplace/keeper"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func (s *KeeperTestSuite) TestMsgServerFlow() {
	ms := keeper.NewMsgServerImpl(*s.keeper)

	_, err := ms.RegisterWorker(s.f.Ctx, &types.MsgRegisterWorker{
		Worker: workerAddr.String(),
		NodeID: "gpu-1",
		Stake:  math.NewInt(unit),
	})
	s.Require().NoError(err)

	created, err := ms.CreateJob(s.f.Ctx, &types.MsgCreateJob{
		Requester:  requesterAddr.String(),
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeInference,
		Reward:     math.NewInt(unit),
	})
	s.Require().NoError(err)

	_, err = ms.ClaimJob(s.f.Ctx, &types.MsgClaimJob{Worker: workerAddr.String(), JobID: created.JobID})
	s.Require().NoError(err)

	res, err := ms.SubmitResult(s.f.Ctx, &types.MsgSubmitResult{
		Worker:       workerAddr.String(),
		JobID:        created.JobID,
		ModelHash:    "QmModel",
		ProofHash:    "QmProof",
		Proof:        []byte("valid-proof"),
		PublicInputs: []string{"0", "12345"},
	})
	s.Require().NoError(err)
	s.Require().Equal(math.NewInt(unit+unit/2), res.Payout)
}

func (s *KeeperTestSuite) TestMsgServerRejectsInvalidMessages() {
	ms := keeper.NewMsgServerImpl(*s.keeper)

	_, err := ms.CreateJob(s.f.Ctx, &types.MsgCreateJob{
		Requester:  "not-bech32",
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeInference,
		Reward:     math.NewInt(unit),
	})
	s.Require().ErrorIs(err, types.ErrInvalidAddress)

	_, err = ms.TransferOwnership(s.f.Ctx, &types.MsgTransferOwnership{
		Owner:    s.f.Owner.String(),
		NewOwner: "",
	})
	s.Require().Error(err)

	_, err = ms.WithdrawStake(s.f.Ctx, &types.MsgWithdrawStake{Worker: workerAddr.String(), Amount: math.ZeroInt()})
	s.Require().ErrorIs(err, types.ErrInvalidAmount)
	s.Require().Zero(s.keeper.GetJobCount(s.f.Ctx))
}

func (s *KeeperTestSuite) TestHandlerDispatch() {
	handler := keeper.NewHandler(*s.keeper)

	res, err := handler(s.f.Ctx, &types.MsgCreateJob{
		Requester:  requesterAddr.String(),
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeTraining,
		Reward:     math.NewInt(unit),
	})
	s.Require().NoError(err)
	s.Require().Equal(uint64(0), res.(*types.MsgCreateJobResponse).JobID)

	_, err = handler(s.f.Ctx, &types.MsgCancelJob{Requester: strangerAddr.String(), JobID: 0})
	s.Require().ErrorIs(err, types.ErrNotRequester)

	_, err = handler(s.f.Ctx, &types.MsgUpdateVerifier{Owner: s.f.Owner.String(), Verifier: "mock"})
	s.Require().NoError(err)
	s.Require().Equal("mock", s.keeper.GetVerifierName(s.f.Ctx))
}
