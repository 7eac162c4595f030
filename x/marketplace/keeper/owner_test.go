package keeper_test

import (
	"time"

	"cosmossdk.io/math"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

func (s *KeeperTestSuite) TestTransferOwnership() {
	s.Require().ErrorIs(s.keeper.TransferOwnership(s.f.Ctx, strangerAddr, strangerAddr), types.ErrUnauthorized)

	s.Require().NoError(s.keeper.TransferOwnership(s.f.Ctx, s.f.Owner, strangerAddr))
	owner, err := s.keeper.GetOwner(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(strangerAddr, owner)
	s.Require().True(s.hasEvent(types.EventTypeOwnershipTransferred))

	// The previous owner lost the capability.
	s.Require().ErrorIs(s.keeper.UpdateVerifier(s.f.Ctx, s.f.Owner, verifier.NameMock), types.ErrUnauthorized)
	s.Require().NoError(s.keeper.UpdateVerifier(s.f.Ctx, strangerAddr, verifier.NameMock))
}

func (s *KeeperTestSuite) TestUpdateVerifier() {
	s.Require().Equal(types.DefaultVerifierName, s.keeper.GetVerifierName(s.f.Ctx))

	s.Require().ErrorIs(s.keeper.UpdateVerifier(s.f.Ctx, s.f.Owner, "plonk"), types.ErrUnknownVerifier)
	s.Require().Equal(types.DefaultVerifierName, s.keeper.GetVerifierName(s.f.Ctx))

	s.Require().NoError(s.keeper.UpdateVerifier(s.f.Ctx, s.f.Owner, verifier.NameMock))
	s.Require().Equal(verifier.NameMock, s.keeper.GetVerifierName(s.f.Ctx))
	s.Require().True(s.hasEvent(types.EventTypeVerifierUpdated))
}

func (s *KeeperTestSuite) TestUpdateParams() {
	params := types.DefaultParams()
	params.InferenceTimeout = 2 * time.Hour
	params.MinStake = math.NewInt(5)

	s.Require().ErrorIs(s.keeper.UpdateParams(s.f.Ctx, strangerAddr, params), types.ErrUnauthorized)
	s.Require().NoError(s.keeper.UpdateParams(s.f.Ctx, s.f.Owner, params))

	got, err := s.keeper.GetParams(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(2*time.Hour, got.InferenceTimeout)
	s.Require().Equal(math.NewInt(5), got.MinStake)

	bad := params
	bad.InferenceTimeout = 0
	s.Require().Error(s.keeper.UpdateParams(s.f.Ctx, s.f.Owner, bad))

	s.createJob(unit)
	changed := params
	changed.Denom = "uatom"
	s.Require().ErrorIs(s.keeper.UpdateParams(s.f.Ctx, s.f.Owner, changed), types.ErrInvalidParams)
}

func (s *KeeperTestSuite) TestWithdrawTreasury() {
	s.registerWorker(workerAddr, unit)
	id := s.claimedJob(unit)
	s.Require().NoError(s.keeper.SlashWorker(s.f.Ctx, s.f.Owner, id))
	s.Require().Equal(math.NewInt(unit/2), s.keeper.GetTreasury(s.f.Ctx))

	s.Require().ErrorIs(
		s.keeper.WithdrawTreasury(s.f.Ctx, strangerAddr, strangerAddr, math.NewInt(1)),
		types.ErrUnauthorized,
	)
	s.Require().ErrorIs(
		s.keeper.WithdrawTreasury(s.f.Ctx, s.f.Owner, strangerAddr, math.NewInt(unit)),
		types.ErrInsufficientTreasury,
	)

	before := s.f.Balance(strangerAddr)
	s.Require().NoError(s.keeper.WithdrawTreasury(s.f.Ctx, s.f.Owner, strangerAddr, math.NewInt(unit/4)))
	s.Require().Equal(before.AddRaw(unit/4), s.f.Balance(strangerAddr))
	s.Require().Equal(math.NewInt(unit/4), s.keeper.GetTreasury(s.f.Ctx))
	s.Require().True(s.hasEvent(types.EventTypeTreasuryWithdrawn))
	s.requireInvariants()
}
