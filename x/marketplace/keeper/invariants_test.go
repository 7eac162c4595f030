package keeper_test

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/keeper"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

func (s *KeeperTestSuite) TestInvariantsHoldOnFreshState() {
	for name, inv := range map[string]sdk.Invariant{
		"module-balance": keeper.ModuleBalanceInvariant(*s.keeper),
		"job-state":      keeper.JobStateInvariant(*s.keeper),
		"worker-state":   keeper.WorkerStateInvariant(*s.keeper),
	} {
		msg, broken := inv(s.f.Ctx)
		s.Require().False(broken, "%s: %s", name, msg)
	}
}

// TestModuleBalanceInvariantDetectsLeak sends coins to the module account
// outside of any entry point.
func (s *KeeperTestSuite) TestModuleBalanceInvariantDetectsLeak() {
	s.createJob(unit)
	coins := sdk.NewCoins(sdk.NewCoin(types.DefaultDenom, math.NewInt(7)))
	s.Require().NoError(s.f.BankKeeper.SendCoinsFromAccountToModule(s.f.Ctx, strangerAddr, types.ModuleName, coins))

	msg, broken := keeper.ModuleBalanceInvariant(*s.keeper)(s.f.Ctx)
	s.Require().True(broken)
	s.Require().Contains(msg, "module balance")

	_, broken = keeper.JobStateInvariant(*s.keeper)(s.f.Ctx)
	s.Require().False(broken)
}

type invariantRegistry struct {
	routes []string
}

func (r *invariantRegistry) RegisterRoute(moduleName, route string, _ sdk.Invariant) {
	r.routes = append(r.routes, moduleName+"/"+route)
}

func (s *KeeperTestSuite) TestRegisterInvariants() {
	ir := &invariantRegistry{}
	keeper.RegisterInvariants(ir, *s.keeper)
	s.Require().Equal([]string{
		"marketplace/module-balance",
		"marketplace/job-state",
		"marketplace/worker-state",
	}, ir.routes)
}
