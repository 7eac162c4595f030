package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// collect moves amount from an account into the module account.
func (k Keeper) collect(ctx sdk.Context, params types.Params, from sdk.AccAddress, amount math.Int) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, from, types.ModuleName, params.Coins(amount)); err != nil {
		return types.ErrTransferFailed.Wrapf("collect %s%s from %s: %s", amount, params.Denom, from, err)
	}
	return nil
}

// pay moves amount from the module account to an account. It must be the
// last step of an entry point, after every state mutation has been written.
func (k Keeper) pay(ctx sdk.Context, params types.Params, to sdk.AccAddress, amount math.Int) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, to, params.Coins(amount)); err != nil {
		return types.ErrTransferFailed.Wrapf("pay %s%s to %s: %s", amount, params.Denom, to, err)
	}
	return nil
}
