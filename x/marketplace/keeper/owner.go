package keeper

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// requireOwner is the exact-match capability check for owner-only operations.
func (k Keeper) requireOwner(ctx context.Context, caller sdk.AccAddress) error {
	owner, err := k.GetOwner(ctx)
	if err != nil {
		return err
	}
	if !owner.Equals(caller) {
		return types.ErrUnauthorized.Wrapf("%s is not the owner", caller)
	}
	return nil
}

// TransferOwnership hands the owner capability to newOwner.
func (k Keeper) TransferOwnership(goCtx context.Context, caller, newOwner sdk.AccAddress) error {
	return k.execute(goCtx, types.TypeMsgTransferOwnership, func(ctx sdk.Context) error {
		if err := k.requireOwner(ctx, caller); err != nil {
			return err
		}
		if newOwner.Empty() {
			return types.ErrInvalidAddress.Wrap("new owner cannot be empty")
		}
		k.setOwner(ctx, newOwner)

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeOwnershipTransferred,
				sdk.NewAttribute(types.AttributeKeyOldOwner, caller.String()),
				sdk.NewAttribute(types.AttributeKeyNewOwner, newOwner.String()),
			),
		)
		k.Logger(ctx).Info("ownership transferred", "from", caller.String(), "to", newOwner.String())
		return nil
	})
}

// UpdateVerifier switches the proof verifier to a registered name.
func (k Keeper) UpdateVerifier(goCtx context.Context, caller sdk.AccAddress, name string) error {
	return k.execute(goCtx, types.TypeMsgUpdateVerifier, func(ctx sdk.Context) error {
		if err := k.requireOwner(ctx, caller); err != nil {
			return err
		}
		if _, ok := k.verifiers.Get(name); !ok {
			return types.ErrUnknownVerifier.Wrapf("verifier %q is not registered", name)
		}
		k.setVerifierName(ctx, name)

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeVerifierUpdated,
				sdk.NewAttribute(types.AttributeKeyVerifier, name),
			),
		)
		return nil
	})
}

// UpdateParams replaces the module params.
func (k Keeper) UpdateParams(goCtx context.Context, caller sdk.AccAddress, params types.Params) error {
	return k.execute(goCtx, types.TypeMsgUpdateParams, func(ctx sdk.Context) error {
		if err := k.requireOwner(ctx, caller); err != nil {
			return err
		}
		current, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		// Escrowed balances are denominated in the current denom.
		if params.Denom != current.Denom && k.GetJobCount(ctx) > 0 {
			return types.ErrInvalidParams.Wrap("denom cannot change once jobs exist")
		}
		if err := k.SetParams(ctx, params); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(types.EventTypeParamsUpdated),
		)
		return nil
	})
}

// WithdrawTreasury sends accrued forfeited stake to recipient.
func (k Keeper) WithdrawTreasury(goCtx context.Context, caller, recipient sdk.AccAddress, amount math.Int) error {
	return k.execute(goCtx, types.TypeMsgWithdrawTreasury, func(ctx sdk.Context) error {
		if err := k.requireOwner(ctx, caller); err != nil {
			return err
		}
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if amount.IsNil() || !amount.IsPositive() {
			return types.ErrInvalidAmount.Wrap("withdrawal must be positive")
		}
		treasury := k.GetTreasury(ctx)
		if amount.GT(treasury) {
			return types.ErrInsufficientTreasury.Wrapf("requested %s, treasury holds %s", amount, treasury)
		}
		if err := k.setTreasury(ctx, treasury.Sub(amount)); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeTreasuryWithdrawn,
				sdk.NewAttribute(types.AttributeKeyRecipient, recipient.String()),
				sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
			),
		)
		return k.pay(ctx, params, recipient, amount)
	})
}
