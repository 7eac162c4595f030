package keeper

import (
	"context"

	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// VerifierRouter resolves the verifier name stored in state to an implementation.
type VerifierRouter interface {
	Get(name string) (types.ProofVerifier, bool)
}

// Keeper of the marketplace store
type Keeper struct {
	storeKey   storetypes.StoreKey
	bankKeeper types.BankKeeper
	verifiers  VerifierRouter

	// guard is shared by every copy of the keeper so a nested entry point
	// invoked from a bank callback sees the flag set by its caller.
	guard *ReentrancyGuard

	metrics *MarketplaceMetrics
}

type kvStoreProvider interface {
	KVStore(key storetypes.StoreKey) storetypes.KVStore
}

// NewKeeper creates a new marketplace Keeper instance
func NewKeeper(
	key storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	verifiers VerifierRouter,
) *Keeper {
	return &Keeper{
		storeKey:   key,
		bankKeeper: bankKeeper,
		verifiers:  verifiers,
		guard:      NewReentrancyGuard(),
		metrics:    NewMarketplaceMetrics(),
	}
}

// getStore returns the KVStore for the marketplace module
func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	if provider, ok := ctx.(kvStoreProvider); ok {
		return provider.KVStore(k.storeKey)
	}

	unwrapped := sdk.UnwrapSDKContext(ctx)
	return unwrapped.KVStore(k.storeKey)
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

// ModuleAddress is the account holding escrowed rewards, stakes and the treasury.
func (k Keeper) ModuleAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(types.ModuleName)
}

// Guard exposes the reentrancy guard, mainly for tests and diagnostics.
func (k Keeper) Guard() *ReentrancyGuard {
	return k.guard
}
