package keeper

import (
	"context"
	"math/big"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-chain/oblivion/x/marketplace/keeper"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

// FaucetName is the minting module account used to fund test accounts.
const FaucetName = "faucet"

// SendHook observes every bank transfer made through the fixture's bank keeper.
// Returning an error rejects the transfer.
type SendHook func(ctx context.Context, from, to sdk.AccAddress, amt sdk.Coins) error

// MarketplaceFixture bundles a marketplace keeper with the real auth and bank
// keepers backing it.
type MarketplaceFixture struct {
	Ctx           sdk.Context
	Keeper        *keeper.Keeper
	BankKeeper    bankkeeper.BaseKeeper
	AccountKeeper authkeeper.AccountKeeper
	Verifiers     *verifier.Router
	Owner         sdk.AccAddress

	// OnSend, when set, runs before every bank transfer.
	OnSend SendHook
}

// StubVerifier accepts a proof when it equals Accept. Calls counts invocations.
type StubVerifier struct {
	Accept []byte
	Err    error
	Calls  int
}

// Verify implements types.ProofVerifier.
func (s *StubVerifier) Verify(_ []*big.Int, proof []byte) (bool, error) {
	s.Calls++
	if s.Err != nil {
		return false, s.Err
	}
	return string(proof) == string(s.Accept), nil
}

// MarketplaceKeeper creates a marketplace keeper over an in-memory multistore,
// initialised from the default genesis with the given verifier registered
// under the default verifier name.
func MarketplaceKeeper(t testing.TB, proofVerifier types.ProofVerifier) *MarketplaceFixture {
	t.Helper()

	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	bankStoreKey := storetypes.NewKVStoreKey(banktypes.StoreKey)
	authStoreKey := storetypes.NewKVStoreKey(authtypes.StoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(bankStoreKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(authStoreKey, storetypes.StoreTypeIAVL, db)
	require.NoError(t, stateStore.LoadLatestVersion())

	registry := codectypes.NewInterfaceRegistry()
	banktypes.RegisterInterfaces(registry)
	authtypes.RegisterInterfaces(registry)
	cdc := codec.NewProtoCodec(registry)
	authority := authtypes.NewModuleAddress(govtypes.ModuleName)
	prefix := sdk.GetConfig().GetBech32AccountAddrPrefix()

	maccPerms := map[string][]string{
		types.ModuleName: nil,
		FaucetName:       {authtypes.Minter},
	}

	accountKeeper := authkeeper.NewAccountKeeper(
		cdc,
		runtime.NewKVStoreService(authStoreKey),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(prefix),
		prefix,
		authority.String(),
	)

	bankKeeper := bankkeeper.NewBaseKeeper(
		cdc,
		runtime.NewKVStoreService(bankStoreKey),
		accountKeeper,
		map[string]bool{},
		authority.String(),
		log.NewNopLogger(),
	)

	router := verifier.NewRouter().
		Register(types.DefaultVerifierName, proofVerifier).
		Register(verifier.NameMock, verifier.MockVerifier{})

	k := keeper.NewKeeper(storeKey, bankKeeper, router)

	header := cmtproto.Header{
		Height: 1,
		Time:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	ctx := sdk.NewContext(stateStore, header, false, log.NewNopLogger())
	ctx = ctx.WithContext(context.Background())

	f := &MarketplaceFixture{
		Ctx:           ctx,
		Keeper:        k,
		BankKeeper:    bankKeeper,
		AccountKeeper: accountKeeper,
		Verifiers:     router,
		Owner:         sdk.AccAddress([]byte("marketplace_owner___")),
	}
	bankKeeper.AppendSendRestriction(func(ctx context.Context, from, to sdk.AccAddress, amt sdk.Coins) (sdk.AccAddress, error) {
		if f.OnSend != nil {
			if err := f.OnSend(ctx, from, to, amt); err != nil {
				return nil, err
			}
		}
		return to, nil
	})

	require.NoError(t, k.InitGenesis(ctx, *types.DefaultGenesis(f.Owner.String())))
	return f
}

// Fund mints amount of the default denom to addr.
func (f *MarketplaceFixture) Fund(t testing.TB, addr sdk.AccAddress, amount int64) {
	t.Helper()
	coins := sdk.NewCoins(sdk.NewInt64Coin(types.DefaultDenom, amount))
	require.NoError(t, f.BankKeeper.MintCoins(f.Ctx, FaucetName, coins))
	require.NoError(t, f.BankKeeper.SendCoinsFromModuleToAccount(f.Ctx, FaucetName, addr, coins))
}

// Balance returns addr's balance of the default denom.
func (f *MarketplaceFixture) Balance(addr sdk.AccAddress) math.Int {
	return f.BankKeeper.GetBalance(f.Ctx, addr, types.DefaultDenom).Amount
}

// ModuleBalance returns the marketplace module account balance.
func (f *MarketplaceFixture) ModuleBalance() math.Int {
	return f.Balance(f.Keeper.ModuleAddress())
}

// Advance moves the block time forward by d.
func (f *MarketplaceFixture) Advance(d time.Duration) {
	f.Ctx = f.Ctx.WithBlockTime(f.Ctx.BlockTime().Add(d)).WithBlockHeight(f.Ctx.BlockHeight() + 1)
}
