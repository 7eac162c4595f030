// Package app hosts the Oblivion devnet state machine: a commit multistore with
// the auth, bank and marketplace stores mounted, the keepers wired over it and
// a single-writer transaction pipeline that commits one block per transaction.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
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
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"

	"github.com/oblivion-chain/oblivion/app/telemetry"
	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/keeper"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

// FaucetTxType is the receipt type recorded for faucet grants.
const FaucetTxType = "faucet"

var (
	// ErrHalted is returned for every write once an invariant has been broken.
	ErrHalted = errors.New("chain halted")
	// ErrNotInitialized is returned for writes before InitChain.
	ErrNotInitialized = errors.New("chain not initialized")
	// ErrFaucetDisabled is returned by Fund when the faucet is turned off.
	ErrFaucetDisabled = errors.New("faucet disabled")
)

// ReceiptSink receives the receipt of every committed transaction.
type ReceiptSink interface {
	Publish(ctx context.Context, receipt *tx.Receipt) error
}

// Option customises an App.
type Option func(*App)

// WithClock sets the source of block times.
func WithClock(clock func() time.Time) Option {
	return func(a *App) { a.clock = clock }
}

// WithVerifiers replaces the verifier router. The router must be populated
// before InitChain.
func WithVerifiers(r *verifier.Router) Option {
	return func(a *App) { a.Verifiers = r }
}

// WithReceiptSink publishes committed receipts to sink.
func WithReceiptSink(sink ReceiptSink) Option {
	return func(a *App) { a.sink = sink }
}

// WithTxMetrics records transaction metrics through tm.
func WithTxMetrics(tm *telemetry.TxMetrics) Option {
	return func(a *App) { a.txMetrics = tm }
}

// App is the devnet node state machine.
type App struct {
	mu     sync.RWMutex
	logger log.Logger
	cfg    Config
	db     dbm.DB

	cms  storetypes.CommitMultiStore
	keys map[string]*storetypes.KVStoreKey
	cdc  codec.Codec

	AccountKeeper     authkeeper.AccountKeeper
	BankKeeper        bankkeeper.BaseKeeper
	MarketplaceKeeper *keeper.Keeper
	Verifiers         *verifier.Router

	handler       keeper.Handler
	clock         func() time.Time
	sink          ReceiptSink
	txMetrics     *telemetry.TxMetrics
	lastBlockTime time.Time
	halted        error
}

// New builds the node over db and loads the latest committed version.
func New(logger log.Logger, db dbm.DB, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		logger: logger.With("module", "app"),
		cfg:    cfg,
		db:     db,
		clock:  time.Now,
		keys: storetypes.NewKVStoreKeys(
			authtypes.StoreKey,
			banktypes.StoreKey,
			types.StoreKey,
		),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Verifiers == nil {
		a.Verifiers = verifier.NewRouter().Register(verifier.NameMock, verifier.MockVerifier{})
	}

	a.cms = store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	for _, key := range a.keys {
		a.cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := a.cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	registry := codectypes.NewInterfaceRegistry()
	authtypes.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	cryptocodec.RegisterInterfaces(registry)
	a.cdc = codec.NewProtoCodec(registry)

	authority := authtypes.NewModuleAddress(govtypes.ModuleName).String()
	prefix := sdk.GetConfig().GetBech32AccountAddrPrefix()
	maccPerms := map[string][]string{
		types.ModuleName: nil,
		FaucetModuleName: {authtypes.Minter},
	}

	a.AccountKeeper = authkeeper.NewAccountKeeper(
		a.cdc,
		runtime.NewKVStoreService(a.keys[authtypes.StoreKey]),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(prefix),
		prefix,
		authority,
	)
	a.BankKeeper = bankkeeper.NewBaseKeeper(
		a.cdc,
		runtime.NewKVStoreService(a.keys[banktypes.StoreKey]),
		a.AccountKeeper,
		map[string]bool{authtypes.NewModuleAddress(types.ModuleName).String(): true},
		authority,
		logger,
	)
	a.MarketplaceKeeper = keeper.NewKeeper(a.keys[types.StoreKey], a.BankKeeper, a.Verifiers)
	a.handler = keeper.NewHandler(*a.MarketplaceKeeper)

	if a.Height() > 0 {
		a.lastBlockTime = a.clock().UTC()
	}
	return a, nil
}

// ChainID returns the configured chain id.
func (a *App) ChainID() string {
	return a.cfg.ChainID
}

// Height returns the last committed block height.
func (a *App) Height() int64 {
	return a.cms.LastCommitID().Version
}

// Halted returns the error that halted the chain, if any.
func (a *App) Halted() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.halted
}

// Close releases the underlying database.
func (a *App) Close() error {
	return a.db.Close()
}

// InitChain funds the genesis accounts, imports the marketplace state and
// commits the first block.
func (a *App) InitChain(goCtx context.Context, doc *GenesisDoc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Height() != 0 {
		return fmt.Errorf("chain already initialized at height %d", a.Height())
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	if doc.ChainID != a.cfg.ChainID {
		return fmt.Errorf("genesis chain id %q does not match %q", doc.ChainID, a.cfg.ChainID)
	}

	ctx, write := a.blockContext(goCtx, 1, doc.GenesisTime.UTC())
	for _, acc := range doc.Accounts {
		addr, err := sdk.AccAddressFromBech32(acc.Address)
		if err != nil {
			return err
		}
		if err := a.mint(ctx, addr, acc.Coins); err != nil {
			return fmt.Errorf("failed to fund %s: %w", acc.Address, err)
		}
	}

	// Funds held by the marketplace are minted into its module account so the
	// imported state is fully backed.
	if backing := genesisBacking(doc.Marketplace); backing.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(doc.Marketplace.Params.Denom, backing))
		if err := a.BankKeeper.MintCoins(ctx, FaucetModuleName, coins); err != nil {
			return err
		}
		if err := a.BankKeeper.SendCoinsFromModuleToModule(ctx, FaucetModuleName, types.ModuleName, coins); err != nil {
			return err
		}
	}
	if err := a.MarketplaceKeeper.InitGenesis(ctx, *doc.Marketplace); err != nil {
		return err
	}

	write()
	a.commit(ctx)
	if err := a.halted; err != nil {
		return err
	}
	a.logger.Info("chain initialized", "chain_id", doc.ChainID, "accounts", len(doc.Accounts))
	return nil
}

// genesisBacking sums the funds the marketplace module account must hold for gs.
func genesisBacking(gs *types.GenesisState) math.Int {
	total := math.ZeroInt()
	if !gs.Treasury.IsNil() {
		total = total.Add(gs.Treasury)
	}
	for _, job := range gs.Jobs {
		if !job.Status.IsTerminal() {
			total = total.Add(job.Reward)
		}
		if job.Status == types.JobStatusProcessing {
			total = total.Add(job.Stake)
		}
	}
	for _, w := range gs.Workers {
		total = total.Add(w.Stake)
	}
	return total
}

// DeliverTx verifies env, executes its message and commits the result as a
// new block. Transactions rejected before execution (bad signature, unknown
// account, wrong sequence) return a failed receipt without committing. Once a
// message executes, the sender's sequence is committed whether it succeeds or
// fails.
func (a *App) DeliverTx(goCtx context.Context, env *tx.Envelope) (*tx.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted != nil {
		return nil, a.halted
	}
	if a.Height() == 0 {
		return nil, ErrNotInitialized
	}

	start := time.Now()
	height := a.Height() + 1
	goCtx, span := telemetry.StartTxSpan(goCtx, env.Type, env.Signer, height)
	defer span.End()

	receipt := &tx.Receipt{
		TxHash: env.Hash(),
		Height: a.Height(),
		Type:   env.Type,
		Signer: env.Signer,
		Events: []tx.Event{},
	}

	ctx, write := a.blockContext(goCtx, height, a.nextBlockTime())
	receipt.Time = ctx.BlockTime()

	verified, err := a.ante(ctx, env)
	if err != nil {
		receipt.SetError(err)
		telemetry.RecordError(span, err)
		a.recordTx(goCtx, env.Type, start, false)
		a.logger.Debug("tx rejected", "hash", env.ShortHash(), "err", err)
		return receipt, nil
	}

	res, err := a.handler(ctx, verified.Msg)
	if err != nil {
		receipt.SetError(err)
		telemetry.RecordError(span, err)
	} else if res != nil {
		bz, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		receipt.Result = bz
	}
	receipt.Events = tx.FromSDKEvents(ctx.EventManager().Events())

	write()
	a.commit(ctx)
	receipt.Height = a.Height()

	telemetry.FinishTxSpan(span, receipt.Codespace, receipt.Code, receipt.Log)
	a.recordTx(goCtx, env.Type, start, receipt.IsOK())
	a.publish(goCtx, receipt)

	a.logger.Info("tx committed",
		"hash", env.ShortHash(),
		"type", env.Type,
		"height", receipt.Height,
		"code", receipt.Code,
	)
	return receipt, nil
}

// ante authenticates the envelope and consumes the signer's sequence.
func (a *App) ante(ctx sdk.Context, env *tx.Envelope) (*tx.Verified, error) {
	verified, err := env.Verify(a.cfg.ChainID)
	if err != nil {
		return nil, err
	}

	acc := a.AccountKeeper.GetAccount(ctx, verified.Signer)
	if acc == nil {
		return nil, sdkerrors.ErrUnknownAddress.Wrapf("account %s does not exist", verified.Signer)
	}
	if env.Sequence != acc.GetSequence() {
		return nil, sdkerrors.ErrWrongSequence.Wrapf(
			"account sequence mismatch, expected %d, got %d", acc.GetSequence(), env.Sequence,
		)
	}
	if acc.GetPubKey() == nil {
		if err := acc.SetPubKey(verified.PubKey); err != nil {
			return nil, sdkerrors.ErrInvalidPubKey.Wrap(err.Error())
		}
	}
	if err := acc.SetSequence(acc.GetSequence() + 1); err != nil {
		return nil, err
	}
	a.AccountKeeper.SetAccount(ctx, acc)
	return verified, nil
}

// Fund mints amount of the marketplace denom to addr through the faucet
// module account and commits it as a block.
func (a *App) Fund(goCtx context.Context, addr sdk.AccAddress, amount math.Int) (*tx.Receipt, error) {
	if !a.cfg.FaucetEnabled {
		return nil, ErrFaucetDisabled
	}
	if amount.IsNil() || !amount.IsPositive() {
		return nil, sdkerrors.ErrInvalidCoins.Wrap("faucet amount must be positive")
	}
	if amount.GT(math.NewInt(a.cfg.FaucetLimit)) {
		return nil, sdkerrors.ErrInvalidRequest.Wrapf("faucet amount exceeds limit %d", a.cfg.FaucetLimit)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.halted != nil {
		return nil, a.halted
	}
	if a.Height() == 0 {
		return nil, ErrNotInitialized
	}

	height := a.Height() + 1
	ctx, write := a.blockContext(goCtx, height, a.nextBlockTime())
	params, err := a.MarketplaceKeeper.GetParams(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.mint(ctx, addr, sdk.NewCoins(sdk.NewCoin(params.Denom, amount))); err != nil {
		return nil, err
	}

	write()
	a.commit(ctx)
	receipt := &tx.Receipt{
		TxHash: fmt.Sprintf("FAUCET-%d", a.Height()),
		Height: a.Height(),
		Time:   ctx.BlockTime(),
		Type:   FaucetTxType,
		Signer: addr.String(),
		Events: tx.FromSDKEvents(ctx.EventManager().Events()),
	}
	a.publish(goCtx, receipt)
	a.logger.Info("faucet grant", "recipient", addr.String(), "amount", amount.String())
	return receipt, nil
}

func (a *App) mint(ctx sdk.Context, addr sdk.AccAddress, coins sdk.Coins) error {
	if coins.IsZero() {
		return nil
	}
	if err := a.BankKeeper.MintCoins(ctx, FaucetModuleName, coins); err != nil {
		return err
	}
	if a.AccountKeeper.GetAccount(ctx, addr) == nil {
		a.AccountKeeper.SetAccount(ctx, a.AccountKeeper.NewAccountWithAddress(ctx, addr))
	}
	return a.BankKeeper.SendCoinsFromModuleToAccount(ctx, FaucetModuleName, addr, coins)
}

// View runs fn against a read-only snapshot of the last committed state. The
// snapshot's block time is the time the next block would carry.
func (a *App) View(fn func(ctx sdk.Context, k *keeper.Keeper) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ctx, _ := a.blockContext(context.Background(), a.Height(), a.nextBlockTime())
	return fn(ctx, a.MarketplaceKeeper)
}

// Account returns the auth and bank view of addr. Unknown addresses report a
// zero sequence and no balance.
func (a *App) Account(addr sdk.AccAddress) (tx.Account, error) {
	out := tx.Account{Address: addr.String(), Balance: sdk.NewCoins()}
	err := a.View(func(ctx sdk.Context, _ *keeper.Keeper) error {
		if acc := a.AccountKeeper.GetAccount(ctx, addr); acc != nil {
			out.AccountNumber = acc.GetAccountNumber()
			out.Sequence = acc.GetSequence()
		}
		out.Balance = a.BankKeeper.GetAllBalances(ctx, addr)
		return nil
	})
	return out, err
}

// ExportGenesis exports the current state as a genesis document. Module
// account balances are omitted; InitChain mints the marketplace backing.
func (a *App) ExportGenesis() (*GenesisDoc, error) {
	doc := &GenesisDoc{ChainID: a.cfg.ChainID, Accounts: []GenesisAccount{}}
	err := a.View(func(ctx sdk.Context, k *keeper.Keeper) error {
		doc.GenesisTime = ctx.BlockTime()
		gs, err := k.ExportGenesis(ctx)
		if err != nil {
			return err
		}
		doc.Marketplace = gs

		moduleAddrs := map[string]bool{
			authtypes.NewModuleAddress(types.ModuleName).String(): true,
			authtypes.NewModuleAddress(FaucetModuleName).String(): true,
		}
		a.BankKeeper.IterateAllBalances(ctx, func(addr sdk.AccAddress, coin sdk.Coin) bool {
			if moduleAddrs[addr.String()] {
				return false
			}
			n := len(doc.Accounts)
			if n > 0 && doc.Accounts[n-1].Address == addr.String() {
				doc.Accounts[n-1].Coins = doc.Accounts[n-1].Coins.Add(coin)
			} else {
				doc.Accounts = append(doc.Accounts, GenesisAccount{Address: addr.String(), Coins: sdk.NewCoins(coin)})
			}
			return false
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// blockContext returns a context over a cache of the committed state and the
// function that writes the cache back.
func (a *App) blockContext(goCtx context.Context, height int64, blockTime time.Time) (sdk.Context, func()) {
	cache := a.cms.CacheMultiStore()
	header := cmtproto.Header{
		ChainID: a.cfg.ChainID,
		Height:  height,
		Time:    blockTime,
	}
	ctx := sdk.NewContext(cache, header, false, a.logger).
		WithContext(goCtx).
		WithEventManager(sdk.NewEventManager())
	return ctx, cache.Write
}

// nextBlockTime never moves backwards.
func (a *App) nextBlockTime() time.Time {
	now := a.clock().UTC()
	if now.Before(a.lastBlockTime) {
		return a.lastBlockTime
	}
	return now
}

// commit persists the written cache and checks invariants against the new
// state. A broken invariant halts the chain.
func (a *App) commit(ctx sdk.Context) {
	id := a.cms.Commit()
	a.lastBlockTime = ctx.BlockTime()
	if a.txMetrics != nil {
		a.txMetrics.RecordBlockHeight(ctx.Context(), id.Version)
	}

	if !a.cfg.InvariantCheck {
		return
	}
	check, _ := a.blockContext(ctx.Context(), id.Version, ctx.BlockTime())
	if msg, broken := keeper.AllInvariants(*a.MarketplaceKeeper)(check); broken {
		a.halted = fmt.Errorf("%w at height %d: %s", ErrHalted, id.Version, msg)
		a.logger.Error("invariant broken, halting", "height", id.Version, "invariant", msg)
	}
}

func (a *App) recordTx(ctx context.Context, txType string, start time.Time, success bool) {
	if a.txMetrics == nil {
		return
	}
	a.txMetrics.RecordTransaction(ctx, txType, time.Since(start), success)
}

func (a *App) publish(ctx context.Context, receipt *tx.Receipt) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Publish(ctx, receipt); err != nil {
		a.logger.Error("failed to publish receipt", "hash", receipt.TxHash, "err", err)
	}
}
