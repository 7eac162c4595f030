package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/oblivion-chain/oblivion/app"
	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/keeper"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

const unit = 1_000_000

type account struct {
	priv *secp256k1.PrivKey
	addr sdk.AccAddress
	seq  uint64
}

func newAccount() *account {
	priv := secp256k1.GenPrivKey()
	return &account{priv: priv, addr: sdk.AccAddress(priv.PubKey().Address())}
}

type recordingSink struct {
	mu       sync.Mutex
	receipts []*tx.Receipt
}

func (s *recordingSink) Publish(_ context.Context, r *tx.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

type AppTestSuite struct {
	suite.Suite

	app   *app.App
	now   time.Time
	sink  *recordingSink
	owner *account
	alice *account
	bob   *account
	carol *account
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func (s *AppTestSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.sink = &recordingSink{}
	s.owner, s.alice, s.bob, s.carol = newAccount(), newAccount(), newAccount(), newAccount()

	a, err := app.New(log.NewNopLogger(), dbm.NewMemDB(), app.DefaultConfig(),
		app.WithClock(func() time.Time { return s.now }),
		app.WithReceiptSink(s.sink),
	)
	s.Require().NoError(err)
	s.app = a

	doc := app.NewDefaultGenesis(app.DefaultChainID, s.owner.addr, s.now)
	doc.Marketplace.Verifier = verifier.NameMock
	for _, acc := range []*account{s.owner, s.alice, s.bob} {
		doc.Accounts = append(doc.Accounts, app.GenesisAccount{
			Address: acc.addr.String(),
			Coins:   sdk.NewCoins(sdk.NewInt64Coin(types.DefaultDenom, 100*unit)),
		})
	}
	s.Require().NoError(s.app.InitChain(context.Background(), doc))
	s.Require().Equal(int64(1), s.app.Height())
}

func (s *AppTestSuite) deliver(acc *account, msg types.Msg) *tx.Receipt {
	env, err := tx.Sign(acc.priv, app.DefaultChainID, acc.seq, msg)
	s.Require().NoError(err)
	receipt, err := s.app.DeliverTx(context.Background(), env)
	s.Require().NoError(err)
	acc.seq++
	return receipt
}

func (s *AppTestSuite) balance(acc *account) math.Int {
	info, err := s.app.Account(acc.addr)
	s.Require().NoError(err)
	return info.Balance.AmountOf(types.DefaultDenom)
}

func (s *AppTestSuite) job(id uint64) types.Job {
	var job types.Job
	s.Require().NoError(s.app.View(func(ctx sdk.Context, k *keeper.Keeper) error {
		var err error
		job, err = k.GetJob(ctx, id)
		return err
	}))
	return job
}

func (s *AppTestSuite) TestSignedLifecycle() {
	r := s.deliver(s.bob, &types.MsgRegisterWorker{Worker: s.bob.addr.String(), NodeID: "gpu-1", Stake: math.NewInt(unit)})
	s.Require().True(r.IsOK(), r.Log)

	r = s.deliver(s.alice, &types.MsgCreateJob{
		Requester:  s.alice.addr.String(),
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeInference,
		Reward:     math.NewInt(unit),
	})
	s.Require().True(r.IsOK(), r.Log)
	var created types.MsgCreateJobResponse
	s.Require().NoError(json.Unmarshal(r.Result, &created))
	s.Require().Equal(uint64(0), created.JobID)
	jobID, ok := r.Find(types.EventTypeJobCreated, types.AttributeKeyJobID)
	s.Require().True(ok)
	s.Require().Equal("0", jobID)

	s.now = s.now.Add(time.Minute)
	r = s.deliver(s.bob, &types.MsgClaimJob{Worker: s.bob.addr.String(), JobID: 0})
	s.Require().True(r.IsOK(), r.Log)
	s.Require().Equal(types.JobStatusProcessing, s.job(0).Status)
	s.Require().True(s.job(0).ClaimedAt.Equal(s.now))

	r = s.deliver(s.bob, &types.MsgSubmitResult{
		Worker:       s.bob.addr.String(),
		JobID:        0,
		ModelHash:    "QmModel",
		ProofHash:    "QmProof",
		Proof:        []byte("proof"),
		PublicInputs: []string{"0", "1"},
	})
	s.Require().True(r.IsOK(), r.Log)
	s.Require().Equal(types.JobStatusCompleted, s.job(0).Status)

	s.Require().Equal(math.NewInt(99*unit), s.balance(s.alice))
	s.Require().Equal(math.NewInt(99*unit+unit+unit/2), s.balance(s.bob))
	s.Require().Equal(int64(5), s.app.Height())
	s.Require().Len(s.sink.receipts, 4)
	s.Require().NoError(s.app.Halted())
}

func (s *AppTestSuite) TestFailedMessageConsumesSequence() {
	r := s.deliver(s.alice, &types.MsgCancelJob{Requester: s.alice.addr.String(), JobID: 7})
	s.Require().False(r.IsOK())
	s.Require().Equal(types.ModuleName, r.Codespace)
	s.Require().Equal(types.ErrJobNotFound.ABCICode(), r.Code)
	s.Require().Equal(int64(2), r.Height)

	info, err := s.app.Account(s.alice.addr)
	s.Require().NoError(err)
	s.Require().Equal(uint64(1), info.Sequence)
}

func (s *AppTestSuite) TestAnteRejections() {
	msg := &types.MsgCancelJob{Requester: s.alice.addr.String(), JobID: 0}

	env, err := tx.Sign(s.alice.priv, app.DefaultChainID, 5, msg)
	s.Require().NoError(err)
	r, err := s.app.DeliverTx(context.Background(), env)
	s.Require().NoError(err)
	s.Require().Equal(sdkerrors.ErrWrongSequence.ABCICode(), r.Code)

	env, err = tx.Sign(s.carol.priv, app.DefaultChainID, 0, &types.MsgCancelJob{Requester: s.carol.addr.String()})
	s.Require().NoError(err)
	r, err = s.app.DeliverTx(context.Background(), env)
	s.Require().NoError(err)
	s.Require().Equal(sdkerrors.ErrUnknownAddress.ABCICode(), r.Code)

	env, err = tx.Sign(s.alice.priv, "other-chain", 0, msg)
	s.Require().NoError(err)
	r, err = s.app.DeliverTx(context.Background(), env)
	s.Require().NoError(err)
	s.Require().False(r.IsOK())

	// nothing was committed
	s.Require().Equal(int64(1), s.app.Height())
	s.Require().Empty(s.sink.receipts)
	info, err := s.app.Account(s.alice.addr)
	s.Require().NoError(err)
	s.Require().Zero(info.Sequence)
}

func (s *AppTestSuite) TestConcurrentClaimsHaveOneWinner() {
	s.Require().True(s.deliver(s.bob, &types.MsgRegisterWorker{
		Worker: s.bob.addr.String(), NodeID: "gpu-1", Stake: math.NewInt(unit),
	}).IsOK())
	s.Require().True(s.deliver(s.owner, &types.MsgRegisterWorker{
		Worker: s.owner.addr.String(), NodeID: "gpu-2", Stake: math.NewInt(unit),
	}).IsOK())
	s.Require().True(s.deliver(s.alice, &types.MsgCreateJob{
		Requester:  s.alice.addr.String(),
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeTraining,
		Reward:     math.NewInt(unit),
	}).IsOK())

	var wg sync.WaitGroup
	receipts := make([]*tx.Receipt, 2)
	for i, acc := range []*account{s.bob, s.owner} {
		env, err := tx.Sign(acc.priv, app.DefaultChainID, acc.seq, &types.MsgClaimJob{Worker: acc.addr.String(), JobID: 0})
		s.Require().NoError(err)
		wg.Add(1)
		go func(i int, env *tx.Envelope) {
			defer wg.Done()
			r, err := s.app.DeliverTx(context.Background(), env)
			if err == nil {
				receipts[i] = r
			}
		}(i, env)
	}
	wg.Wait()

	ok := 0
	for _, r := range receipts {
		s.Require().NotNil(r)
		if r.IsOK() {
			ok++
		} else {
			s.Require().Equal(types.ErrInvalidJobStatus.ABCICode(), r.Code)
		}
	}
	s.Require().Equal(1, ok)
	s.Require().Equal(types.JobStatusProcessing, s.job(0).Status)
}

func (s *AppTestSuite) TestExpiryUsesBlockTime() {
	s.Require().True(s.deliver(s.bob, &types.MsgRegisterWorker{
		Worker: s.bob.addr.String(), NodeID: "gpu-1", Stake: math.NewInt(unit),
	}).IsOK())
	s.Require().True(s.deliver(s.alice, &types.MsgCreateJob{
		Requester:  s.alice.addr.String(),
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeInference,
		Reward:     math.NewInt(unit),
	}).IsOK())
	s.Require().True(s.deliver(s.bob, &types.MsgClaimJob{Worker: s.bob.addr.String(), JobID: 0}).IsOK())

	r := s.deliver(s.carolFunded(), &types.MsgExpireJob{Caller: s.carol.addr.String(), JobID: 0})
	s.Require().Equal(types.ErrJobNotExpired.ABCICode(), r.Code)

	s.now = s.now.Add(types.DefaultInferenceTimeout + time.Second)
	var expired bool
	s.Require().NoError(s.app.View(func(ctx sdk.Context, k *keeper.Keeper) error {
		var err error
		expired, err = k.IsJobExpired(ctx, 0)
		return err
	}))
	s.Require().True(expired)

	r = s.deliver(s.carol, &types.MsgExpireJob{Caller: s.carol.addr.String(), JobID: 0})
	s.Require().True(r.IsOK(), r.Log)
	s.Require().Equal(types.JobStatusExpired, s.job(0).Status)
	s.Require().Equal(math.NewInt(100*unit), s.balance(s.alice))
}

func (s *AppTestSuite) carolFunded() *account {
	_, err := s.app.Fund(context.Background(), s.carol.addr, math.NewInt(unit))
	s.Require().NoError(err)
	return s.carol
}

func (s *AppTestSuite) TestFaucet() {
	r, err := s.app.Fund(context.Background(), s.carol.addr, math.NewInt(5*unit))
	s.Require().NoError(err)
	s.Require().Equal(app.FaucetTxType, r.Type)
	s.Require().Equal(math.NewInt(5*unit), s.balance(s.carol))
	s.Require().Len(s.sink.receipts, 1)

	_, err = s.app.Fund(context.Background(), s.carol.addr, math.NewInt(app.DefaultConfig().FaucetLimit+1))
	s.Require().ErrorIs(err, sdkerrors.ErrInvalidRequest)

	_, err = s.app.Fund(context.Background(), s.carol.addr, math.ZeroInt())
	s.Require().ErrorIs(err, sdkerrors.ErrInvalidCoins)
}

func (s *AppTestSuite) TestExportGenesisRoundTrip() {
	s.Require().True(s.deliver(s.bob, &types.MsgRegisterWorker{
		Worker: s.bob.addr.String(), NodeID: "gpu-1", Stake: math.NewInt(2 * unit),
	}).IsOK())
	s.Require().True(s.deliver(s.alice, &types.MsgCreateJob{
		Requester:  s.alice.addr.String(),
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeInference,
		Reward:     math.NewInt(unit),
	}).IsOK())
	s.Require().True(s.deliver(s.bob, &types.MsgClaimJob{Worker: s.bob.addr.String(), JobID: 0}).IsOK())

	doc, err := s.app.ExportGenesis()
	s.Require().NoError(err)
	s.Require().Len(doc.Accounts, 3)
	s.Require().Len(doc.Marketplace.Jobs, 1)

	fresh, err := app.New(log.NewNopLogger(), dbm.NewMemDB(), app.DefaultConfig())
	s.Require().NoError(err)
	s.Require().NoError(fresh.InitChain(context.Background(), doc))
	s.Require().NoError(fresh.Halted())

	reexported, err := fresh.ExportGenesis()
	s.Require().NoError(err)
	s.Require().Equal(doc.Accounts, reexported.Accounts)
	s.Require().Equal(doc.Marketplace.Jobs, reexported.Marketplace.Jobs)
	s.Require().Equal(doc.Marketplace.Workers, reexported.Marketplace.Workers)
}

func TestInitChainRejectsMismatchedChainID(t *testing.T) {
	a, err := app.New(log.NewNopLogger(), dbm.NewMemDB(), app.DefaultConfig())
	require.NoError(t, err)

	owner := newAccount()
	doc := app.NewDefaultGenesis("other-chain", owner.addr, time.Now())
	doc.Marketplace.Verifier = verifier.NameMock
	require.Error(t, a.InitChain(context.Background(), doc))

	_, err = a.DeliverTx(context.Background(), &tx.Envelope{})
	require.ErrorIs(t, err, app.ErrNotInitialized)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.DBBackend = string(dbm.GoLevelDBBackend)
	cfg.DataDir = t.TempDir()

	db, err := cfg.OpenDB()
	require.NoError(t, err)
	a, err := app.New(log.NewNopLogger(), db, cfg)
	require.NoError(t, err)

	owner := newAccount()
	doc := app.NewDefaultGenesis(cfg.ChainID, owner.addr, time.Now())
	doc.Marketplace.Verifier = verifier.NameMock
	require.NoError(t, a.InitChain(context.Background(), doc))
	_, err = a.Fund(context.Background(), owner.addr, math.NewInt(unit))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	db, err = cfg.OpenDB()
	require.NoError(t, err)
	reopened, err := app.New(log.NewNopLogger(), db, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, int64(2), reopened.Height())
	info, err := reopened.Account(owner.addr)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(unit), info.Balance.AmountOf(types.DefaultDenom))
	require.Error(t, reopened.InitChain(context.Background(), doc))
}

func TestConfigValidate(t *testing.T) {
	cfg := app.DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.DBBackend = "rocksdb"
	require.Error(t, cfg.Validate())

	cfg = app.DefaultConfig()
	cfg.ChainID = ""
	require.Error(t, cfg.Validate())
}
