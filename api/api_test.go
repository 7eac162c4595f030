package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/oblivion-chain/oblivion/app"
	"github.com/oblivion-chain/oblivion/app/health"
	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

const (
	unit       = 1_000_000
	testSecret = "test-secret"
)

type testEnv struct {
	server    *Server
	node      *app.App
	requester *secp256k1.PrivKey
	worker    *secp256k1.PrivKey
}

func addrOf(priv *secp256k1.PrivKey) sdk.AccAddress {
	return sdk.AccAddress(priv.PubKey().Address())
}

// setupTestServer creates a server over a fresh devnet node
func setupTestServer(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	node, err := app.New(log.NewNopLogger(), dbm.NewMemDB(), app.DefaultConfig())
	require.NoError(t, err)

	env := &testEnv{
		node:      node,
		requester: secp256k1.GenPrivKey(),
		worker:    secp256k1.GenPrivKey(),
	}

	owner := sdk.AccAddress([]byte("marketplace_owner___"))
	doc := app.NewDefaultGenesis(app.DefaultChainID, owner, time.Now())
	doc.Marketplace.Verifier = verifier.NameMock
	for _, priv := range []*secp256k1.PrivKey{env.requester, env.worker} {
		doc.Accounts = append(doc.Accounts, app.GenesisAccount{
			Address: addrOf(priv).String(),
			Coins:   sdk.NewCoins(sdk.NewInt64Coin(types.DefaultDenom, 100*unit)),
		})
	}
	require.NoError(t, node.InitChain(context.Background(), doc))

	config := DefaultConfig()
	config.JWTSecret = testSecret
	config.CORSOrigins = []string{"http://localhost:3000"}
	config.RateLimitRPS = 1000
	for _, m := range mutate {
		m(config)
	}

	checker, err := health.NewChecker(log.NewNopLogger(), health.DefaultConfig(), node, "test")
	require.NoError(t, err)

	env.server, err = NewServer(log.NewNopLogger(), node, checker, config)
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		bz, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(bz)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) submit(t *testing.T, priv *secp256k1.PrivKey, msg types.Msg) tx.Receipt {
	t.Helper()

	w := e.do(t, http.MethodGet, "/v1/accounts/"+addrOf(priv).String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var account tx.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))

	env, err := tx.Sign(priv, app.DefaultChainID, account.Sequence, msg)
	require.NoError(t, err)

	w = e.do(t, http.MethodPost, "/v1/tx", env)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var receipt tx.Receipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	return receipt
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// TestHealthCheck tests the health check endpoint
func TestHealthCheck(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	response := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", response["status"])
	assert.NotNil(t, response["timestamp"])
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	env := setupTestServer(t)
	requester, worker := addrOf(env.requester), addrOf(env.worker)

	receipt := env.submit(t, env.worker, &types.MsgRegisterWorker{
		Worker: worker.String(), NodeID: "gpu-1", Stake: math.NewInt(unit),
	})
	require.True(t, receipt.IsOK(), receipt.Log)

	receipt = env.submit(t, env.requester, &types.MsgCreateJob{
		Requester:  requester.String(),
		ScriptHash: "QmScript",
		DataHash:   "QmData",
		JobType:    types.JobTypeInference,
		Reward:     math.NewInt(unit),
	})
	require.True(t, receipt.IsOK(), receipt.Log)

	w := env.do(t, http.MethodGet, "/v1/jobs/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[types.Job](t, w)
	require.Equal(t, types.JobStatusPending, job.Status)
	require.Equal(t, requester.String(), job.Requester)

	require.Equal(t, uint64(1), decode[CountResponse](t, env.do(t, http.MethodGet, "/v1/jobs/count", nil)).Count)
	require.Len(t, decode[JobsResponse](t, env.do(t, http.MethodGet, "/v1/jobs/pending", nil)).Jobs, 1)

	receipt = env.submit(t, env.worker, &types.MsgClaimJob{Worker: worker.String(), JobID: 0})
	require.True(t, receipt.IsOK(), receipt.Log)

	expired := decode[ExpiredResponse](t, env.do(t, http.MethodGet, "/v1/jobs/0/expired", nil))
	require.False(t, expired.Expired)

	receipt = env.submit(t, env.worker, &types.MsgSubmitResultSimple{
		Worker: worker.String(), JobID: 0, ModelHash: "QmModel", ProofHash: "QmProof",
	})
	require.True(t, receipt.IsOK(), receipt.Log)

	models := decode[JobsResponse](t, env.do(t, http.MethodGet, "/v1/jobs/models", nil))
	require.Len(t, models.Jobs, 1)
	require.Equal(t, "QmModel", models.Jobs[0].ModelHash)

	history := decode[HistoryResponse](t, env.do(t, http.MethodGet, "/v1/workers/"+worker.String()+"/history", nil))
	require.Equal(t, []uint64{0}, history.JobIDs)

	w = env.do(t, http.MethodGet, "/v1/workers/"+worker.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, uint64(1), decode[types.Worker](t, w).CompletedJobs)

	priority := decode[PriorityResponse](t, env.do(t, http.MethodGet, "/v1/workers/"+worker.String()+"/priority", nil))
	require.NotZero(t, priority.Priority)

	stats := decode[types.Stats](t, env.do(t, http.MethodGet, "/v1/stats", nil))
	require.Equal(t, uint64(1), stats.TotalJobs)
	require.Equal(t, uint64(1), stats.JobsByStatus["completed"])

	require.Len(t, decode[WorkersResponse](t, env.do(t, http.MethodGet, "/v1/workers/active", nil)).Workers, 1)
	require.Equal(t, uint64(1), decode[CountResponse](t, env.do(t, http.MethodGet, "/v1/workers/count", nil)).Count)
}

func TestFailedMessageReturnsReceipt(t *testing.T) {
	env := setupTestServer(t)
	requester := addrOf(env.requester)

	receipt := env.submit(t, env.requester, &types.MsgCancelJob{Requester: requester.String(), JobID: 3})
	require.False(t, receipt.IsOK())
	require.Equal(t, types.ModuleName, receipt.Codespace)
	require.Equal(t, types.ErrJobNotFound.ABCICode(), receipt.Code)
}

func TestListJobsFilters(t *testing.T) {
	env := setupTestServer(t)
	requester := addrOf(env.requester)

	for i := 0; i < 3; i++ {
		receipt := env.submit(t, env.requester, &types.MsgCreateJob{
			Requester:  requester.String(),
			ScriptHash: fmt.Sprintf("QmScript%d", i),
			DataHash:   "QmData",
			JobType:    types.JobTypeTraining,
			Reward:     math.NewInt(unit),
		})
		require.True(t, receipt.IsOK(), receipt.Log)
	}
	receipt := env.submit(t, env.requester, &types.MsgCancelJob{Requester: requester.String(), JobID: 1})
	require.True(t, receipt.IsOK(), receipt.Log)

	all := decode[JobsResponse](t, env.do(t, http.MethodGet, "/v1/jobs", nil))
	require.Equal(t, 3, all.Total)

	pending := decode[JobsResponse](t, env.do(t, http.MethodGet, "/v1/jobs?status=pending", nil))
	require.Equal(t, 2, pending.Total)

	cancelled := decode[JobsResponse](t, env.do(t, http.MethodGet,
		"/v1/jobs?status=cancelled&requester="+requester.String(), nil))
	require.Equal(t, 1, cancelled.Total)
	require.Equal(t, uint64(1), cancelled.Jobs[0].ID)

	page := decode[JobsResponse](t, env.do(t, http.MethodGet, "/v1/jobs?offset=1&limit=1", nil))
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Jobs, 1)
	require.Equal(t, uint64(1), page.Jobs[0].ID)

	beyond := decode[JobsResponse](t, env.do(t, http.MethodGet, "/v1/jobs?offset=10", nil))
	require.Empty(t, beyond.Jobs)
}

func TestParamsOwnerAndTimeout(t *testing.T) {
	env := setupTestServer(t)

	params := decode[types.Params](t, env.do(t, http.MethodGet, "/v1/params", nil))
	require.Equal(t, types.DefaultDenom, params.Denom)

	owner := decode[OwnerResponse](t, env.do(t, http.MethodGet, "/v1/owner", nil))
	require.Equal(t, sdk.AccAddress([]byte("marketplace_owner___")).String(), owner.Owner)
	require.Equal(t, verifier.NameMock, owner.Verifier)

	timeout := decode[TimeoutResponse](t, env.do(t, http.MethodGet, "/v1/timeout/inference", nil))
	require.Equal(t, int64(types.DefaultInferenceTimeout.Seconds()), timeout.Seconds)
	require.Equal(t, "inference", timeout.JobType)
}

func TestQueryErrors(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedCode   string
	}{
		{"unknown job", "/v1/jobs/99", http.StatusNotFound, codes.NotFound.String()},
		{"non-numeric job id", "/v1/jobs/abc", http.StatusBadRequest, codes.InvalidArgument.String()},
		{"unknown worker", "/v1/workers/" + addrOf(env.worker).String(), http.StatusNotFound, codes.NotFound.String()},
		{"bad worker address", "/v1/workers/not-an-address", http.StatusBadRequest, codes.InvalidArgument.String()},
		{"unknown job type", "/v1/timeout/bogus", http.StatusBadRequest, codes.InvalidArgument.String()},
		{"unknown status filter", "/v1/jobs?status=bogus", http.StatusBadRequest, codes.InvalidArgument.String()},
		{"negative offset", "/v1/jobs?offset=-1", http.StatusBadRequest, codes.InvalidArgument.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCode, decode[ErrorResponse](t, w).Code)
		})
	}

	notFound := decode[ErrorResponse](t, env.do(t, http.MethodGet, "/v1/jobs/99", nil))
	require.Equal(t, types.ModuleName, notFound.Codespace)
	require.Equal(t, types.ErrJobNotFound.ABCICode(), notFound.ABCICode)
}

func TestSubmitTxRejectsMalformedBody(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/tx", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFaucet(t *testing.T) {
	env := setupTestServer(t)
	recipient := addrOf(secp256k1.GenPrivKey())

	token, err := env.server.Auth().GenerateToken("", time.Hour)
	require.NoError(t, err)
	other := NewFaucetAuth([]byte("other-secret"))
	forged, err := other.GenerateToken("", time.Hour)
	require.NoError(t, err)
	restricted, err := env.server.Auth().GenerateToken(addrOf(env.worker).String(), time.Hour)
	require.NoError(t, err)

	body := FaucetRequest{Address: recipient.String(), Amount: "5000000"}

	tests := []struct {
		name           string
		headers        []string
		body           FaucetRequest
		expectedStatus int
	}{
		{"missing token", nil, body, http.StatusUnauthorized},
		{"malformed header", []string{"Authorization", token}, body, http.StatusUnauthorized},
		{"wrong secret", []string{"Authorization", "Bearer " + forged}, body, http.StatusUnauthorized},
		{"token for another address", []string{"Authorization", "Bearer " + restricted}, body, http.StatusForbidden},
		{"invalid amount", []string{"Authorization", "Bearer " + token}, FaucetRequest{Address: recipient.String(), Amount: "-1"}, http.StatusBadRequest},
		{"above limit", []string{"Authorization", "Bearer " + token}, FaucetRequest{Address: recipient.String(), Amount: "100000000000"}, http.StatusBadRequest},
		{"success", []string{"Authorization", "Bearer " + token}, body, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/faucet", tt.body, tt.headers...)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}

	account := decode[tx.Account](t, env.do(t, http.MethodGet, "/v1/accounts/"+recipient.String(), nil))
	require.Equal(t, math.NewInt(5*unit), account.Balance.AmountOf(types.DefaultDenom))
}

func TestFaucetRouteDisabled(t *testing.T) {
	env := setupTestServer(t, func(c *Config) { c.FaucetEnabled = false })

	w := env.do(t, http.MethodPost, "/v1/faucet", FaucetRequest{})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExpiredToken(t *testing.T) {
	auth := NewFaucetAuth([]byte(testSecret))
	token, err := auth.GenerateToken("", -time.Minute)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	require.Error(t, err)
}

func TestRequestID(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = env.do(t, http.MethodGet, "/health", nil, requestIDHeader, "abc-123")
	require.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestRateLimit(t *testing.T) {
	env := setupTestServer(t, func(c *Config) { c.RateLimitRPS = 1 })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(t, http.MethodGet, "/v1/params", nil).Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/tx", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/tx", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsHandler(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodGet, "/v1/params", nil)

	checker, err := health.NewChecker(log.NewNopLogger(), health.DefaultConfig(), env.node, "test")
	require.NoError(t, err)
	handler := NewMetricsHandler(log.NewNopLogger(), checker)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "oblivion_api_requests_total")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected codes.Code
	}{
		{types.ErrJobNotFound.Wrap("job 9"), codes.NotFound},
		{types.ErrWorkerNotFound, codes.NotFound},
		{types.ErrInvalidAddress, codes.InvalidArgument},
		{app.ErrHalted, codes.Unavailable},
		{app.ErrFaucetDisabled, codes.FailedPrecondition},
		{types.ErrTransferFailed, codes.Internal},
		{invalidArgument(fmt.Errorf("bad")), codes.InvalidArgument},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, toStatus(tt.err).Code(), tt.err.Error())
	}
}
