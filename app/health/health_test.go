package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeNode struct {
	height int64
	halted error
}

func (n *fakeNode) Height() int64 { return n.height }
func (n *fakeNode) Halted() error { return n.halted }

type HealthCheckTestSuite struct {
	suite.Suite
	node    *fakeNode
	checker *Checker
	router  *mux.Router
}

func TestHealthCheckTestSuite(t *testing.T) {
	suite.Run(t, new(HealthCheckTestSuite))
}

func (suite *HealthCheckTestSuite) SetupTest() {
	suite.node = &fakeNode{height: 7}
	checker, err := NewChecker(log.NewNopLogger(), DefaultConfig(), suite.node, "v0.1.0")
	suite.Require().NoError(err)
	suite.checker = checker
	suite.router = mux.NewRouter()
	checker.RegisterRoutes(suite.router)
}

func (suite *HealthCheckTestSuite) get(path string) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func (suite *HealthCheckTestSuite) TestLiveness() {
	rec, body := suite.get("/health")
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Require().Equal("ok", body["status"])
	suite.Require().EqualValues(7, body["height"])
}

func (suite *HealthCheckTestSuite) TestReadyWhenHealthy() {
	rec, body := suite.get("/health/ready")
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Require().Equal(string(StatusHealthy), body["status"])
	suite.Require().Equal("v0.1.0", body["version"])
}

func (suite *HealthCheckTestSuite) TestHaltedChainIsUnavailable() {
	suite.node.halted = errors.New("chain halted at height 7: module-balance")

	rec, body := suite.get("/health/ready")
	suite.Require().Equal(http.StatusServiceUnavailable, rec.Code)
	suite.Require().Equal(string(StatusUnhealthy), body["status"])

	chain := body["components"].(map[string]any)["chain"].(map[string]any)
	suite.Require().Contains(chain["message"], "module-balance")
}

func (suite *HealthCheckTestSuite) TestUninitializedChainIsDegradedButReady() {
	suite.node.height = 0

	rec, body := suite.get("/health/ready")
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Require().Equal(string(StatusDegraded), body["status"])
}

func (suite *HealthCheckTestSuite) TestFailingProbe() {
	suite.checker.AddProbe("indexer", func(context.Context) error {
		return errors.New("connection refused")
	}, false)

	rec, body := suite.get("/health/ready")
	suite.Require().Equal(http.StatusServiceUnavailable, rec.Code)
	indexer := body["components"].(map[string]any)["indexer"].(map[string]any)
	suite.Require().Equal("connection refused", indexer["message"])
}

func (suite *HealthCheckTestSuite) TestDetailedProbesOnlyRunOnDetailedEndpoint() {
	var calls atomic.Int32
	suite.checker.AddProbe("telemetry", func(context.Context) error {
		calls.Add(1)
		return nil
	}, true)

	_, body := suite.get("/health/ready")
	suite.Require().NotContains(body["components"], "telemetry")
	suite.Require().Zero(calls.Load())

	rec, body := suite.get("/health/detailed")
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Require().Contains(body["components"], "telemetry")
	suite.Require().Equal(int32(1), calls.Load())
}

func TestNewCheckerValidation(t *testing.T) {
	_, err := NewChecker(log.NewNopLogger(), DefaultConfig(), nil, "")
	require.Error(t, err)

	_, err = NewChecker(log.NewNopLogger(), Config{}, &fakeNode{}, "")
	require.Error(t, err)
}

func TestCheckIsCached(t *testing.T) {
	node := &fakeNode{height: 1}
	checker, err := NewChecker(log.NewNopLogger(), Config{
		MaxResponseTime: time.Second,
		CacheDuration:   time.Hour,
	}, node, "")
	require.NoError(t, err)

	first := checker.Check(context.Background(), false)
	node.halted = errors.New("halted")
	require.Same(t, first, checker.Check(context.Background(), false))
	require.Equal(t, StatusUnhealthy, checker.Check(context.Background(), true).Status)
}

func TestSlowProbeIsDegraded(t *testing.T) {
	checker, err := NewChecker(log.NewNopLogger(), Config{MaxResponseTime: 20 * time.Millisecond}, &fakeNode{height: 1}, "")
	require.NoError(t, err)
	checker.AddProbe("slow", func(ctx context.Context) error {
		time.Sleep(15 * time.Millisecond)
		return nil
	}, false)

	health := checker.Check(context.Background(), true)
	require.Equal(t, StatusDegraded, health.Components["slow"].Status)
	require.Equal(t, StatusDegraded, health.Status)
}

func TestCalculateOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentHealth
		expected   Status
	}{
		{
			name:       "all healthy",
			components: map[string]ComponentHealth{"chain": {Status: StatusHealthy}, "indexer": {Status: StatusHealthy}},
			expected:   StatusHealthy,
		},
		{
			name:       "one degraded",
			components: map[string]ComponentHealth{"chain": {Status: StatusHealthy}, "indexer": {Status: StatusDegraded}},
			expected:   StatusDegraded,
		},
		{
			name:       "unhealthy wins over degraded",
			components: map[string]ComponentHealth{"chain": {Status: StatusUnhealthy}, "indexer": {Status: StatusDegraded}},
			expected:   StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, calculateOverallStatus(tt.components))
		})
	}
}
