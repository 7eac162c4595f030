// Package client talks to an oblivion node over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/api"
	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// DefaultTimeout bounds a single API round trip.
const DefaultTimeout = 30 * time.Second

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Code       string
	Codespace  string
	ABCICode   uint32
	Message    string
}

func (e *Error) Error() string {
	if e.Codespace != "" {
		return fmt.Sprintf("api error %d (%s/%d): %s", e.StatusCode, e.Codespace, e.ABCICode, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client is a thin typed wrapper over the node's /v1 routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the API served at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		bz, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(bz)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	bz, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var res api.ErrorResponse
		if err := json.Unmarshal(bz, &res); err != nil || res.Error == "" {
			res.Error = strings.TrimSpace(string(bz))
		}
		return &Error{
			StatusCode: resp.StatusCode,
			Code:       res.Code,
			Codespace:  res.Codespace,
			ABCICode:   res.ABCICode,
			Message:    res.Error,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bz, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, nil, out)
}

// Broadcast submits a signed envelope and returns its receipt. A failed
// message is reported in the receipt, not as an error.
func (c *Client) Broadcast(ctx context.Context, env *tx.Envelope) (*tx.Receipt, error) {
	var receipt tx.Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/tx", nil, env, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Account returns the signing state and balance of addr.
func (c *Client) Account(ctx context.Context, addr sdk.AccAddress) (tx.Account, error) {
	var account tx.Account
	err := c.get(ctx, "/v1/accounts/"+addr.String(), &account)
	return account, err
}

// Fund asks the devnet faucet for amount base units, authenticated by token.
func (c *Client) Fund(ctx context.Context, token string, addr sdk.AccAddress, amount math.Int) (*tx.Receipt, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	var receipt tx.Receipt
	req := api.FaucetRequest{Address: addr.String(), Amount: amount.String()}
	if err := c.do(ctx, http.MethodPost, "/v1/faucet", headers, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Job returns a job by id.
func (c *Client) Job(ctx context.Context, id uint64) (types.Job, error) {
	var job types.Job
	err := c.get(ctx, "/v1/jobs/"+strconv.FormatUint(id, 10), &job)
	return job, err
}

// JobCount returns the number of jobs ever created.
func (c *Client) JobCount(ctx context.Context) (uint64, error) {
	var res api.CountResponse
	err := c.get(ctx, "/v1/jobs/count", &res)
	return res.Count, err
}

// PendingJobs returns jobs waiting for a worker.
func (c *Client) PendingJobs(ctx context.Context) ([]types.Job, error) {
	var res api.JobsResponse
	err := c.get(ctx, "/v1/jobs/pending", &res)
	return res.Jobs, err
}

// JobFilter narrows ListJobs. Zero values mean no filter.
type JobFilter struct {
	Status    *types.JobStatus
	Requester sdk.AccAddress
	Offset    int
	Limit     int
}

// ListJobs returns one page of jobs matching filter and the total match count.
func (c *Client) ListJobs(ctx context.Context, filter JobFilter) ([]types.Job, int, error) {
	q := url.Values{}
	if filter.Status != nil {
		q.Set("status", filter.Status.String())
	}
	if filter.Requester != nil {
		q.Set("requester", filter.Requester.String())
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/v1/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var res api.JobsResponse
	if err := c.get(ctx, path, &res); err != nil {
		return nil, 0, err
	}
	return res.Jobs, res.Total, nil
}

// JobsByStatus pages through every job in status.
func (c *Client) JobsByStatus(ctx context.Context, status types.JobStatus) ([]types.Job, error) {
	const pageSize = 1000

	var all []types.Job
	for offset := 0; ; offset += pageSize {
		jobs, total, err := c.ListJobs(ctx, JobFilter{Status: &status, Offset: offset, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, jobs...)
		if len(jobs) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// CompletedModels returns completed jobs that carry a model hash.
func (c *Client) CompletedModels(ctx context.Context) ([]types.Job, error) {
	var res api.JobsResponse
	err := c.get(ctx, "/v1/jobs/models", &res)
	return res.Jobs, err
}

// IsJobExpired reports whether a processing job's claim has timed out.
func (c *Client) IsJobExpired(ctx context.Context, id uint64) (bool, error) {
	var res api.ExpiredResponse
	err := c.get(ctx, "/v1/jobs/"+strconv.FormatUint(id, 10)+"/expired", &res)
	return res.Expired, err
}

// Worker returns a registered worker.
func (c *Client) Worker(ctx context.Context, addr sdk.AccAddress) (types.Worker, error) {
	var worker types.Worker
	err := c.get(ctx, "/v1/workers/"+addr.String(), &worker)
	return worker, err
}

// Workers returns every registered worker.
func (c *Client) Workers(ctx context.Context) ([]types.Worker, error) {
	var res api.WorkersResponse
	err := c.get(ctx, "/v1/workers", &res)
	return res.Workers, err
}

// ActiveWorkers returns workers that accept jobs.
func (c *Client) ActiveWorkers(ctx context.Context) ([]types.Worker, error) {
	var res api.WorkersResponse
	err := c.get(ctx, "/v1/workers/active", &res)
	return res.Workers, err
}

// WorkerCount returns the number of registered workers.
func (c *Client) WorkerCount(ctx context.Context) (uint64, error) {
	var res api.CountResponse
	err := c.get(ctx, "/v1/workers/count", &res)
	return res.Count, err
}

// WorkerHistory returns the ids of jobs addr completed, oldest first.
func (c *Client) WorkerHistory(ctx context.Context, addr sdk.AccAddress) ([]uint64, error) {
	var res api.HistoryResponse
	err := c.get(ctx, "/v1/workers/"+addr.String()+"/history", &res)
	return res.JobIDs, err
}

// WorkerPriority returns the scheduling priority of addr.
func (c *Client) WorkerPriority(ctx context.Context, addr sdk.AccAddress) (uint64, error) {
	var res api.PriorityResponse
	err := c.get(ctx, "/v1/workers/"+addr.String()+"/priority", &res)
	return res.Priority, err
}

// Stats returns marketplace counters.
func (c *Client) Stats(ctx context.Context) (types.Stats, error) {
	var stats types.Stats
	err := c.get(ctx, "/v1/stats", &stats)
	return stats, err
}

// Timeout returns the claim timeout for jobType.
func (c *Client) Timeout(ctx context.Context, jobType types.JobType) (time.Duration, error) {
	var res api.TimeoutResponse
	if err := c.get(ctx, "/v1/timeout/"+jobType.String(), &res); err != nil {
		return 0, err
	}
	return time.Duration(res.Seconds) * time.Second, nil
}

// Owner returns the marketplace owner and the active verifier name.
func (c *Client) Owner(ctx context.Context) (api.OwnerResponse, error) {
	var res api.OwnerResponse
	err := c.get(ctx, "/v1/owner", &res)
	return res, err
}

// Params returns the marketplace parameters.
func (c *Client) Params(ctx context.Context) (types.Params, error) {
	var params types.Params
	err := c.get(ctx, "/v1/params", &params)
	return params, err
}
