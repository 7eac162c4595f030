package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultGatewayTimeout = 2 * time.Minute

// GatewayMetrics counts IPFS API calls.
type GatewayMetrics struct {
	Requests *prometheus.CounterVec
	Bytes    *prometheus.CounterVec
}

var (
	gatewayMetrics     *GatewayMetrics
	gatewayMetricsOnce sync.Once
)

// NewGatewayMetrics returns the process-wide gateway metrics.
func NewGatewayMetrics() *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayMetrics = &GatewayMetrics{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "contentstore",
					Name:      "requests_total",
					Help:      "IPFS API calls by operation and result",
				},
				[]string{"op", "result"},
			),
			Bytes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "contentstore",
					Name:      "bytes_total",
					Help:      "Bytes transferred to and from IPFS",
				},
				[]string{"direction"},
			),
		}
	})
	return gatewayMetrics
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithBearerToken authenticates every call, as hosted pinning services require.
func WithBearerToken(token string) GatewayOption {
	return func(g *Gateway) { g.token = token }
}

// WithGatewayHTTPClient replaces the underlying http.Client.
func WithGatewayHTTPClient(hc *http.Client) GatewayOption {
	return func(g *Gateway) { g.http = hc }
}

// Gateway is a Store backed by an IPFS node's HTTP RPC API.
type Gateway struct {
	apiURL  string
	token   string
	http    *http.Client
	logger  log.Logger
	metrics *GatewayMetrics
}

var _ Store = (*Gateway)(nil)

// NewGateway returns a store for the IPFS API at apiURL, e.g. http://localhost:5001.
func NewGateway(logger log.Logger, apiURL string, opts ...GatewayOption) (*Gateway, error) {
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid ipfs api url %q", apiURL)
	}
	g := &Gateway{
		apiURL:  strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: defaultGatewayTimeout},
		logger:  logger.With("module", "contentstore"),
		metrics: NewGatewayMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Put adds and pins data.
func (g *Gateway) Put(ctx context.Context, data []byte) (cid string, err error) {
	defer func() { g.observe("add", err) }()

	if len(data) > MaxObjectSize {
		return "", ErrTooLarge
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := g.call(ctx, "add", url.Values{"pin": {"true"}}, &body, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out addResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode add response: %w", err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("ipfs add returned no hash")
	}

	g.metrics.Bytes.WithLabelValues("up").Add(float64(len(data)))
	g.logger.Debug("content added", "cid", out.Hash, "size", len(data))
	return out.Hash, nil
}

// Get fetches the content of cid.
func (g *Gateway) Get(ctx context.Context, cid string) (data []byte, err error) {
	defer func() { g.observe("cat", err) }()

	cid, err = NormalizeCID(cid)
	if err != nil {
		return nil, err
	}
	resp, err := g.call(ctx, "cat", url.Values{"arg": {cid}}, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", cid, err)
	}
	if len(data) > MaxObjectSize {
		return nil, ErrTooLarge
	}
	g.metrics.Bytes.WithLabelValues("down").Add(float64(len(data)))
	return data, nil
}

// Pin pins an existing cid on the node.
func (g *Gateway) Pin(ctx context.Context, cid string) (err error) {
	defer func() { g.observe("pin", err) }()

	cid, err = NormalizeCID(cid)
	if err != nil {
		return err
	}
	resp, err := g.call(ctx, "pin/add", url.Values{"arg": {cid}}, nil, "")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Ping checks that the node answers its id endpoint.
func (g *Gateway) Ping(ctx context.Context) (err error) {
	defer func() { g.observe("id", err) }()

	resp, err := g.call(ctx, "id", nil, nil, "")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// call POSTs to /api/v0/<op>; the IPFS RPC API accepts POST only.
func (g *Gateway) call(ctx context.Context, op string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	endpoint := g.apiURL + "/api/v0/" + op
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs %s: %w", op, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(msg))
	var rpcErr struct {
		Message string `json:"Message"`
	}
	if json.Unmarshal(msg, &rpcErr) == nil && rpcErr.Message != "" {
		text = rpcErr.Message
	}
	if resp.StatusCode == http.StatusNotFound || strings.Contains(text, "not found") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, text)
	}
	return nil, fmt.Errorf("ipfs %s: status %d: %s", op, resp.StatusCode, text)
}

func (g *Gateway) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	g.metrics.Requests.WithLabelValues(op, result).Inc()
}
