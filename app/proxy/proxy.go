package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/civicstack/ms-go-payflow/app/factory"
	"github.com/civicstack/ms-go-payflow/app/gateway"
)

// Interceptor receives the buffered gateway response and may replace it,
// status code included. Returning nil keeps the upstream response. Side
// effects (audit, session, notification) happen here, before the response is
// emitted to the original caller.
type Interceptor func(ctx context.Context, statusCode int, body []byte) *ForwardResult

type Config struct {
	BaseURL     string
	Tokens      gateway.TokenMap
	HTTPTimeout time.Duration
}

// GatewayProxy mediates every call to the card-payment gateway. It injects
// the per-tenant bearer token, buffers the full response, runs it through an
// interceptor, and hands the result back for emission. It never streams.
type GatewayProxy struct {
	cfg    Config
	client *http.Client
	logger logrus.FieldLogger
}

func NewGatewayProxy(cfg Config) *GatewayProxy {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &GatewayProxy{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("gateway-proxy"),
	}
}

// ForwardRequest is an inbound request with tenant routing already stripped:
// Path is gateway-relative (e.g. "/v1/payments").
type ForwardRequest struct {
	Tenant string
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type ForwardResult struct {
	StatusCode int
	Body       []byte
}

// Forward sends the request to the gateway and buffers the whole response.
// The tenant token is resolved from the static map; an unknown tenant fails
// before any network traffic.
func (p *GatewayProxy) Forward(ctx context.Context, in *ForwardRequest) (*ForwardResult, error) {
	token, ok := p.cfg.Tokens.Token(in.Tenant)
	if !ok {
		return nil, gateway.ErrTenantNotConfigured
	}

	endpoint := p.cfg.BaseURL + in.Path
	if len(in.Query) > 0 {
		endpoint += "?" + in.Query.Encode()
	}

	var body io.Reader
	if len(in.Body) > 0 {
		body = bytes.NewReader(in.Body)
	}

	req, err := http.NewRequestWithContext(ctx, in.Method, endpoint, body)
	if err != nil {
		return nil, err
	}
	copyForwardHeaders(req.Header, in.Header)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithError(err).WithField("tenant", in.Tenant).Error("Gateway request failed")
		return nil, err
	}
	defer resp.Body.Close()

	buffered, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &ForwardResult{StatusCode: resp.StatusCode, Body: buffered}, nil
}

// Execute is the full proxy operation: forward and buffer, transform, emit.
// The interceptor runs even if the original caller has disconnected; callers
// pass a context detached from the client connection.
func (p *GatewayProxy) Execute(ctx context.Context, in *ForwardRequest, intercept Interceptor) (*ForwardResult, error) {
	result, err := p.Forward(ctx, in)
	if err != nil {
		return nil, err
	}

	if intercept != nil {
		if rewritten := intercept(ctx, result.StatusCode, result.Body); rewritten != nil {
			result = rewritten
		}
	}

	return result, nil
}

// GenericFailureBody is what the caller sees for any transport-level gateway
// failure. Upstream detail stays in the logs.
func GenericFailureBody() []byte {
	return []byte(`{"error":"payment gateway error"}`)
}

// copyForwardHeaders forwards caller headers, dropping credentials and
// hop-by-hop headers that must not reach the gateway.
func copyForwardHeaders(dst, src http.Header) {
	for name, values := range src {
		switch http.CanonicalHeaderKey(name) {
		case "Authorization", "Cookie", "Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade", "Host", "Content-Length":
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
