package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"nominatim-proxy/geocode/domain"
)

const (
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifica o deployment, como exige a política de uso do Nominatim.
	DefaultUserAgent = "OTP-Minneapolis/1.0 (OpenTripPlanner deployment)"
	DefaultTimeout   = 10 * time.Second
	// DefaultGateTimeout é quanto uma requisição aceita esperar na fila do gate.
	DefaultGateTimeout = 20 * time.Second

	EndpointSearch  = "search"
	EndpointReverse = "reverse"

	maxBodyBytes  = 4 << 20
	maxErrorBytes = 512
)

var errNotObject = errors.New("expected a JSON object")

// ErrGateTimeout indica que a requisição desistiu de esperar a vez no gate.
var ErrGateTimeout = errors.New("timed out waiting for upstream turn")

// UpstreamRecorder recebe observações das chamadas de saída (métricas).
type UpstreamRecorder interface {
	ObserveUpstream(endpoint, outcome string, d time.Duration)
	ObserveGateWait(d time.Duration)
}

// Client fala com o Nominatim. Toda chamada passa pelo gate antes de sair.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	gate      domain.Gate
	metrics   UpstreamRecorder
	// gateTimeout limita a espera na fila do gate; <= 0 espera até o ctx encerrar.
	gateTimeout time.Duration
}

type ClientOption func(*Client)

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient troca o http.Client (o timeout passa a ser o dele).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithGateTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.gateTimeout = d }
}

func WithUpstreamMetrics(m UpstreamRecorder) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(baseURL string, gate domain.Gate, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: DefaultUserAgent,
		http:      &http.Client{Timeout: DefaultTimeout},
		gate:      gate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get espera a vez no gate e faz GET em baseURL/endpoint.
//
// Status fora de 2xx vira *domain.UpstreamError com o corpo; falha de rede,
// timeout ou ctx cancelado vira *domain.TransportError. Não há retry.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.gate != nil {
		if err := c.acquire(ctx); err != nil {
			return nil, &domain.TransportError{Endpoint: endpoint, Err: err}
		}
	}

	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, "transport_error", start)
		return nil, &domain.TransportError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(endpoint, "transport_error", start)
		return nil, &domain.TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(endpoint, "upstream_error", start)
		return nil, &domain.UpstreamError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     truncate(string(body), maxErrorBytes),
		}
	}

	c.observe(endpoint, "ok", start)
	return body, nil
}

// Search chama /search e decodifica o array de resultados.
func (c *Client) Search(ctx context.Context, params url.Values) ([]domain.Place, error) {
	body, err := c.Get(ctx, EndpointSearch, params)
	if err != nil {
		return nil, err
	}
	var places []domain.Place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, &domain.UpstreamError{Endpoint: EndpointSearch, Status: http.StatusOK, Err: err}
	}
	return places, nil
}

// Reverse chama /reverse e decodifica o objeto único. Sem place_id, o Place
// volta com HasID() == false. Corpo vazio, null ou [] também contam como
// "nada encontrado".
func (c *Client) Reverse(ctx context.Context, params url.Values) (domain.Place, error) {
	body, err := c.Get(ctx, EndpointReverse, params)
	if err != nil {
		return domain.Place{}, err
	}
	t := bytes.TrimSpace(body)
	switch {
	case len(t) == 0, bytes.Equal(t, []byte("null")):
		return domain.Place{}, nil
	case t[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(t, &items); err != nil {
			return domain.Place{}, &domain.UpstreamError{Endpoint: EndpointReverse, Status: http.StatusOK, Err: err}
		}
		if len(items) == 0 {
			return domain.Place{}, nil
		}
		return domain.Place{}, &domain.UpstreamError{Endpoint: EndpointReverse, Status: http.StatusOK, Err: errNotObject}
	case t[0] != '{':
		return domain.Place{}, &domain.UpstreamError{Endpoint: EndpointReverse, Status: http.StatusOK, Err: errNotObject}
	}
	var place domain.Place
	if err := json.Unmarshal(body, &place); err != nil {
		return domain.Place{}, &domain.UpstreamError{Endpoint: EndpointReverse, Status: http.StatusOK, Err: err}
	}
	return place, nil
}

func (c *Client) acquire(ctx context.Context) error {
	gateCtx := ctx
	if c.gateTimeout > 0 {
		var cancel context.CancelFunc
		gateCtx, cancel = context.WithTimeout(ctx, c.gateTimeout)
		defer cancel()
	}

	waited, err := c.gate.Acquire(gateCtx)
	if c.metrics != nil {
		c.metrics.ObserveGateWait(waited)
	}
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrGateTimeout, c.gateTimeout, err)
	}
	return err
}

func (c *Client) observe(endpoint, outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveUpstream(endpoint, outcome, time.Since(start))
}

// truncate corta em até n bytes sem partir um caractere UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
