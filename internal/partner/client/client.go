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
	"strings"
	"time"

	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/smallbiznis/orderbridge/internal/observability/tracing"
	"github.com/smallbiznis/orderbridge/internal/partner/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	OpAuthenticate = "authenticate"
	OpPoll         = "poll"
	OpAcknowledge  = "acknowledge"
	OpOrderDetails = "order_details"
	OpSendStatus   = "send_status"

	authPath        = "/authentication/v1.0/oauth/token"
	pollingPath     = "/events/v1.0/events:polling"
	acknowledgePath = "/events/v1.0/events/acknowledgment"
	orderPath       = "/order/v1.0/orders/"
	statusPath      = "/logistics/v1.0/orders/"

	maxErrorBody = 4 << 10
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.WorkerMetrics `optional:"true"`
}

// Client is the HTTP implementation of the partner marketplace protocol.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	metrics    *metrics.WorkerMetrics
}

func New(p Params) domain.Client {
	timeout := p.Config.Partner.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return NewWithHTTPClient(p.Config.Partner.BaseURL, &http.Client{Timeout: timeout}, p.Log, p.Metrics)
}

// NewWithHTTPClient builds a client against baseURL using the given transport.
func NewWithHTTPClient(baseURL string, httpClient *http.Client, log *zap.Logger, m *metrics.WorkerMetrics) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: tracing.WrapHTTPClient(httpClient),
		log:        log.Named("partner.client"),
		metrics:    m,
	}
}

func (c *Client) Authenticate(ctx context.Context, creds domain.Credentials) (domain.Token, error) {
	form := url.Values{}
	form.Set("grantType", "client_credentials")
	form.Set("clientId", creds.ClientID)
	form.Set("clientSecret", creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(ctx, OpAuthenticate, req)
	if err != nil {
		return domain.Token{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Token{}, &domain.AuthError{
			StatusCode:     resp.StatusCode,
			Body:           readErrorBody(resp.Body),
			Authenticating: true,
		}
	}

	var token domain.Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return domain.Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return domain.Token{}, &domain.AuthError{StatusCode: resp.StatusCode, Body: "empty access token", Authenticating: true}
	}
	return token, nil
}

func (c *Client) Poll(ctx context.Context, merchantID, token string, types []string) ([]domain.Event, error) {
	query := url.Values{}
	query.Set("types", strings.Join(types, ","))
	query.Set("excludeHeartbeat", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pollingPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-polling-merchants", merchantID)
	setBearer(req, token)

	resp, err := c.do(ctx, OpPoll, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return []domain.Event{}, nil
	}
	if err := checkStatus(OpPoll, resp); err != nil {
		return nil, err
	}

	var events []domain.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.Event{}, nil
		}
		return nil, fmt.Errorf("decode polling response: %w", err)
	}
	return events, nil
}

type ackItem struct {
	ID string `json:"id"`
}

func (c *Client) Acknowledge(ctx context.Context, token string, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	items := make([]ackItem, 0, len(eventIDs))
	for _, id := range eventIDs {
		items = append(items, ackItem{ID: id})
	}
	body, err := json.Marshal(items)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+acknowledgePath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req, token)

	resp, err := c.do(ctx, OpAcknowledge, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(OpAcknowledge, resp)
}

func (c *Client) GetOrderDetails(ctx context.Context, token, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, domain.ErrInvalidEvent
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+orderPath+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	setBearer(req, token)

	resp, err := c.do(ctx, OpOrderDetails, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(OpOrderDetails, resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientNetworkError{Op: OpOrderDetails, Err: err}
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("%w: decode order %s: %v", domain.ErrInvalidOrder, orderID, err)
	}
	order.Raw = raw
	return &order, nil
}

func (c *Client) SendStatus(ctx context.Context, token, orderID, action string) error {
	endpoint := c.baseURL + statusPath + url.PathEscape(orderID) + "/" + url.PathEscape(action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	setBearer(req, token)

	resp, err := c.do(ctx, OpSendStatus, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(OpSendStatus, resp)
}

// do executes req inside a client span and records latency. Transport
// failures come back as TransientNetworkError.
func (c *Client) do(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer("orderbridge/partner").Start(ctx, "partner."+op)
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObservePartnerRequest(op, "network", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("partner.request.failed", zap.String("op", op), zap.Error(err))
		return nil, &domain.TransientNetworkError{Op: op, Err: err}
	}
	c.metrics.ObservePartnerRequest(op, statusClass(resp.StatusCode), time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body := readErrorBody(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return &domain.AuthError{StatusCode: resp.StatusCode, Body: body}
	}
	return &domain.APIRequestError{Op: op, StatusCode: resp.StatusCode, Body: body}
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
