// Package client is the transport collaborator: it speaks the authority's HTTP API
// and maps every answer onto domain records or a classified domain.Failure.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/ingest"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Credentials 每次调用显式传入的凭证
// Passed per call; the client itself holds no token.
type Credentials struct {
	Token string
	OrgID string
}

// OrgHeader carries Credentials.OrgID.
const OrgHeader = "X-Org-Id"

// envelope 服务端统一响应格式
type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client 告警服务 API 客户端
type Client struct {
	httpClient *resty.Client
	normalizer *ingest.Normalizer
	logger     *zap.Logger
}

type Option func(*options)

type options struct {
	timeout      time.Duration
	retryCount   int
	retryWait    time.Duration
	retryMaxWait time.Duration
	normalizer   *ingest.Normalizer
	roundTripper http.RoundTripper
}

func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithRetry sets how often reads are retried on transport failures and the wait between tries.
func WithRetry(count int, wait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retryCount, o.retryWait, o.retryMaxWait = count, wait, maxWait
	}
}

func WithNormalizer(n *ingest.Normalizer) Option { return func(o *options) { o.normalizer = n } }

func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.roundTripper = rt } }

// New 创建客户端
func New(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{
		timeout:      10 * time.Second,
		retryCount:   3,
		retryWait:    1 * time.Second,
		retryMaxWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.normalizer == nil {
		o.normalizer = ingest.NewNormalizer(logger)
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(o.timeout).
		SetRetryCount(o.retryCount).
		SetRetryWaitTime(o.retryWait).
		SetRetryMaxWaitTime(o.retryMaxWait).
		SetHeader("Accept", "application/json").
		// 只重试读请求；状态迁移不可重复提交
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			if r.Request.Context().Err() != nil {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if o.roundTripper != nil {
		httpClient.SetTransport(o.roundTripper)
	}

	return &Client{
		httpClient: httpClient,
		normalizer: o.normalizer,
		logger:     logger,
	}
}

func (c *Client) request(ctx context.Context, cred Credentials) *resty.Request {
	req := c.httpClient.R().SetContext(ctx)
	if cred.Token != "" {
		req.SetAuthToken(cred.Token)
	}
	if cred.OrgID != "" {
		req.SetHeader(OrgHeader, cred.OrgID)
	}
	return req
}

// do executes req and returns the envelope's result payload on success.
func (c *Client) do(ctx context.Context, req *resty.Request, method, path string) (json.RawMessage, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("Authority call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		f := &domain.Failure{Kind: domain.KindTransport, Message: method + " " + path, Err: err}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			f.Err = ctxErr
		}
		return nil, f
	}

	status := resp.StatusCode()
	var env envelope
	parseErr := json.Unmarshal(resp.Body(), &env)

	if status >= 200 && status < 300 {
		if parseErr != nil || env.Code == 0 {
			return nil, &domain.Failure{Kind: domain.KindMalformed, Status: status, Message: method + " " + path + ": unreadable envelope", Err: parseErr}
		}
		if env.Code == domain.CodeSuccess {
			return env.Result, nil
		}
	}

	f := &domain.Failure{
		Kind:    domain.KindForResponse(status, env.Code),
		Code:    env.Code,
		Status:  status,
		Message: env.Message,
	}
	if f.Message == "" {
		f.Message = method + " " + path + ": " + http.StatusText(status)
	}
	c.logger.Warn("Authority rejected call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", status),
		zap.Int("code", env.Code),
		zap.String("kind", f.Kind.String()),
		zap.String("message", env.Message),
	)
	return nil, f
}

func malformed(what string, err error) error {
	var f *domain.Failure
	if errors.As(err, &f) && f.Kind == domain.KindMalformed {
		return f
	}
	return &domain.Failure{Kind: domain.KindMalformed, Message: what, Err: err}
}

func (c *Client) decodeAlert(raw json.RawMessage) (domain.Alert, error) {
	a, _, err := c.normalizer.DecodeAlertJSON(raw)
	if err != nil {
		return domain.Alert{}, malformed("alert", err)
	}
	return a, nil
}

func (c *Client) decodeAlerts(raw json.RawMessage) ([]domain.Alert, error) {
	alerts, _, err := c.normalizer.DecodeAlertsJSON(raw)
	if err != nil {
		return nil, malformed("alert list", err)
	}
	return alerts, nil
}

func (c *Client) decodeLabel(raw json.RawMessage) (domain.GroundTruthLabel, error) {
	l, _, err := c.normalizer.DecodeGroundTruthJSON(raw)
	if err != nil {
		return domain.GroundTruthLabel{}, malformed("ground truth", err)
	}
	return l, nil
}
