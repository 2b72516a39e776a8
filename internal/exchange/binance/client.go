// Package binance implements the exchange surface against the Binance spot
// and USDT-margined futures REST APIs.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"binance-trader/internal/alert"
	"binance-trader/internal/config"
	"binance-trader/internal/core"
	"binance-trader/internal/exchange"
	"binance-trader/internal/journal"
	"binance-trader/internal/jsonscan"
	"binance-trader/internal/vault"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthAPIKey
	AuthSigned
)

// Confirmer decides whether an order proceeds with an adjusted quantity when
// validation produced a warning that must not be applied silently.
type Confirmer interface {
	ConfirmAdjustment(outcome core.ValidationOutcome) bool
}

type Client struct {
	session        *vault.Session
	spotBaseURL    string
	futuresBaseURL string
	recvWindow     time.Duration

	// Order submissions fail fast; reads tolerate slower responses.
	orderClient *http.Client
	readClient  *http.Client

	sellRetry   RetryPolicy
	notionalCap decimal.Decimal
	log         *logrus.Logger

	mu      sync.Mutex
	alerter alert.Alerter
	confirm Confirmer
	journal journal.Recorder
}

var _ exchange.Exchange = (*Client)(nil)

type Options struct {
	SpotBaseURL       string
	FuturesBaseURL    string
	RecvWindowMs      int64
	OrderTimeout      time.Duration
	ReadTimeout       time.Duration
	SellRetryAttempts int
	SellRetryBackoff  time.Duration
	MaxOrderNotional  decimal.Decimal
}

func NewClient(cfg config.ExchangeConfig, session *vault.Session, log *logrus.Logger) *Client {
	return NewClientWithOptions(session, Options{
		SpotBaseURL:       cfg.SpotBaseURL,
		FuturesBaseURL:    cfg.FuturesBaseURL,
		RecvWindowMs:      cfg.RecvWindowMs,
		OrderTimeout:      time.Duration(cfg.OrderTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSec) * time.Second,
		SellRetryAttempts: cfg.SellRetryAttempts,
		SellRetryBackoff:  time.Duration(cfg.SellRetryBackoffSec) * time.Second,
		MaxOrderNotional:  cfg.MaxOrderNotional.Decimal,
	}, log)
}

func NewClientWithOptions(session *vault.Session, opts Options, log *logrus.Logger) *Client {
	orderTimeout := opts.OrderTimeout
	if orderTimeout <= 0 {
		orderTimeout = 15 * time.Second
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Client{
		session:        session,
		spotBaseURL:    strings.TrimRight(opts.SpotBaseURL, "/"),
		futuresBaseURL: strings.TrimRight(opts.FuturesBaseURL, "/"),
		recvWindow:     time.Duration(opts.RecvWindowMs) * time.Millisecond,
		orderClient:    newHTTPClient(orderTimeout),
		readClient:     newHTTPClient(readTimeout),
		sellRetry:      sellRetryPolicy(opts.SellRetryAttempts, opts.SellRetryBackoff),
		notionalCap:    opts.MaxOrderNotional,
		log:            log,
	}
}

// newHTTPClient bounds the connect phase separately from the full exchange,
// at a third of the total budget.
func newHTTPClient(total time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: total / 3}
	return &http.Client{
		Timeout: total,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: total / 3,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (c *Client) Name() string { return "binance" }

func (c *Client) SetAlerter(alerter alert.Alerter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerter = alerter
}

func (c *Client) SetConfirmer(confirm Confirmer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirm = confirm
}

func (c *Client) SetJournal(rec journal.Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal = rec
}

func (c *Client) orderEvent(event string, fields map[string]string) {
	c.mu.Lock()
	alerter := c.alerter
	c.mu.Unlock()
	if alerter == nil {
		return
	}
	alerter.OrderEvent(event, fields)
}

func (c *Client) confirmer() Confirmer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirm
}

func (c *Client) record(e journal.Entry) {
	c.mu.Lock()
	rec := c.journal
	c.mu.Unlock()
	if rec == nil {
		return
	}
	if err := rec.Record(e); err != nil {
		c.log.WithFields(logrus.Fields{
			"symbol": e.Symbol,
			"error":  err.Error(),
		}).Warn("journal write failed")
	}
}

// spotRequest and futuresRequest are single-attempt requests against the
// respective hosts using the read client.
func (c *Client) spotRequest(ctx context.Context, method, path string, params url.Values, auth AuthType) ([]byte, error) {
	return c.request(ctx, c.readClient, method, c.spotBaseURL, path, params, auth, singleAttempt)
}

func (c *Client) futuresRequest(ctx context.Context, method, path string, params url.Values, auth AuthType) ([]byte, error) {
	return c.request(ctx, c.readClient, method, c.futuresBaseURL, path, params, auth, singleAttempt)
}

// spotOrderRequest and futuresOrderRequest go through the short-deadline
// order client.
func (c *Client) spotOrderRequest(ctx context.Context, method, path string, params url.Values, policy RetryPolicy) ([]byte, error) {
	return c.request(ctx, c.orderClient, method, c.spotBaseURL, path, params, AuthSigned, policy)
}

func (c *Client) futuresOrderRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	return c.request(ctx, c.orderClient, method, c.futuresBaseURL, path, params, AuthSigned, singleAttempt)
}

// request executes up to policy.attempts() attempts. The query, timestamp
// and signature are rebuilt on every attempt so retries never reuse a stale
// signature.
func (c *Client) request(ctx context.Context, httpc *http.Client, method, baseURL, path string, params url.Values, auth AuthType, policy RetryPolicy) ([]byte, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		body, err := c.doRequest(ctx, httpc, method, baseURL, path, params, auth)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !policy.shouldRetry(attempt, err) {
			return nil, lastErr
		}
		c.log.WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("request failed, retrying")
		if err := policy.sleep(ctx); err != nil {
			return nil, lastErr
		}
	}
}

func (c *Client) doRequest(ctx context.Context, httpc *http.Client, method, baseURL, path string, params url.Values, auth AuthType) ([]byte, error) {
	query := params.Encode()
	var apiKey string
	if auth == AuthAPIKey || auth == AuthSigned {
		creds, err := c.session.Credentials()
		if err != nil {
			return nil, err
		}
		apiKey = creds.APIKey
		if auth == AuthSigned {
			query = c.signQuery(query, creds.SecretKey)
		}
	}

	var (
		req *http.Request
		err error
	)
	urlStr := baseURL + path
	if method == http.MethodGet || method == http.MethodDelete {
		if query != "" {
			urlStr += "?" + query
		}
		req, err = http.NewRequestWithContext(ctx, method, urlStr, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(query))
	}
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet && method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", apiKey)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	if len(body) == 0 {
		return nil, &TransportError{Kind: TransportEmptyResponse}
	}
	return body, nil
}

// signQuery appends recvWindow and timestamp after the canonical encoding,
// signs the result, and appends the signature last. The signed payload is
// byte-identical to what goes on the wire minus the signature pair itself.
func (c *Client) signQuery(query, secret string) string {
	if c.recvWindow > 0 {
		query = appendPair(query, "recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	query = appendPair(query, "timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	return appendPair(query, "signature", sign(secret, query))
}

func appendPair(query, key, value string) string {
	if query == "" {
		return key + "=" + value
	}
	return query + "&" + key + "=" + value
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseAPIError(status int, body []byte) error {
	text := string(body)
	if msg := jsonscan.String(text, "msg"); msg != "" {
		code, _ := jsonscan.Int(text, "code")
		return wrapAPIError(code, msg)
	}
	// Raw body preserved when the error payload is not the usual shape.
	return APIError{Code: status, Msg: strings.TrimSpace(text)}
}
