package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"binance-trader/internal/core"
	"binance-trader/internal/vault"
)

func testSession(t *testing.T) *vault.Session {
	t.Helper()
	s, err := vault.NewSession(vault.Credentials{APIKey: "k", SecretKey: "s"}, time.Hour)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func expiredSession(t *testing.T) *vault.Session {
	t.Helper()
	s, err := vault.NewSession(vault.Credentials{APIKey: "k", SecretKey: "s"}, time.Nanosecond)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	time.Sleep(time.Millisecond)
	return s
}

func testClient(t *testing.T, session *vault.Session, baseURL string) *Client {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClientWithOptions(session, Options{
		SpotBaseURL:    baseURL,
		FuturesBaseURL: baseURL,
		RecvWindowMs:   5000,
	}, log)
}

func TestSignMatchesReferenceHMAC(t *testing.T) {
	payload := "symbol=BTCUSDT&side=BUY&timestamp=1700000000000"
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(payload))
	want := hex.EncodeToString(mac.Sum(nil))
	if got := sign("secret", payload); got != want {
		t.Fatalf("sign() = %q, want %q", got, want)
	}
	if sign("secret", payload) != sign("secret", payload) {
		t.Fatalf("sign() not deterministic")
	}
}

func TestSignChangesWithOneByte(t *testing.T) {
	a := sign("secret", "symbol=BTCUSDT")
	b := sign("secret", "symbol=BTCUSDT&")
	if a == b {
		t.Fatalf("sign() identical for different payloads")
	}
	if sign("secres", "symbol=BTCUSDT") == a {
		t.Fatalf("sign() identical for different secrets")
	}
}

func TestSignedRequestWireShape(t *testing.T) {
	var gotQuery, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t, testSession(t), srv.URL)
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("side", "BUY")
	if _, err := c.spotRequest(context.Background(), http.MethodGet, "/api/v3/order", params, AuthSigned); err != nil {
		t.Fatalf("spotRequest() error = %v", err)
	}

	if gotAPIKey != "k" {
		t.Fatalf("X-MBX-APIKEY = %q, want k", gotAPIKey)
	}
	// Canonical params first, then recvWindow, timestamp, signature last.
	if !strings.HasPrefix(gotQuery, "side=BUY&symbol=BTCUSDT&recvWindow=5000&timestamp=") {
		t.Fatalf("query = %q, want canonical prefix", gotQuery)
	}
	sigPos := strings.Index(gotQuery, "&signature=")
	if sigPos < 0 || strings.Contains(gotQuery[sigPos+1:], "&") {
		t.Fatalf("query = %q, want signature as final pair", gotQuery)
	}
	payload := gotQuery[:sigPos]
	wantSig := sign("s", payload)
	if got := gotQuery[sigPos+len("&signature="):]; got != wantSig {
		t.Fatalf("signature = %q, want HMAC of %q", got, payload)
	}
}

func TestSignedPostSendsBody(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		if r.URL.RawQuery != "" {
			t.Errorf("POST carried query = %q, want body only", r.URL.RawQuery)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t, testSession(t), srv.URL)
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	if _, err := c.spotRequest(context.Background(), http.MethodPost, "/api/v3/order", params, AuthSigned); err != nil {
		t.Fatalf("spotRequest() error = %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q, want urlencoded", gotContentType)
	}
	if !strings.Contains(gotBody, "signature=") || !strings.Contains(gotBody, "timestamp=") {
		t.Fatalf("body = %q, want signed pairs", gotBody)
	}
}

func TestExpiredSessionFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server with an expired session")
	}))
	defer srv.Close()

	c := testClient(t, expiredSession(t), srv.URL)
	_, err := c.Account(context.Background())
	if !errors.Is(err, vault.ErrSessionExpired) {
		t.Fatalf("Account() error = %v, want ErrSessionExpired", err)
	}
}

func TestUnsignedRequestSkipsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-MBX-APIKEY") != "" {
			t.Errorf("unsigned request carried an API key")
		}
		w.Write([]byte(`{"serverTime":1700000000000}`))
	}))
	defer srv.Close()

	// Even a nil session serves public endpoints.
	c := testClient(t, nil, srv.URL)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestParseAPIErrorClassifiesSentinels(t *testing.T) {
	err := parseAPIError(http.StatusBadRequest, []byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Code != -2010 {
		t.Fatalf("AsAPIError() = %+v %v, want code -2010", apiErr, ok)
	}

	err = parseAPIError(http.StatusBadRequest, []byte(`{"code":-2013,"msg":"Order does not exist."}`))
	if !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestParseAPIErrorKeepsRawBody(t *testing.T) {
	err := parseAPIError(http.StatusBadGateway, []byte("bad gateway"))
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("error type = %T, want APIError", err)
	}
	if apiErr.Code != http.StatusBadGateway || apiErr.Msg != "bad gateway" {
		t.Fatalf("apiErr = %+v, want 502/raw body", apiErr)
	}
}

func TestClassifyTransportKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want TransportKind
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "api.invalid"}, TransportDNS},
		{"deadline", context.DeadlineExceeded, TransportTimeout},
		{"timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, TransportTimeout},
		{"connect", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, TransportConnect},
	}
	for _, tc := range cases {
		got := classifyTransport(&url.Error{Op: "Get", URL: "https://x", Err: tc.err})
		var trErr *TransportError
		if !errors.As(got, &trErr) {
			t.Fatalf("%s: classifyTransport() = %T, want TransportError", tc.name, got)
		}
		if trErr.Kind != tc.want {
			t.Fatalf("%s: kind = %v, want %v", tc.name, trErr.Kind, tc.want)
		}
	}
}

func TestIsTimeout(t *testing.T) {
	timeout := classifyTransport(context.DeadlineExceeded)
	if !IsTimeout(timeout) {
		t.Fatalf("IsTimeout(timeout) = false, want true")
	}
	if IsTimeout(classifyTransport(errors.New("refused"))) {
		t.Fatalf("IsTimeout(connect) = true, want false")
	}
	if IsTimeout(nil) {
		t.Fatalf("IsTimeout(nil) = true, want false")
	}
}

func TestEmptyResponseBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(t, nil, srv.URL)
	_, err := c.TickerPrice(context.Background(), "BTCUSDT")
	var trErr *TransportError
	if !errors.As(err, &trErr) || trErr.Kind != TransportEmptyResponse {
		t.Fatalf("error = %v, want empty-response transport error", err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
