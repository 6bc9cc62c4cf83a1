package cartsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/pkg/httpclient"
	"github.com/gothglitter/storefront/pkg/httputil"
	"github.com/gothglitter/storefront/pkg/tracing"
	"github.com/gothglitter/storefront/pkg/validator"
)

const serviceName = "storefront"

// Transport issues session-scoped calls to the storefront. Reads and
// mutations go through separate doers: reads are retried, mutations never
// are, since a retried reserve could hold a unit twice.
type Transport struct {
	base   *url.URL
	read   httpclient.Doer
	write  httpclient.Doer
	jar    http.CookieJar
	logger *slog.Logger
}

// NewTransport builds a transport with its own cookie jar, so every
// Transport is one storefront session.
func NewTransport(cfg Config, logger *slog.Logger) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(cfg.BaseURL)
	if base.Path == "" {
		base.Path = "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	readCfg := httpclient.Config{
		Timeout:         cfg.RequestTimeout,
		MaxRetries:      cfg.ReadRetries,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    time.Second,
		MaxConnsPerHost: 8,
		Jar:             jar,
	}
	writeCfg := readCfg
	writeCfg.MaxRetries = 0

	readCB := httpclient.DefaultCircuitBreakerConfig("storefront-read")
	readCB.Timeout = cfg.BreakerCooldown
	writeCB := httpclient.DefaultCircuitBreakerConfig("storefront-write")
	writeCB.Timeout = cfg.BreakerCooldown

	return &Transport{
		base:   base,
		read:   httpclient.NewCircuitBreakerClient(httpclient.New(readCfg), readCB, logger).WithFallback(breakerOpen),
		write:  httpclient.NewCircuitBreakerClient(httpclient.New(writeCfg), writeCB, logger).WithFallback(breakerOpen),
		jar:    jar,
		logger: logger,
	}, nil
}

// SessionID returns the SESSION cookie the storefront issued, if any.
func (t *Transport) SessionID() string {
	for _, c := range t.jar.Cookies(t.base) {
		if c.Name == "SESSION" {
			return c.Value
		}
	}
	return ""
}

func (t *Transport) mutate(ctx context.Context, q url.Values, elem ...string) (*http.Response, error) {
	return t.do(ctx, t.write, http.MethodPost, q, nil, elem...)
}

// post sends body as JSON on the non-retrying path.
func (t *Transport) post(ctx context.Context, body any, elem ...string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return t.do(ctx, t.write, http.MethodPost, nil, payload, elem...)
}

func (t *Transport) fetch(ctx context.Context, q url.Values, elem ...string) (*http.Response, error) {
	return t.do(ctx, t.read, http.MethodGet, q, nil, elem...)
}

func (t *Transport) do(ctx context.Context, d httpclient.Doer, method string, q url.Values, payload []byte, elem ...string) (*http.Response, error) {
	u := t.base.JoinPath(elem...)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, u.Path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectHTTP(ctx, req)

	resp, err := d.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	return resp, nil
}

// breakerOpen reports a tripped breaker as an unavailable storefront so
// callers treat it like any other outage.
func breakerOpen(_ context.Context, err error) (*http.Response, error) {
	return nil, &apperrors.AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: serviceName + " circuit open",
		Status:  http.StatusServiceUnavailable,
		Err:     fmt.Errorf("%w: %w", apperrors.ErrServiceUnavail, err),
	}
}

func decode[T any](resp *http.Response) (T, error) {
	defer func() { _ = resp.Body.Close() }()
	return httputil.DecodeData[T](resp.Body)
}

func checkProductID(id string) error {
	if err := validator.Var(id, "required,productid"); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid product id %q", id))
	}
	return nil
}

func qty(n int) url.Values {
	return url.Values{"qty": []string{fmt.Sprint(n)}}
}
