// Package paypal implements the checkout payment gateway against the PayPal
// Orders v2 REST API.
package paypal

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookverse/storefront/internal/domain/checkout"
	"github.com/bookverse/storefront/pkg/money"
)

var _ checkout.PaymentGateway = (*Client)(nil)

// Config holds PayPal API credentials and environment settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://api-m.sandbox.paypal.com".
	BaseURL  string
	ClientID string
	Secret   string
	// Currency is the ISO 4217 code sent with order amounts.
	Currency string
	// CurrencyExponent converts minor-unit amounts to the API's major units.
	CurrencyExponent int32
}

// Client talks to PayPal. An OAuth2 client-credentials token is fetched
// lazily and cached until shortly before expiry.
type Client struct {
	cfg  Config
	http *http.Client

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a PayPal client. The transport is instrumented for tracing.
func New(cfg Config, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(base)

	return &Client{cfg: cfg, http: client}
}

// CreateOrder registers a CAPTURE-intent order for the given amount and
// returns the PayPal order id the buyer must approve.
func (c *Client) CreateOrder(ctx context.Context, amount money.Amount) (string, error) {
	value := amount.Decimal(c.cfg.CurrencyExponent).StringFixed(c.cfg.CurrencyExponent)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("intent")
	e.Str("CAPTURE")
	e.FieldStart("purchase_units")
	e.ArrStart()
	e.ObjStart()
	e.FieldStart("amount")
	e.ObjStart()
	e.FieldStart("currency_code")
	e.Str(c.cfg.Currency)
	e.FieldStart("value")
	e.Str(value)
	e.ObjEnd()
	e.ObjEnd()
	e.ArrEnd()
	e.ObjEnd()

	data, err := c.post(ctx, "/v2/checkout/orders", e.Bytes())
	if err != nil {
		return "", errors.Wrap(err, "create order")
	}

	var orderID string
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		orderID = v
		return nil
	}); err != nil {
		return "", errors.Wrap(err, "decode create response")
	}
	if orderID == "" {
		return "", errors.New("create response has no order id")
	}

	return orderID, nil
}

// Capture finalizes an approved order into a charge. A non-COMPLETED capture
// status maps to checkout.ErrPaymentDeclined.
func (c *Client) Capture(ctx context.Context, externalOrderID string) (*checkout.CaptureResult, error) {
	data, err := c.post(ctx, "/v2/checkout/orders/"+externalOrderID+"/capture", []byte(`{}`))
	if err != nil {
		return nil, errors.Wrap(err, "capture order")
	}

	status, txID, err := parseCapture(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode capture response")
	}
	if status != "COMPLETED" {
		return nil, errors.Wrapf(checkout.ErrPaymentDeclined, "capture status %s", status)
	}

	return &checkout.CaptureResult{TransactionID: txID}, nil
}

// parseCapture extracts the order status and the first capture transaction id
// from a capture response.
func parseCapture(data []byte) (status, txID string, err error) {
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			if err != nil {
				return err
			}
			status = v
			return nil
		case "purchase_units":
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "payments" {
						return d.Skip()
					}
					return d.Obj(func(d *jx.Decoder, key string) error {
						if key != "captures" {
							return d.Skip()
						}
						return d.Arr(func(d *jx.Decoder) error {
							return d.Obj(func(d *jx.Decoder, key string) error {
								if key != "id" {
									return d.Skip()
								}
								v, err := d.Str()
								if err != nil {
									return err
								}
								if txID == "" {
									txID = v
								}
								return nil
							})
						})
					})
				})
			})
		default:
			return d.Skip()
		}
	})
	return status, txID, err
}

// post sends an authenticated JSON request and returns the response body.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "paypal request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("paypal returned %d: %s", resp.StatusCode, truncate(data, 200))
	}
	return data, nil
}

// accessToken returns a cached OAuth2 token, refreshing it when it is within
// a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var (
		token     string
		expiresIn int64
	)
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "access_token":
			v, err := d.Str()
			if err != nil {
				return err
			}
			token = v
		case "expires_in":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			expiresIn = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}
	if token == "" {
		return "", errors.New("token response has no access_token")
	}

	c.token = token
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return c.token, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
