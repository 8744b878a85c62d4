// Package catalogclient is the HTTP client for the remote catalog backend.
//
// The backend's JSON is not shape-stable: depending on the endpoint the same
// book arrives with different field spellings (id/book_id, price/unit_price,
// image/image_url/cover). All of that is normalized here, at the boundary,
// into the one canonical catalog.Book shape — nothing downstream ever sees an
// alias.
package catalogclient

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookverse/storefront/internal/domain/catalog"
)

var _ catalog.Source = (*Client)(nil)

// Config holds the catalog client configuration.
type Config struct {
	// BaseURL is the catalog backend root, e.g. "https://api.bookverse.example".
	BaseURL string
	// ImageBaseURL is the host used to resolve relative image references.
	// When empty, BaseURL is used.
	ImageBaseURL string
	// CurrencyExponent converts catalog major-unit prices into minor units.
	CurrencyExponent int32
}

// Client implements catalog.Source over the backend's REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a catalog client. The transport is instrumented for tracing.
func New(cfg Config, client *http.Client) *Client {
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = cfg.BaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(base)

	return &Client{cfg: cfg, http: client}
}

// GetByID fetches one book. Returns catalog.ErrNotFound on 404.
func (c *Client) GetByID(ctx context.Context, id string) (*catalog.Book, error) {
	data, err := c.get(ctx, "/api/v1/catalog/books/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}

	book, err := c.decodeBook(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode book")
	}
	return book, nil
}

// List fetches books, optionally filtered by category.
func (c *Client) List(ctx context.Context, category string) ([]catalog.Book, error) {
	q := url.Values{}
	if category != "" && category != "all" {
		q.Set("category", category)
	}
	return c.listBooks(ctx, q)
}

// Search fetches books matching the query string.
func (c *Client) Search(ctx context.Context, query string) ([]catalog.Book, error) {
	q := url.Values{}
	q.Set("search", query)
	return c.listBooks(ctx, q)
}

func (c *Client) listBooks(ctx context.Context, q url.Values) ([]catalog.Book, error) {
	data, err := c.get(ctx, "/api/v1/catalog/books/", q)
	if err != nil {
		return nil, err
	}

	// The backend paginates as {count, results: [...]}, but some deployments
	// return a bare array. Accept both.
	d := jx.DecodeBytes(data)
	var books []catalog.Book
	switch d.Next() {
	case jx.Array:
		if err := d.Arr(func(d *jx.Decoder) error {
			b, err := c.decodeBook(d)
			if err != nil {
				return err
			}
			books = append(books, *b)
			return nil
		}); err != nil {
			return nil, errors.Wrap(err, "decode book list")
		}
	case jx.Object:
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			if key != "results" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				b, err := c.decodeBook(d)
				if err != nil {
					return err
				}
				books = append(books, *b)
				return nil
			})
		}); err != nil {
			return nil, errors.Wrap(err, "decode book page")
		}
	default:
		return nil, errors.New("unexpected catalog response shape")
	}

	return books, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "catalog request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, catalog.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("catalog backend returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	return data, nil
}
