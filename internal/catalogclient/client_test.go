package catalogclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookverse/storefront/internal/domain/catalog"
	"github.com/bookverse/storefront/pkg/money"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, CurrencyExponent: 0}, srv.Client())
}

func TestGetByID_CanonicalShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/catalog/books/B1/", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"B1","title":"Dune","author":"Frank Herbert","price":150000,"category":"sci-fi","image":"dune.jpg"}`))
	})

	book, err := c.GetByID(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, "B1", book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, money.Amount(150000), book.Price)
	assert.Contains(t, book.ImageURL, "/media/book_images/dune.jpg")
}

func TestGetByID_NormalizesAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "snake_case ids and prices", body: `{"book_id":"B1","name":"Dune","unit_price":"150000","image_url":"/covers/dune.jpg"}`},
		{name: "camelCase price, cover alias", body: `{"BookID":"B1","title":"Dune","unitPrice":150000,"cover":"http://cdn/dune.jpg"}`},
		{name: "numeric id, nested category", body: `{"id":1,"title":"Dune","price":"150000","category":{"id":3,"name":"sci-fi"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			book, err := c.GetByID(context.Background(), "B1")
			require.NoError(t, err)
			assert.NotEmpty(t, book.ID)
			assert.Equal(t, "Dune", book.Title)
			assert.Equal(t, money.Amount(150000), book.Price)
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetByID(context.Background(), "B404")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGetByID_RejectsNegativePrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"B1","title":"Dune","price":"-5"}`))
	})

	_, err := c.GetByID(context.Background(), "B1")
	require.Error(t, err)
}

func TestList_PaginatedAndBareArray(t *testing.T) {
	bodies := []string{
		`{"count":2,"results":[{"id":"B1","title":"Dune","price":1},{"id":"B2","title":"Hyperion","price":2}]}`,
		`[{"id":"B1","title":"Dune","price":1},{"id":"B2","title":"Hyperion","price":2}]`,
	}

	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		books, err := c.List(context.Background(), "all")
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "B1", books[0].ID)
		assert.Equal(t, "B2", books[1].ID)
	}
}

func TestSearch_SendsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dune", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`[]`))
	})

	books, err := c.Search(context.Background(), "dune")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestResolveImageURL(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "empty gives placeholder", ref: "", want: "/placeholder.png"},
		{name: "absolute passes through", ref: "https://cdn.example/x.jpg", want: "https://cdn.example/x.jpg"},
		{name: "rooted joins host", ref: "/covers/x.jpg", want: "https://api.example/covers/x.jpg"},
		{name: "bare name gets media prefix", ref: "x.jpg", want: "https://api.example/media/book_images/x.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveImageURL("https://api.example", tt.ref))
		})
	}
}
