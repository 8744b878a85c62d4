package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/domain/catalog"
)

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	var (
		books []catalog.Book
		err   error
	)
	if q := r.URL.Query().Get("search"); q != "" {
		books, err = h.books.Search(r.Context(), q)
	} else {
		books, err = h.books.List(r.Context(), r.URL.Query().Get("category"))
	}
	if err != nil {
		zctx.From(r.Context()).Error("catalog list failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, b := range books {
		encodeBook(&e, b)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)

	book, err := h.books.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		zctx.From(r.Context()).Error("catalog fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	if h.tracker != nil {
		h.tracker.TrackView(st.ID, book.ID)
	}

	var e jx.Encoder
	encodeBook(&e, *book)
	writeJSON(w, http.StatusOK, &e)
}

func encodeBook(e *jx.Encoder, b catalog.Book) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(b.ID)
	e.FieldStart("title")
	e.Str(b.Title)
	e.FieldStart("author")
	e.Str(b.Author)
	e.FieldStart("price")
	e.Int64(int64(b.Price))
	e.FieldStart("category")
	e.Str(b.Category)
	e.FieldStart("image")
	e.Str(b.ImageURL)
	e.ObjEnd()
}
