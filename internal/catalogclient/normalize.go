package catalogclient

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/bookverse/storefront/internal/domain/catalog"
	"github.com/bookverse/storefront/pkg/money"
)

// decodeBook reads one book object, accepting every field alias the backend
// has been observed to emit. Later spellings win when a payload carries more
// than one alias of the same field.
func (c *Client) decodeBook(d *jx.Decoder) (*catalog.Book, error) {
	var b catalog.Book
	var imageRef string

	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id", "book_id", "BookID":
			v, err := decodeStringOrInt(d)
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.ID = v
		case "title", "name":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.Title = v
		case "author":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.Author = v
		case "price", "unit_price", "unitPrice":
			v, err := decodePrice(d, c.cfg.CurrencyExponent)
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.Price = v
		case "category":
			v, err := decodeCategory(d)
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.Category = v
		case "image", "image_url", "cover", "imageRef":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			imageRef = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if b.ID == "" {
		return nil, errors.New("book has no id")
	}
	b.ImageURL = ResolveImageURL(c.cfg.ImageBaseURL, imageRef)
	return &b, nil
}

// decodeStringOrInt accepts ids serialized as either a JSON string or number.
func decodeStringOrInt(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("unexpected id type %v", d.Next())
	}
}

// decodePrice accepts a price as a JSON number or a numeric string (the
// backend's DecimalField serializes to a string) and converts major units to
// minor units.
func decodePrice(d *jx.Decoder, exponent int32) (money.Amount, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return 0, err
		}
		raw = v
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, err
		}
		raw = n.String()
	default:
		return 0, errors.Errorf("unexpected price type %v", d.Next())
	}

	dec, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, errors.Wrap(err, "parse price")
	}
	if dec.IsNegative() {
		return 0, errors.New("negative price")
	}
	return money.FromDecimal(dec, exponent), nil
}

// decodeCategory accepts either a plain string or a nested {id, name} object.
func decodeCategory(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Object:
		var name string
		err := d.Obj(func(d *jx.Decoder, key string) error {
			if key != "name" {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			name = v
			return nil
		})
		return name, err
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected category type %v", d.Next())
	}
}
