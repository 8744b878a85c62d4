package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/bookverse/storefront/pkg/money"
)

// Serialized cart form: an ordered JSON array of
// {id, title, unitPrice, quantity, imageRef} records. Field order is fixed so
// that encoding a decoded cart reproduces the stored bytes exactly.

// Encode serializes the snapshot for the persistence slot.
func Encode(items Snapshot) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, item := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.BookID)
		e.FieldStart("title")
		e.Str(item.Title)
		e.FieldStart("unitPrice")
		e.Int64(int64(item.UnitPrice))
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("imageRef")
		e.Str(item.ImageURL)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// Decode parses a previously encoded snapshot. Unknown fields are skipped so
// older payloads with extra keys still load.
func Decode(data []byte) (Snapshot, error) {
	d := jx.DecodeBytes(data)

	var items Snapshot
	if err := d.Arr(func(d *jx.Decoder) error {
		var item LineItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				if err != nil {
					return err
				}
				item.BookID = v
			case "title":
				v, err := d.Str()
				if err != nil {
					return err
				}
				item.Title = v
			case "unitPrice":
				v, err := d.Int64()
				if err != nil {
					return err
				}
				item.UnitPrice = money.Amount(v)
			case "quantity":
				v, err := d.Int()
				if err != nil {
					return err
				}
				item.Quantity = v
			case "imageRef":
				v, err := d.Str()
				if err != nil {
					return err
				}
				item.ImageURL = v
			default:
				return d.Skip()
			}
			return nil
		}); err != nil {
			return errors.Wrap(err, "line item")
		}
		items = append(items, item)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}

	return items, nil
}
