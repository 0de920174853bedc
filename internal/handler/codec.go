package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/menu"
	"github.com/xenking/warung-pos/internal/domain/order"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeObject reads a JSON object body and calls field for every key.
// Unknown keys must be skipped by field via d.Skip.
func decodeObject(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadJSON, err.Error())
	}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return errors.Wrap(errBadJSON, "expected object")
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return field(d, string(key))
	}); err != nil {
		return errors.Wrap(errBadJSON, err.Error())
	}
	return nil
}

// decodeString accepts a JSON string or number and returns its text.
func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Int64(d.IntPart())
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeMenuItem(e *jx.Encoder, it menu.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("category")
	e.Str(string(it.Category))
	e.FieldStart("price")
	money(e, it.Price)
	e.FieldStart("description")
	e.Str(it.Description)
	e.FieldStart("available")
	e.Bool(it.Available)
	e.ObjEnd()
}

func encodeReceipt(e *jx.Encoder, rc *order.Receipt) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(rc.ID)
	e.FieldStart("orderId")
	e.Str(rc.OrderID)
	e.FieldStart("method")
	e.Str(string(rc.Method))
	e.FieldStart("amount")
	money(e, rc.Amount)
	e.FieldStart("status")
	e.Str(string(rc.Status))
	e.FieldStart("printedAt")
	timestamp(e, rc.PrintedAt)
	e.ObjEnd()
}

func encodeCancellation(e *jx.Encoder, c cancellation.Record) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(c.OrderID)
	e.FieldStart("reason")
	e.Str(c.Reason)
	e.FieldStart("cancelledAt")
	timestamp(e, c.CancelledAt)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("customerId")
	e.Str(o.CustomerID)
	e.FieldStart("customerName")
	e.Str(o.CustomerName)
	if o.Note != "" {
		e.FieldStart("note")
		e.Str(o.Note)
	}
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("total")
	money(e, o.Total)

	e.FieldStart("items")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("menuItemId")
		e.Str(l.MenuItemID)
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		money(e, l.UnitPrice)
		e.FieldStart("subtotal")
		money(e, l.Subtotal())
		e.ObjEnd()
	}
	e.ArrEnd()

	if p := o.Payment; p != nil {
		e.FieldStart("payment")
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("method")
		e.Str(string(p.Method))
		e.FieldStart("amount")
		money(e, p.Amount)
		e.FieldStart("status")
		e.Str(string(p.Status))
		if p.CashierID != "" {
			e.FieldStart("cashierId")
			e.Str(p.CashierID)
		}
		if p.PaidAt != nil {
			e.FieldStart("paidAt")
			timestamp(e, *p.PaidAt)
		}
		e.ObjEnd()
	}
	if o.Receipt != nil {
		e.FieldStart("receipt")
		encodeReceipt(e, o.Receipt)
	}
	if o.Cancellation != nil {
		e.FieldStart("cancellation")
		encodeCancellation(e, *o.Cancellation)
	}
	e.FieldStart("createdAt")
	timestamp(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	timestamp(e, o.UpdatedAt)
	e.ObjEnd()
}
