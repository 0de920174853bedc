// Package events publishes order lifecycle changes to brokers and to live
// websocket watchers.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/multierr"
)

// Type names a lifecycle change. It doubles as the AMQP routing key.
type Type string

const (
	OrderCreated    Type = "order.created"
	PaymentAwaiting Type = "order.awaiting_payment"
	OrderCompleted  Type = "order.completed"
	OrderCancelled  Type = "order.cancelled"
)

// Event is the broker payload. Amount is whole Rupiah.
type Event struct {
	ID           string
	Type         Type
	OrderID      string
	Status       string
	Method       string
	Amount       int64
	CustomerName string
	Reason       string
	At           time.Time
}

// Encode writes e as a JSON object.
func (e Event) Encode(enc *jx.Encoder) {
	enc.ObjStart()
	enc.FieldStart("id")
	enc.Str(e.ID)
	enc.FieldStart("type")
	enc.Str(string(e.Type))
	enc.FieldStart("orderId")
	enc.Str(e.OrderID)
	enc.FieldStart("status")
	enc.Str(e.Status)
	if e.Method != "" {
		enc.FieldStart("method")
		enc.Str(e.Method)
	}
	enc.FieldStart("amount")
	enc.Int64(e.Amount)
	if e.CustomerName != "" {
		enc.FieldStart("customerName")
		enc.Str(e.CustomerName)
	}
	if e.Reason != "" {
		enc.FieldStart("reason")
		enc.Str(e.Reason)
	}
	enc.FieldStart("at")
	enc.Str(e.At.UTC().Format(time.RFC3339Nano))
	enc.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	enc := jx.GetEncoder()
	defer jx.PutEncoder(enc)
	e.Encode(enc)
	return append([]byte(nil), enc.Bytes()...), nil
}

// Decode reads an event written by Encode. Unknown fields are skipped.
func (e *Event) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			e.ID, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			e.Type = Type(s)
		case "orderId":
			e.OrderID, err = d.Str()
		case "status":
			e.Status, err = d.Str()
		case "method":
			e.Method, err = d.Str()
		case "amount":
			e.Amount, err = d.Int64()
		case "customerName":
			e.CustomerName, err = d.Str()
		case "reason":
			e.Reason, err = d.Str()
		case "at":
			var s string
			if s, err = d.Str(); err == nil {
				e.At, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(b []byte) error {
	return e.Decode(jx.DecodeBytes(b))
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every backend and reports all failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, e))
	}
	return err
}
