package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleEvent() Event {
	return Event{
		ID:           "e1",
		Type:         OrderCancelled,
		OrderID:      "o1",
		Status:       "cancelled",
		Amount:       33000,
		CustomerName: "Budi",
		Reason:       "Salah pesan",
		At:           time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestEvent_JSONShape(t *testing.T) {
	b, err := sampleEvent().MarshalJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "order.cancelled", raw["type"])
	assert.Equal(t, "o1", raw["orderId"])
	assert.EqualValues(t, 33000, raw["amount"])
	assert.Equal(t, "Salah pesan", raw["reason"])
	assert.NotContains(t, raw, "method")

	var back Event
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, sampleEvent(), back)
}

func TestEvent_DecodeSkipsUnknown(t *testing.T) {
	var e Event
	require.NoError(t, e.UnmarshalJSON([]byte(`{"type":"order.created","extra":{"a":[1,2]},"amount":5}`)))
	assert.Equal(t, OrderCreated, e.Type)
	assert.Equal(t, int64(5), e.Amount)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e Event) error {
	return m.Called(ctx, e).Error(0)
}

func TestMulti_PublishesToAll(t *testing.T) {
	ctx := context.Background()
	e := sampleEvent()

	ok := &mockPublisher{}
	ok.On("Publish", ctx, e).Return(nil).Once()
	failing := &mockPublisher{}
	failing.On("Publish", ctx, e).Return(errors.New("broker down")).Once()
	last := &mockPublisher{}
	last.On("Publish", ctx, e).Return(nil).Once()

	err := Multi{ok, failing, last}.Publish(ctx, e)
	require.ErrorContains(t, err, "broker down")

	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
	last.AssertExpectations(t)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafka_Publish(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{w: w}

	require.NoError(t, k.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("o1"), w.msgs[0].Key)
	assert.Equal(t, "type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("order.cancelled"), w.msgs[0].Headers[0].Value)

	w.err = errors.New("leader not available")
	require.ErrorContains(t, k.Publish(context.Background(), sampleEvent()), "kafka write")

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQP_Publish(t *testing.T) {
	ch := &fakeChannel{}
	a := NewAMQP(ch, "pos_orders")

	require.NoError(t, a.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "pos_orders", ch.exchange)
	assert.Equal(t, "order.cancelled", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "e1", ch.msg.MessageId)

	require.NoError(t, a.Close())
	assert.True(t, ch.closed)
}

func TestHub_FiltersByOrder(t *testing.T) {
	h := NewHub()
	one := h.Subscribe("o1")
	all := h.Subscribe("")
	defer one.Close()
	defer all.Close()

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, Event{OrderID: "o2", Type: OrderCreated}))
	require.NoError(t, h.Publish(ctx, Event{OrderID: "o1", Type: OrderCompleted}))

	got := <-one.C()
	assert.Equal(t, OrderCompleted, got.Type)
	select {
	case e := <-one.C():
		t.Fatalf("unexpected event %v", e)
	default:
	}

	assert.Equal(t, "o2", (<-all.C()).OrderID)
	assert.Equal(t, "o1", (<-all.C()).OrderID)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("o1")

	for range subscriberBuffer * 2 {
		require.NoError(t, h.Publish(context.Background(), Event{OrderID: "o1"}))
	}
	assert.Len(t, s.ch, subscriberBuffer)

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Len())

	_, open := <-s.C()
	for open {
		_, open = <-s.C()
	}
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.Publish(context.Background(), sampleEvent()))
}
