package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxzoid/settlementcore/internal/outbox"
)

func TestLogSinkAlwaysSucceeds(t *testing.T) {
	s := NewLogSink()
	err := s.Deliver(context.Background(), outbox.Envelope{OrderID: "order-1", EventType: "order.created"})
	assert.NoError(t, err)
}

func TestHubDeliverNeverFailsWithNoClients(t *testing.T) {
	h := NewHub()
	err := h.Deliver(context.Background(), outbox.Envelope{OrderID: "order-1", EventType: "order.created"})
	assert.NoError(t, err)
}

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &client{send: make(chan []byte, 4)}
	h.register <- c
	defer func() { h.unregister <- c }()

	payload := json.RawMessage(`{"foo":"bar"}`)
	require.NoError(t, h.Deliver(context.Background(), outbox.Envelope{OrderID: "order-1", EventType: "order.accepted", Payload: payload}))

	select {
	case msg := <-c.send:
		var evt wsEvent
		require.NoError(t, json.Unmarshal(msg, &evt))
		assert.Equal(t, "order-1", evt.OrderID)
		assert.Equal(t, "order.accepted", evt.EventType)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &client{send: make(chan []byte, 4)}
	h.register <- c
	time.Sleep(10 * time.Millisecond)
	h.unregister <- c
	time.Sleep(10 * time.Millisecond)

	_, open := <-c.send
	assert.False(t, open, "send channel should be closed after unregister")
}

type fakeSink struct {
	delivered []outbox.Envelope
	err       error
}

func (f *fakeSink) Deliver(ctx context.Context, env outbox.Envelope) error {
	f.delivered = append(f.delivered, env)
	return f.err
}

func TestMultiDeliversToEverySinkAndReturnsFirstError(t *testing.T) {
	s1 := &fakeSink{err: errors.New("sink one failed")}
	s2 := &fakeSink{}

	m := Multi{Sinks: []outbox.Sink{s1, s2}}
	err := m.Deliver(context.Background(), outbox.Envelope{OrderID: "order-1"})

	assert.EqualError(t, err, "sink one failed")
	assert.Len(t, s1.delivered, 1)
	assert.Len(t, s2.delivered, 1, "second sink must still run even though the first failed")
}
