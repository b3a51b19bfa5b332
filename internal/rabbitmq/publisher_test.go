package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (p *recordingPublisher) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func TestPublishMessage_Unit(t *testing.T) {
	type msg struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}

	tests := []struct {
		name    string
		message any
		pubErr  error
		wantErr bool
	}{
		{name: "ok", message: msg{ChatID: 1, Text: "hi"}},
		{name: "marshal error", message: struct{ Ch chan int }{Ch: make(chan int)}, wantErr: true},
		{name: "publish error", message: msg{}, pubErr: errors.New("channel closed"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPublisher{err: tt.pubErr}
			err := PublishMessage(p, Exchange, RoutingUser, tt.message)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Exchange, p.exchange)
			assert.Equal(t, RoutingUser, p.key)
			assert.Equal(t, "application/json", p.msg.ContentType)
			assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
			assert.JSONEq(t, `{"chat_id":1,"text":"hi"}`, string(p.msg.Body))
		})
	}
}

func TestPublishMessage_RoutesThroughExchange(t *testing.T) {
	ctx := context.Background()
	uri := amqpURIForTest(ctx, t)

	conn, err := Connect(ctx, uri, 3, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := SetupChannel(conn, GetNotificationQueues())
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, PublishMessage(ch, Exchange, RoutingOperator, map[string]any{"ok": true}))

	deliveries, err := ch.Consume("notifications.operator", "test-consumer", true, false, false, false, nil)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		var got map[string]any
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, true, got["ok"])
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message via exchange")
	}
}
