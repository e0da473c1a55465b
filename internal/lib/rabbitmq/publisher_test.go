package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reminderMsg struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

func TestPublishMessage_ReminderRouting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rabbitmq integration test in short mode")
	}
	ctx := context.Background()
	rmqContainer, cleanup := SetupRabbitMQContainer(ctx, t)
	defer cleanup()

	amqpURI, err := GetAmqpURI(ctx, rmqContainer)
	require.NoError(t, err)

	conn, err := Connect(amqpURI, 3, time.Second)
	require.NoError(t, err)
	defer func() {
		if err := conn.Close(); err != nil {
			t.Errorf("failed to close connection: %v", err)
		}
	}()

	ch, err := SetupChannel(conn, GetReminderQueues())
	require.NoError(t, err)
	defer func() {
		if err := ch.Close(); err != nil {
			t.Errorf("failed to close channel: %v", err)
		}
	}()

	t.Run("expiring reminder lands in expiring queue", func(t *testing.T) {
		msg := reminderMsg{AccountID: "acc-1", Email: "driver@example.co.uk"}
		require.NoError(t, PublishMessage(ch, NotificationsExchange, RoutingSubscriptionExpiring, msg))

		deliveries, err := ch.Consume("reminders.expiring", "test-consumer", true, false, false, false, nil)
		require.NoError(t, err)

		select {
		case d := <-deliveries:
			var got reminderMsg
			require.NoError(t, json.Unmarshal(d.Body, &got))
			assert.Equal(t, msg, got)
			assert.Equal(t, "application/json", d.ContentType)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("channel publisher routes expired reminder", func(t *testing.T) {
		msg := reminderMsg{AccountID: "acc-2", Email: "other@example.co.uk"}
		require.NoError(t, NewChannelPublisher(ch).Publish(NotificationsExchange, RoutingSubscriptionExpired, msg))

		deliveries, err := ch.Consume("reminders.expired", "test-consumer-expired", true, false, false, false, nil)
		require.NoError(t, err)

		select {
		case d := <-deliveries:
			var got reminderMsg
			require.NoError(t, json.Unmarshal(d.Body, &got))
			assert.Equal(t, msg, got)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("marshal error", func(t *testing.T) {
		badMsg := struct {
			Ch chan int `json:"ch"`
		}{
			Ch: make(chan int),
		}

		err := PublishMessage(ch, NotificationsExchange, RoutingSubscriptionExpired, badMsg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
	})
}
