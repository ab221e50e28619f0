package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/notification"
)

var at = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func TestMessage(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.Event
		wantKey string
	}{
		{
			name:    "created alert keyed by module",
			event:   domain.Event{Type: domain.EventAlertCreated, Alert: &domain.Alert{ID: 1, Module: domain.ModuleInventory, Title: "Low stock"}, At: at},
			wantKey: "Inventory",
		},
		{
			name:    "refresh keyed by type",
			event:   domain.Event{Type: domain.EventAlertsRefresh, Count: 3, At: at},
			wantKey: "ALERTS_REFRESH",
		},
		{
			name:    "update without module keyed by type",
			event:   domain.Event{Type: domain.EventAlertUpdated, Alert: &domain.Alert{ID: 2, IsRead: true}, At: at},
			wantKey: "ALERT_UPDATED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Message("sphincs.alerts", tt.event)
			require.NoError(t, err)
			require.Equal(t, "sphincs.alerts", msg.Topic)
			require.Equal(t, at, msg.Timestamp)

			key, err := msg.Key.Encode()
			require.NoError(t, err)
			require.Equal(t, tt.wantKey, string(key))

			value, err := msg.Value.Encode()
			require.NoError(t, err)
			var decoded domain.Event
			require.NoError(t, json.Unmarshal(value, &decoded))
			require.Equal(t, tt.event.Type, decoded.Type)
		})
	}
}

func TestRelay_ForwardsEventsInOrder(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	bus := notification.NewBroadcaster(16)
	r := New(producer, "sphincs.alerts", bus.Subscribe(SubscriberName))

	sent := make(chan string, 3)
	record := func(msg *sarama.ProducerMessage) error {
		v, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev domain.Event
		if err := json.Unmarshal(v, &ev); err != nil {
			return err
		}
		sent <- string(ev.Type)
		return nil
	}
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(record)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndFail(record, errors.New("broker down"))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	bus.Publish(domain.Event{Type: domain.EventAlertCreated, Alert: &domain.Alert{ID: 1, Module: domain.ModuleSafety}, At: at})
	bus.Publish(domain.Event{Type: domain.EventAlertUpdated, Alert: &domain.Alert{ID: 1, IsRead: true}, At: at})
	bus.Publish(domain.Event{Type: domain.EventAlertsRefresh, Count: 2, At: at})

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case typ := <-sent:
			got = append(got, typ)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d messages", i)
		}
	}
	require.Equal(t, []string{"ALERT_CREATED", "ALERT_UPDATED", "ALERTS_REFRESH"}, got)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	require.NoError(t, r.Close())
	require.Equal(t, 0, bus.SubscriberCount())
}

func TestRelay_StopsWhenSubscriptionCloses(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	bus := notification.NewBroadcaster(4)
	sub := bus.Subscribe(SubscriberName)
	r := New(producer, "sphincs.alerts", sub)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	sub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	require.NoError(t, r.Close())
}
