//go:build integration

package hermes

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_ExchangeStoredRoundTrip(t *testing.T) {
	natsURL := skipWithoutNATS(t)

	client, err := NewClient(natsURL, os.Getenv("NATS_TOKEN"), slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	type delivery struct {
		id  string
		evt ExchangeStored
	}
	received := make(chan delivery, 1)

	err = Listen(client, SubjectExchangeStored, func(id string, evt ExchangeStored) {
		received <- delivery{id, evt}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if err := client.conn.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	err = client.Publish(SubjectExchangeStored, ExchangeStored{
		ChatID:      "chat-it",
		UserID:      "user-it",
		ResponseLen: 12,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case d := <-received:
		if d.evt.ChatID != "chat-it" || d.evt.ResponseLen != 12 {
			t.Errorf("unexpected event %+v", d.evt)
		}
		if d.id == "" {
			t.Error("expected an event id header")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
