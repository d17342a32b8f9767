//go:build integration

package cli

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/MikeSquared-Agency/parley/internal/hermes"
)

func TestIntegration_FollowPrintsEvents(t *testing.T) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	token := os.Getenv("NATS_TOKEN")

	pub, err := hermes.NewClient(natsURL, token, slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer pub.Close()

	var out, errOut bytes.Buffer
	root := NewApp(viper.New(), strings.NewReader(""), &out, &errOut).RootCmd()
	root.SetArgs([]string{"--config", t.TempDir() + "/none.yaml", "follow", "--nats", natsURL, "--nats-token", token, "--count", "1"})

	done := make(chan error, 1)
	go func() { done <- root.Execute() }()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("follow failed: %v", err)
			}
			if !strings.Contains(out.String(), "chat=chat-follow") {
				t.Errorf("unexpected output %q", out.String())
			}
			return
		case <-tick.C:
			if err := pub.Publish(hermes.SubjectExchangeStored, hermes.ExchangeStored{ChatID: "chat-follow", Timestamp: time.Now()}); err != nil {
				t.Fatalf("publish failed: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for follow to print an event")
		}
	}
}
