package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/parley/internal/hermes"
)

const defaultNatsURL = "nats://localhost:4222"

func (a *App) followCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Print exchange events as the server publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger := slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
			client, err := hermes.NewClient(a.v.GetString("nats_url"), a.v.GetString("nats_token"), logger)
			if err != nil {
				return err
			}
			defer client.Close()

			lines := make(chan string)
			emit := func(line string) {
				select {
				case lines <- line:
				case <-ctx.Done():
				}
			}
			err = hermes.Listen(client, hermes.SubjectExchangeStored, func(_ string, evt hermes.ExchangeStored) {
				emit(formatStored(evt))
			})
			if err != nil {
				return err
			}
			err = hermes.Listen(client, hermes.SubjectStreamFailed, func(_ string, evt hermes.StreamFailed) {
				emit(formatFailed(evt))
			})
			if err != nil {
				return err
			}

			color.New(color.FgHiBlack).Fprintf(a.errOut, "  following events on %s\n", a.v.GetString("nats_url"))
			for seen := 0; count <= 0 || seen < count; seen++ {
				select {
				case <-ctx.Done():
					return nil
				case line := <-lines:
					fmt.Fprintln(a.out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("nats", defaultNatsURL, "NATS server URL")
	cmd.Flags().String("nats-token", "", "NATS auth token")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many events (0 follows until interrupted)")
	a.v.BindPFlag("nats_url", cmd.Flags().Lookup("nats"))
	a.v.BindPFlag("nats_token", cmd.Flags().Lookup("nats-token"))
	return cmd
}

func formatStored(evt hermes.ExchangeStored) string {
	line := fmt.Sprintf("%s  %s  chat=%s user=%s provider=%s chars=%d",
		evt.Timestamp.Local().Format(time.DateTime),
		color.GreenString("stored"),
		evt.ChatID, evt.UserID, evt.Provider, evt.ResponseLen)
	if evt.Truncated {
		line += " " + color.YellowString("truncated")
	}
	return line
}

func formatFailed(evt hermes.StreamFailed) string {
	return fmt.Sprintf("%s  %s  user=%s provider=%s fragments=%d error=%q",
		evt.Timestamp.Local().Format(time.DateTime),
		color.RedString("failed"),
		evt.UserID, evt.Provider, evt.Fragments, evt.Error)
}
