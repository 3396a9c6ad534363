package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/livepulse"
	"github.com/jpalmerr/livepulse/notify"
)

func main() {
	// start mock upstream API (see mock_server.go)
	go StartMockChannelAPI(":9999")
	time.Sleep(100 * time.Millisecond)

	var channels []livepulse.Channel
	for _, c := range []struct{ name, id string }{
		{"Streamer X", "x0000001"},
		{"Streamer Y", "y0000002"},
		{"Streamer Z", "z0000003"},
		{"Broken", "down0004"},
	} {
		ch, err := livepulse.NewChannel(c.name, c.id, livepulse.WithLabels("source", "mock"))
		if err != nil {
			slog.Error("failed to create channel", "error", err)
			os.Exit(1)
		}
		channels = append(channels, ch)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	m, err := livepulse.New(
		livepulse.WithChannels(channels...),
		livepulse.WithAPIBaseURL("http://localhost:9999"),
		livepulse.WithPollingInterval(5*time.Second),
		livepulse.WithPollOnStart(),
		livepulse.WithRetry(2, 200*time.Millisecond),
		livepulse.WithLogger(logger),
		livepulse.WithNotifier(notify.NewLogNotifier(logger)),
		livepulse.WithAnnouncementCallback(func(a livepulse.Announcement) {
			fmt.Println(notify.AnnouncementText(a, ""))
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Status API at http://localhost:8080/api/status")
	fmt.Println("Snapshot at   http://localhost:8080/api/snapshot")
	fmt.Println("Press Ctrl+C to stop")

	if err := m.Start(ctx); err != nil {
		slog.Error("monitor stopped with error", "error", err)
		os.Exit(1)
	}
}
