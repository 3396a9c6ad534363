package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockChannel tracks live state and next toggle time for a single channel.
type mockChannel struct {
	live         bool
	nextChangeAt time.Time
	viewers      int
}

// StartMockChannelAPI runs a mock status API that serves
// GET /channels/{id} in the upstream JSON shape. Each channel toggles
// between offline and live every 20-60 seconds; ids starting with "down"
// always fail with 503.
// Call this in a goroutine before creating the Monitor.
func StartMockChannelAPI(addr string) {
	var (
		channels = make(map[string]*mockChannel)
		mu       sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		if len(id) >= 4 && id[:4] == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		mu.Lock()
		ch, exists := channels[id]
		if !exists {
			ch = &mockChannel{nextChangeAt: time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)}
			channels[id] = ch
		}
		if time.Now().After(ch.nextChangeAt) {
			ch.live = !ch.live
			ch.viewers = rand.Intn(5000)
			ch.nextChangeAt = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
			slog.Info("mock channel changed", "channel_id", id, "live", ch.live)
		}
		live, viewers := ch.live, ch.viewers
		mu.Unlock()

		content := map[string]any{"liveStatus": "CLOSE"}
		if live {
			content = map[string]any{
				"liveStatus":          "OPEN",
				"liveTitle":           "mock stream " + id,
				"concurrentUserCount": viewers,
				"categoryType":        "GAME",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "content": content})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server failed", "error", err)
	}
}
