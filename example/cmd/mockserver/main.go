// Standalone mock channel status API for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/livepulse serve -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	flag.Parse()

	fmt.Printf("Mock channel API starting on %s\n", *addr)
	fmt.Println("Toggle a channel: curl -X POST localhost:9999/channels/<id>/toggle")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu   sync.Mutex
		live = make(map[string]bool)
	)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		mu.Lock()
		on := live[id]
		mu.Unlock()

		content := map[string]any{"liveStatus": "CLOSE"}
		if on {
			content = map[string]any{
				"liveStatus":          "OPEN",
				"liveTitle":           "mock stream " + id,
				"concurrentUserCount": 100,
				"categoryType":        "TALK",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "content": content})
	})

	// toggling by hand makes rising edges reproducible
	mux.HandleFunc("POST /channels/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		mu.Lock()
		live[id] = !live[id]
		on := live[id]
		mu.Unlock()

		slog.Info("channel toggled", "channel_id", id, "live", on)
		_, _ = fmt.Fprintf(w, "%s live=%t\n", id, on)
	})

	if err := http.ListenAndServe(*addr, mux); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
