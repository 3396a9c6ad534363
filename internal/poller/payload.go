package poller

import (
	"encoding/json"
	"fmt"
	"time"
)

// liveStatusOpen is the upstream liveStatus value of a channel on air.
const liveStatusOpen = "OPEN"

// decodeObservation normalises an upstream channel payload.
//
// The expected shape is:
//
//	{"code": 200, "content": {"liveStatus": "OPEN", "liveTitle": "...",
//	 "concurrentUserCount": 123, "categoryType": "GAME"}}
//
// Only a body that is not a JSON object is an error. A missing or ill-typed
// content object or liveStatus field yields an offline observation; ill-typed
// optional fields are dropped.
func decodeObservation(channelID string, body []byte, observedAt time.Time) (Observation, error) {
	obs := Observation{ChannelID: channelID, ObservedAt: observedAt}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		if err == nil {
			err = fmt.Errorf("top-level value is not an object")
		}
		return Observation{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var content map[string]json.RawMessage
	if raw, ok := envelope["content"]; ok {
		// null or non-object content leaves the map empty
		_ = json.Unmarshal(raw, &content)
	}

	if status, ok := stringField(content, "liveStatus"); ok {
		obs.Live = status == liveStatusOpen
	}
	if title, ok := stringField(content, "liveTitle"); ok {
		obs.Title = &title
	}
	if category, ok := stringField(content, "categoryType"); ok {
		obs.Category = &category
	}
	if viewers, ok := countField(content, "concurrentUserCount"); ok {
		obs.ViewerCount = &viewers
	}

	return obs, nil
}

// stringField returns fields[key] when it is a JSON string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// countField returns fields[key] when it is a non-negative JSON integer.
func countField(fields map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
