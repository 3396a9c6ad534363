package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/livepulse"
)

func ptr[T any](v T) *T { return &v }

func mustChannel(t *testing.T, name, id string) livepulse.Channel {
	t.Helper()
	c, err := livepulse.NewChannel(name, id)
	require.NoError(t, err)
	return c
}

func liveStatus(t *testing.T) livepulse.ChannelStatus {
	t.Helper()
	return livepulse.ChannelStatus{
		Channel: mustChannel(t, "Alpha", "abc123"),
		Observation: livepulse.Observation{
			Live:        true,
			Title:       ptr("speedrun"),
			ViewerCount: ptr(42),
			Category:    ptr("GAME"),
			ObservedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Attempts: 1,
	}
}

func TestStatusLine(t *testing.T) {
	ch := mustChannel(t, "Alpha", "abc123")

	tests := []struct {
		name   string
		status livepulse.ChannelStatus
		want   string
	}{
		{
			name:   "live with all fields",
			status: liveStatus(t),
			want: "LIVE 🔴 Alpha\n" +
				"Title: speedrun\n" +
				"Viewers: 42\n" +
				"Category: GAME\n" +
				"Link: https://chzzk.naver.com/live/abc123",
		},
		{
			name:   "offline falls back for missing fields",
			status: livepulse.ChannelStatus{Channel: ch, Attempts: 1},
			want: "offline ⚪️ Alpha\n" +
				"Title: (no title)\n" +
				"Viewers: 0\n" +
				"Category: N/A\n" +
				"Link: https://chzzk.naver.com/live/abc123",
		},
		{
			name: "empty strings fall back",
			status: livepulse.ChannelStatus{
				Channel:     ch,
				Observation: livepulse.Observation{Title: ptr(""), Category: ptr("")},
			},
			want: "offline ⚪️ Alpha\n" +
				"Title: (no title)\n" +
				"Viewers: 0\n" +
				"Category: N/A\n" +
				"Link: https://chzzk.naver.com/live/abc123",
		},
		{
			name:   "unavailable",
			status: livepulse.ChannelStatus{Channel: ch, Err: errors.New("boom"), Attempts: 3},
			want: "unavailable ⚠️ Alpha\n" +
				"Status could not be fetched (3 attempt(s))\n" +
				"Link: https://chzzk.naver.com/live/abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusLine(tt.status))
		})
	}
}

func TestAnnouncementText(t *testing.T) {
	s := liveStatus(t)
	a := livepulse.Announcement{Channel: s.Channel, Observation: s.Observation}

	t.Run("without mention", func(t *testing.T) {
		got := AnnouncementText(a, "")
		assert.Equal(t, "🔴 Alpha is live!\n"+StatusLine(s), got)
	})

	t.Run("with mention", func(t *testing.T) {
		got := AnnouncementText(a, "1234")
		assert.Equal(t, "<@&1234> 🔴 Alpha is live!\n"+StatusLine(s), got)
	})
}

func TestSnapshotText(t *testing.T) {
	live := liveStatus(t)
	down := livepulse.ChannelStatus{
		Channel:  mustChannel(t, "Beta", "def456"),
		Err:      errors.New("timeout"),
		Attempts: 3,
	}

	got := SnapshotText([]livepulse.ChannelStatus{live, down})
	assert.Equal(t, StatusLine(live)+"\n\n"+StatusLine(down), got)
	assert.Empty(t, SnapshotText(nil))
}

func TestFormatAnnouncement(t *testing.T) {
	s := liveStatus(t)
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	data, err := FormatAnnouncement(livepulse.Announcement{Channel: s.Channel, Observation: s.Observation}, now)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, EventLive, ev.Type)
	assert.Equal(t, "2026-05-06T07:08:09Z", ev.Timestamp)
	require.Len(t, ev.Channels, 1)

	c := ev.Channels[0]
	assert.Equal(t, "abc123", c.ChannelID)
	assert.Equal(t, "Alpha", c.Name)
	assert.Equal(t, "live", c.State)
	assert.Equal(t, "speedrun", *c.Title)
	assert.Equal(t, 42, *c.ViewerCount)
	assert.Equal(t, "2026-01-02T03:04:05Z", c.ObservedAt)
	assert.Empty(t, c.Error)
}

func TestFormatSnapshot(t *testing.T) {
	down := livepulse.ChannelStatus{
		Channel:  mustChannel(t, "Beta", "def456"),
		Err:      errors.New("timeout"),
		Attempts: 3,
	}
	data, err := FormatSnapshot([]livepulse.ChannelStatus{liveStatus(t), down}, time.Now())
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, EventSnapshot, ev.Type)
	require.Len(t, ev.Channels, 2)
	assert.Equal(t, "abc123", ev.Channels[0].ChannelID)

	c := ev.Channels[1]
	assert.Equal(t, "unavailable", c.State)
	assert.Equal(t, "timeout", c.Error)
	assert.Equal(t, 3, c.Attempts)
	assert.Nil(t, c.Title)
	assert.Nil(t, c.ViewerCount)

	// optional fields are omitted rather than null
	assert.NotContains(t, string(data), `"title":null`)
}
