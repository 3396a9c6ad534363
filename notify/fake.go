package notify

import (
	"context"
	"sync"

	"github.com/jpalmerr/livepulse"
)

// FakeNotifier records calls for use in tests.
type FakeNotifier struct {
	mu            sync.Mutex
	announcements []livepulse.Announcement
	snapshots     [][]livepulse.ChannelStatus
	closed        bool

	// AnnounceError, if set, is returned by Announce.
	AnnounceError error

	// SnapshotError, if set, is returned by Snapshot.
	SnapshotError error
}

// NewFakeNotifier creates a [FakeNotifier].
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

// Announce records the announcement.
func (f *FakeNotifier) Announce(_ context.Context, a livepulse.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = append(f.announcements, a)
	return f.AnnounceError
}

// Snapshot records a copy of the statuses.
func (f *FakeNotifier) Snapshot(_ context.Context, statuses []livepulse.ChannelStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]livepulse.ChannelStatus, len(statuses))
	copy(cp, statuses)
	f.snapshots = append(f.snapshots, cp)
	return f.SnapshotError
}

// Close marks the notifier closed.
func (f *FakeNotifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Announcements returns a copy of recorded announcements.
func (f *FakeNotifier) Announcements() []livepulse.Announcement {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]livepulse.Announcement, len(f.announcements))
	copy(cp, f.announcements)
	return cp
}

// Snapshots returns the recorded snapshots.
func (f *FakeNotifier) Snapshots() [][]livepulse.ChannelStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([][]livepulse.ChannelStatus, len(f.snapshots))
	copy(cp, f.snapshots)
	return cp
}

// Closed reports whether Close was called.
func (f *FakeNotifier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded state.
func (f *FakeNotifier) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = nil
	f.snapshots = nil
	f.closed = false
}
