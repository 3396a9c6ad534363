package metrics

// NopMetrics implements a no-op [Collector].
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements Collector.
var _ Collector = (*NopMetrics)(nil)

// NewNop creates a new no-op collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordFetch discards the fetch metric.
func (n *NopMetrics) RecordFetch(_ /* channelID */ string, _ /* attempts */ int, _ /* kind */ string) {
	// No-op
}

// RecordCycle discards the cycle metric.
func (n *NopMetrics) RecordCycle(_ /* seconds */ float64, _ /* failures */, _ /* announcements */ int) {
	// No-op
}

// IncrementSkippedTick discards the skipped tick counter.
func (n *NopMetrics) IncrementSkippedTick() {
	// No-op
}

// IncrementCyclePanic discards the cycle panic counter.
func (n *NopMetrics) IncrementCyclePanic() {
	// No-op
}

// SetChannelLive discards the channel state gauge.
func (n *NopMetrics) SetChannelLive(_ /* channelID */ string, _ /* live */ bool) {
	// No-op
}

// IncrementAnnouncement discards the announcement counter.
func (n *NopMetrics) IncrementAnnouncement(_ /* channelID */ string) {
	// No-op
}

// IncrementNotifyError discards the notifier error counter.
func (n *NopMetrics) IncrementNotifyError(_ /* stage */ string) {
	// No-op
}
