// Package notify provides livepulse.Notifier implementations.
//
//   - [WebhookNotifier] posts chat messages to a Discord-compatible webhook
//   - [MQTTNotifier] publishes JSON events to an MQTT broker
//   - [NATSNotifier] publishes JSON events to a NATS subject
//   - [LogNotifier] writes structured log records
//   - [FakeNotifier] records calls for tests
//
// Message text is built by [StatusLine], [AnnouncementText] and
// [SnapshotText]; JSON events by [FormatAnnouncement] and [FormatSnapshot].
package notify
