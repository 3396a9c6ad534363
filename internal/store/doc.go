// Package store keeps the latest status of every monitored channel and fans
// updates out to subscribers.
//
// The main components are:
//
//   - [Store]: interface for storage and subscription
//   - [MemoryStore]: in-memory implementation with non-blocking pub/sub
//   - [ChannelRecord]: JSON representation of one channel's latest status
//
// Subscribers receive updates via buffered channels. A subscriber whose
// buffer is full misses updates rather than blocking the poll loop.
package store
