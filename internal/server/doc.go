// Package server provides the HTTP status API of a livepulse monitor.
//
// Routes:
//
//   - GET /api/status: latest record per channel as JSON (gzip-aware)
//   - GET /api/sse: Server-Sent Events stream of record updates
//   - GET /api/snapshot: fresh fetch of every channel (gzip-aware)
//   - POST /api/snapshot?notify=true: same, also pushed to the notifiers;
//     GET with notify=true is rejected with 405
//   - GET /metrics: Prometheus exposition, when a handler is configured
//   - GET /healthz: liveness probe
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
