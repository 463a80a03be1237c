// Package pkg holds the building blocks of the realtime transport.
//
// # Sub-packages
//
//   - client: connection manager, outbound buffer, acknowledgments, heartbeat and reconnection
//   - protocol: the JSON frame format and the reserved control events
//   - transport: websocket dialer and connection, plus in-memory fakes for tests
//   - server: development backend that answers heartbeats, acknowledges and relays frames
//   - auth: token providers for clients, validators and rate limiting for the server
//   - errors: structured errors with numeric codes and categories
//   - logging: structured logger and HTTP request logging
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - utils: goroutine leak detection for tests
package pkg
