// Package connection owns the realtime WebSocket connection to the console
// backend: lifecycle state machine, exponential-backoff reconnection, and
// transparent resubscription of all tracked channels after a reconnect.
package connection
