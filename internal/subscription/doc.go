// Package subscription tracks which channels the realtime client wants
// delivery for, independent of connection state. The intent set is the
// source of truth for bulk resubscription after a reconnect.
package subscription
