// Package router parses inbound realtime frames and fans them out to the
// handlers registered in the subscription registry.
package router
