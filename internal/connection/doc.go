// Package connection speaks the real-time market data websocket protocol.
//
// A Client owns one socket: it reads frames, answers pings and watches for
// stale connections. Stream layers the provider handshake on top (connected,
// auth, subscribe) and decodes frames into gateway messages.
package connection
