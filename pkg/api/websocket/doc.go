// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/runs/:id/ws to receive lifecycle
// events for a single execution as they happen.
package websocket
