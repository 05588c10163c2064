// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/jobs/:id/ws to receive the events of one
// job as JSON text messages. The server closes the stream with a normal
// closure after the job's terminal event.
package websocket
