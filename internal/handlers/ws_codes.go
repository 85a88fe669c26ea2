// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes sent by the room socket.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // client did not offer the wordrelay subprotocol
	JoinRejectedError   websocket.StatusCode = 4000 // room full or game already running
	KickedError         websocket.StatusCode = 4001 // removed by a room admin
)
