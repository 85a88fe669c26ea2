// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/wordrelay/internal/auth"
	"github.com/jason-s-yu/wordrelay/internal/bus"
	"github.com/jason-s-yu/wordrelay/internal/game"
	"github.com/jason-s-yu/wordrelay/internal/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Subprotocol is the only WebSocket subprotocol the room socket speaks.
const Subprotocol = "wordrelay"

const writeTimeout = 5 * time.Second

// ClientMessage is one inbound socket frame.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type actionData struct {
	Action string `json:"action"`
}

type answerData struct {
	Content string `json:"content"`
}

// ServerMessage is one outbound socket frame.
type ServerMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// LogData is the payload of a "log" message.
type LogData struct {
	Who  string `json:"who"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// ToastData is the payload of a "toast" message.
type ToastData struct {
	Msg  string        `json:"msg"`
	Kind bus.ToastKind `json:"kind"`
}

// roomConn is one viewer attached to one room.
type roomConn struct {
	c      *websocket.Conn
	room   *game.Room
	sub    *bus.Subscription
	me     auth.Identity
	logger logrus.FieldLogger
}

// RoomWSHandler joins the caller to a room and streams redacted views.
// Add ?spectate=1 to watch without a seat.
func (s *RoomServer) RoomWSHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.IdentityFrom(r.Context())
	room, ok := s.roomFromPath(w, r)
	if !ok {
		return
	}
	spectate := r.URL.Query().Get("spectate") == "1"

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:    []string{Subprotocol},
		OriginPatterns:  []string{"*"}, // Adjust for production security.
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept error")
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the wordrelay subprotocol")
		return
	}

	sub, err := room.Join(me.ID, me.Name, spectate, me.IsAdmin())
	if err != nil {
		c.Close(JoinRejectedError, err.Error())
		return
	}
	defer sub.Close()
	defer room.Leave(me.ID)

	logger := s.Logger.WithFields(logrus.Fields{"room": room.ID, "user": me.ID})
	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

	conn := &roomConn{c: c, room: room, sub: sub, me: me, logger: logger}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.sendView(ctx); err != nil {
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		return
	}

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- conn.writePump(ctx, s.PingInterval)
		// a dead writer must also stop the reader
		cancel()
	}()

	limiter := rate.NewLimiter(s.MessageRate, s.MessageBurst)
	readErr := conn.readPump(ctx, limiter, s.ReadTimeout)
	cancel()
	err = <-writeDone
	if err == nil || errors.Is(err, context.Canceled) {
		err = readErr
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
		err = nil
	}
	middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
}

// readPump forwards client messages to the room until the socket fails.
func (rc *roomConn) readPump(ctx context.Context, limiter *rate.Limiter, timeout time.Duration) error {
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, timeout)
		typ, data, err := rc.c.Read(readCtx)
		cancel()
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			rc.logger.WithError(err).Debug("dropping malformed message")
			continue
		}
		rc.handle(msg)
	}
}

func (rc *roomConn) handle(msg ClientMessage) {
	switch msg.Type {
	case "action":
		var d actionData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			rc.logger.WithError(err).Debug("bad action payload")
			return
		}
		rc.room.Action(rc.me.ID, d.Action)
	case "answer":
		var d answerData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			rc.logger.WithError(err).Debug("bad answer payload")
			return
		}
		rc.room.Answer(rc.me.ID, d.Content)
	case "heartbeat":
		// resets the read deadline and nothing else
	default:
		rc.logger.WithField("type", msg.Type).Debug("unknown message type")
	}
}

// writePump relays bus events and keeps the connection alive with pings.
// It returns nil when the viewer was kicked or the room closed.
func (rc *roomConn) writePump(ctx context.Context, pingInterval time.Duration) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-rc.sub.C():
			if !ok {
				rc.c.Close(websocket.StatusGoingAway, "room closed")
				return nil
			}
			switch ev.Type {
			case bus.StateUpdated:
				if err := rc.sendView(ctx); err != nil {
					return err
				}
			case bus.Log:
				if err := rc.send(ctx, ServerMessage{Type: "log", Data: LogData{Who: ev.Speaker, Text: ev.Text, Time: ev.Time}}); err != nil {
					return err
				}
			case bus.Toast:
				if !ev.For(rc.me.ID) {
					continue
				}
				if err := rc.send(ctx, ServerMessage{Type: "toast", Data: ToastData{Msg: ev.Message, Kind: ev.Kind}}); err != nil {
					return err
				}
			case bus.Kick:
				if ev.Target != rc.me.ID {
					continue
				}
				rc.c.Close(KickedError, "You have been kicked")
				return nil
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := rc.c.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (rc *roomConn) sendView(ctx context.Context) error {
	view := rc.room.View(rc.me.ID, rc.me.IsAdmin())
	return rc.send(ctx, ServerMessage{Type: "update", Data: view})
}

func (rc *roomConn) send(ctx context.Context, msg ServerMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, rc.c, msg)
}
