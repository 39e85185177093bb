// Package ws implements the push-channel adapter over a table actor,
// grounded on the reference server's handleWebSocket/handleMessage pump
// shape: gorilla/websocket upgrade, a blocking ReadMessage loop dispatching
// tagged JSON messages, and an auto-LeaveTable on disconnect.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"holdem-core/internal/gameerr"
	"holdem-core/internal/hsm"
	"holdem-core/internal/registry"
	"holdem-core/internal/table"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// maxMessageSize is the wire cap from spec §5/§6.1: enforced on the
// connection itself so an oversized frame is rejected before gorilla
// buffers or allocates it.
const maxMessageSize = 1 << 20

// Server wires the registry to gorilla websocket connections at /ws/:table.
type Server struct {
	reg *registry.Registry
}

func NewServer(reg *registry.Registry) *Server {
	return &Server{reg: reg}
}

func (s *Server) Register(router gin.IRouter) {
	router.GET("/ws/:table", s.handleConn)
}

// clientMessage is the closed client->server shape from spec §6.1.
type clientMessage struct {
	Type   string `json:"type"`
	Action struct {
		Type   string `json:"type"`
		Amount uint64 `json:"amount"`
	} `json:"action"`
}

func (s *Server) handleConn(c *gin.Context) {
	tableID := c.Param("table")
	user := c.Query("user") // authenticated identity; auth itself is out of core scope

	actor, err := s.reg.GetHandle(tableID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"type": "error", "message": "table not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			sendError(conn, "invalid_message")
			continue
		}

		switch msg.Type {
		case "join":
			// Join via the push channel is disabled: clients must join over
			// HTTP so buy-in debits stay atomic with table seating.
			sendError(conn, "invalid_message")
		case "action":
			handleAction(conn, actor, user, msg)
		case "leave":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := actor.LeaveTable(ctx, user); err != nil {
				sendError(conn, "internal_error")
			}
			cancel()
		default:
			sendError(conn, "invalid_message")
		}
	}

	// Auto-leave on disconnect (spec §6.1): the channel closing for a
	// seated user is treated exactly like an explicit LeaveTable.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := actor.LeaveTable(ctx, user); err != nil {
		log.Printf("ws: auto-leave for %s on %s: %v", user, tableID, err)
	}
}

func handleAction(conn *websocket.Conn, actor *table.Table, user string, msg clientMessage) {
	action, err := parseAction(msg.Action.Type, msg.Action.Amount)
	if err != nil {
		sendError(conn, "invalid_message")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := actor.SubmitAction(ctx, user, action)
	if err != nil {
		sendError(conn, "internal_error")
		return
	}
	if reply.Err != nil {
		sendError(conn, gameerr.ToWireMessage(reply.Err))
		return
	}
	sendMessage(conn, gin.H{"type": "view", "view": reply.View})
}

func parseAction(kind string, amount uint64) (hsm.Action, error) {
	switch kind {
	case "fold":
		return hsm.Action{Kind: hsm.ActionFold}, nil
	case "check":
		return hsm.Action{Kind: hsm.ActionCheck}, nil
	case "call":
		return hsm.Action{Kind: hsm.ActionCall}, nil
	case "raise":
		return hsm.Action{Kind: hsm.ActionRaise, Amount: amount}, nil
	case "all_in":
		return hsm.Action{Kind: hsm.ActionAllIn}, nil
	default:
		return hsm.Action{}, gameerr.NewUserError(gameerr.InvalidMessage, kind)
	}
}

func sendMessage(conn *websocket.Conn, data interface{}) {
	if err := conn.WriteJSON(data); err != nil {
		log.Printf("ws: write error: %v", err)
	}
}

func sendError(conn *websocket.Conn, message string) {
	sendMessage(conn, gin.H{"type": "error", "message": message})
}
