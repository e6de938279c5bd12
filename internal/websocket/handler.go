package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"dicebowl/pkg/types"
)

var upgrader = websocket.Upgrader{
	// The viewer and admin pages are served from arbitrary hosts behind a
	// proxy during events; origin policy belongs to the deployment, not
	// the core.
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Coordinator is the hub-side contract the handler forwards connection
// lifecycle and inbound messages to.
type Coordinator interface {
	HandleConnect(conn *Connection)
	HandleDisconnect(conn *Connection)
	HandleAdminCommand(conn *Connection, cmd types.AdminCommand)
	HandleRequestState(conn *Connection)
}

// HandlerConfig carries the transport tuning knobs.
type HandlerConfig struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	PingInterval time.Duration
	BufferSize   int
}

// Handler upgrades HTTP requests to websocket connections and runs their
// read loops. Validation happens before the upgrade so bad requests get a
// proper HTTP status instead of a dead socket.
type Handler struct {
	coordinator Coordinator
	cfg         HandlerConfig
}

// NewHandler creates a websocket handler.
func NewHandler(coordinator Coordinator, cfg HandlerConfig) *Handler {
	return &Handler{coordinator: coordinator, cfg: cfg}
}

// HandleWebSocket handles GET /ws?room=<id>&role=viewer|admin. Viewers must
// name a room; admins may connect without one to watch aggregates only.
// Room assignment is fixed for the life of the connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	role := r.URL.Query().Get("role")
	if role == "" {
		role = types.RoleViewer
	}

	if !types.IsValidRole(role) {
		http.Error(w, types.ErrInvalidRole.Error(), http.StatusBadRequest)
		return
	}
	if role == types.RoleViewer && roomID == "" {
		http.Error(w, "viewers must supply a room id", http.StatusBadRequest)
		return
	}
	if roomID != "" && !types.IsValidRoomID(roomID) {
		http.Error(w, types.ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(wsConn, uuid.New().String(), role, roomID, h.cfg.BufferSize, h.cfg.WriteTimeout)
	log.Info().Str("conn", conn.ID()).Str("role", role).Str("room", roomID).Msg("connection established")

	h.coordinator.HandleConnect(conn)
	go h.readLoop(conn)
}

// readLoop owns the read side of one connection: heartbeat deadlines plus
// envelope decoding. It exits on the first read error, which covers both
// clean closes and dead peers.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.coordinator.HandleDisconnect(conn)
		_ = conn.Close()
		log.Info().Str("conn", conn.ID()).Msg("connection closed")
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Str("conn", conn.ID()).Err(err).Msg("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatchEnvelope(conn, data)
	}
}

func (h *Handler) dispatchEnvelope(conn *Connection, data []byte) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.replyError(conn, "", "malformed message envelope")
		return
	}

	switch env.Event {
	case types.EventAdminCommand:
		if conn.Role() != types.RoleAdmin {
			h.replyError(conn, "", "viewers cannot issue commands")
			return
		}
		var cmd types.AdminCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			h.replyError(conn, "", "malformed admin command")
			return
		}
		h.coordinator.HandleAdminCommand(conn, cmd)

	case types.EventRequestState:
		h.coordinator.HandleRequestState(conn)

	default:
		h.replyError(conn, "", "unknown event")
	}
}

// replyError reports a failure to the originating connection only; nothing
// is broadcast.
func (h *Handler) replyError(conn *Connection, command, message string) {
	data, err := json.Marshal(types.CommandError{Command: command, Message: message})
	if err != nil {
		return
	}
	if err := conn.WriteJSON(types.Envelope{Event: types.EventCommandError, Data: data}); err != nil {
		log.Debug().Str("conn", conn.ID()).Err(err).Msg("failed to send error reply")
	}
}
